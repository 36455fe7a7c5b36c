package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// EventType categorizes a recorded interaction.
type EventType string

const (
	EventQuery       EventType = "query"
	EventResponse    EventType = "response"
	EventComputation EventType = "computation"
	EventDecision    EventType = "decision"
	EventMessage     EventType = "message"
	EventReceive     EventType = "receive"
)

var validEventTypes = map[EventType]bool{
	EventQuery:       true,
	EventResponse:    true,
	EventComputation: true,
	EventDecision:    true,
	EventMessage:     true,
	EventReceive:     true,
}

// Event is a single immutable interaction record. Construct via NewEvent;
// the fingerprint is fixed at creation and covers timestamp, agent, type
// and content.
type Event struct {
	Timestamp   time.Time      `json:"timestamp"`
	AgentID     string         `json:"agent_id"`
	Type        EventType      `json:"event_type"`
	Content     map[string]any `json:"content"`
	Context     map[string]any `json:"context,omitempty"`
	Fingerprint string         `json:"fingerprint"`
}

// NewEvent validates and builds an event, stamping it with the current time.
func NewEvent(agentID string, typ EventType, content, eventCtx map[string]any) (Event, error) {
	return newEventAt(time.Now().UTC(), agentID, typ, content, eventCtx)
}

func newEventAt(ts time.Time, agentID string, typ EventType, content, eventCtx map[string]any) (Event, error) {
	if agentID == "" {
		return Event{}, fmt.Errorf("event: %w: empty agent id", ErrInvalidEvent)
	}
	if !validEventTypes[typ] {
		return Event{}, fmt.Errorf("event: %w: unknown type %q", ErrInvalidEvent, typ)
	}
	if content == nil {
		return Event{}, fmt.Errorf("event: %w: nil content", ErrInvalidEvent)
	}

	ev := Event{
		Timestamp: ts,
		AgentID:   agentID,
		Type:      typ,
		Content:   copyMap(content),
		Context:   copyMap(eventCtx),
	}

	fp, err := eventFingerprint(ev)
	if err != nil {
		return Event{}, err
	}
	ev.Fingerprint = fp
	return ev, nil
}

// eventFingerprint hashes the canonical JSON form of the identity fields.
// encoding/json sorts map keys, which makes the serialization stable.
func eventFingerprint(ev Event) (string, error) {
	canonical := map[string]any{
		"timestamp": ev.Timestamp.Format(time.RFC3339Nano),
		"agent_id":  ev.AgentID,
		"type":      string(ev.Type),
		"content":   ev.Content,
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("event: %w: %v", ErrInvalidEvent, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ContentText renders the content map as lowercase-searchable text.
func (e Event) ContentText() string {
	data, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Sprint(e.Content)
	}
	return string(data)
}

// copyMap deep-copies m through the same JSON round trip the fingerprint
// uses, so the stored maps never alias the caller's nested maps and slices.
// Values that do not survive json.Marshal get a shallow copy; such content
// fails fingerprinting anyway.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	if data, err := json.Marshal(m); err == nil {
		var out map[string]any
		if json.Unmarshal(data, &out) == nil {
			return out
		}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
