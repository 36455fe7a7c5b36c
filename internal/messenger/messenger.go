// Package messenger keeps per-node bookkeeping for entangled message pairs:
// which pairs are active, who the counterpart is, and how many classical
// bits each transfer mode has notionally delivered. Delivery itself is
// synchronous and handled by the mesh; accounting here is metrics only.
package messenger

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransferMode selects the bookkeeping variant for a message.
type TransferMode string

const (
	// ModeRegular packs one classical bit per resource unit.
	ModeRegular TransferMode = "regular"
	// ModeSuperdense packs two classical bits per resource unit.
	ModeSuperdense TransferMode = "superdense"
)

// Valid reports whether the mode is a known transfer mode.
func (m TransferMode) Valid() bool {
	return m == ModeRegular || m == ModeSuperdense
}

// Message is the record carried between two nodes. One half of the pair
// stays with the source; the id ties both halves together.
type Message struct {
	ID          string         `json:"id"`
	PairID      string         `json:"pair_id"`
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Payload     map[string]any `json:"payload"`
	Mode        TransferMode   `json:"mode"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Stats summarizes a messenger's transfer accounting.
type Stats struct {
	MessagesSent     int `json:"messages_sent"`
	MessagesReceived int `json:"messages_received"`
	ActivePairs      int `json:"active_pairs"`
	BitsDelivered    int `json:"bits_delivered"`
	ResourceUnits    int `json:"resource_units"`
}

// Messenger manages one node's entangled pairs and transfer accounting.
type Messenger struct {
	nodeID string

	mu       sync.Mutex
	pairs    map[string]string // pair id -> counterpart node id
	sent     int
	received int
	bits     int
	units    int

	logger *zap.Logger
}

// New creates a messenger for a node.
func New(nodeID string, logger *zap.Logger) *Messenger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Messenger{
		nodeID: nodeID,
		pairs:  make(map[string]string),
		logger: logger,
	}
}

// NodeID returns the owning node id.
func (m *Messenger) NodeID() string { return m.nodeID }

// CreatePair mints a new entangled pair toward the destination and returns
// the message carrying the payload. The counterpart half is registered when
// the destination's messenger calls Receive.
func (m *Messenger) CreatePair(destination string, payload map[string]any, mode TransferMode) *Message {
	pairID := uuid.NewString()
	msg := &Message{
		ID:          pairID,
		PairID:      pairID,
		Source:      m.nodeID,
		Destination: destination,
		Payload:     payload,
		Mode:        mode,
		Timestamp:   time.Now().UTC(),
	}

	bits := payloadBits(payload)

	m.mu.Lock()
	m.pairs[pairID] = destination
	m.sent++
	m.bits += bits
	m.units += resourceUnits(mode, bits)
	m.mu.Unlock()

	m.logger.Debug("pair created",
		zap.String("node", m.nodeID),
		zap.String("destination", destination),
		zap.String("pair", pairID),
		zap.String("mode", string(mode)))
	return msg
}

// Receive registers the counterpart half of an incoming pair.
func (m *Messenger) Receive(msg *Message) {
	m.mu.Lock()
	m.pairs[msg.PairID] = msg.Source
	m.received++
	m.mu.Unlock()
}

// Counterpart returns the node on the far side of a pair.
func (m *Messenger) Counterpart(pairID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.pairs[pairID]
	return node, ok
}

// Stats returns a snapshot of the transfer accounting.
func (m *Messenger) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		MessagesSent:     m.sent,
		MessagesReceived: m.received,
		ActivePairs:      len(m.pairs),
		BitsDelivered:    m.bits,
		ResourceUnits:    m.units,
	}
}

// payloadBits estimates the classical size of a payload from its canonical
// JSON encoding.
func payloadBits(payload map[string]any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return len(data) * 8
}

// resourceUnits converts delivered bits to notional quantum resource units
// for the given mode. Superdense coding halves the cost.
func resourceUnits(mode TransferMode, bits int) int {
	if mode == ModeSuperdense {
		return (bits + 1) / 2
	}
	return bits
}
