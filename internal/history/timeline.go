package history

import (
	"fmt"
	"math"
	"math/rand"
)

// Timeline is the append-only event history of one agent, with a cached
// fixed-size state fingerprint. A timeline may fork into weighted branches
// (alternative histories) that are resolved by Collapse.
//
// Timelines are single-writer: the owning SharedMemorySpace (or Network)
// serializes mutation. Append is the only reference mutator.
type Timeline struct {
	agentID     string
	events      []Event
	votes       [64]int
	fingerprint uint64
	branches    []*Timeline
	weight      float64
	collapsed   bool
}

// NewTimeline creates an empty timeline for an agent.
func NewTimeline(agentID string) *Timeline {
	return &Timeline{agentID: agentID, weight: 1.0}
}

// AgentID returns the owning agent id.
func (t *Timeline) AgentID() string { return t.agentID }

// Append records an event and refreshes the state fingerprint.
func (t *Timeline) Append(ev Event) {
	t.events = append(t.events, ev)
	voteTokens(&t.votes, eventTokens(ev))
	t.fingerprint = foldVotes(&t.votes)
}

// Events returns a copy of the event sequence.
func (t *Timeline) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// EventCount returns the number of recorded events.
func (t *Timeline) EventCount() int { return len(t.events) }

// Fingerprint returns the cached 64-bit state fingerprint.
func (t *Timeline) Fingerprint() uint64 { return t.fingerprint }

// Weight returns this timeline's branch weight. Sibling weights are only
// normalized at collapse time; intermediate weights need not sum to 1.
func (t *Timeline) Weight() float64 { return t.weight }

// Collapsed reports whether the timeline has been measured.
func (t *Timeline) Collapsed() bool { return t.collapsed }

// BranchCount returns the number of uncollapsed alternative histories.
func (t *Timeline) BranchCount() int { return len(t.branches) }

// Branch forks an alternative history: the current events are copied by
// value, the divergence event is appended to the copy, and the new branch
// gets weight 1/sqrt(sibling count after adding).
func (t *Timeline) Branch(divergence Event) (*Timeline, error) {
	if t.collapsed {
		return nil, fmt.Errorf("timeline %s: %w", t.agentID, ErrCollapsed)
	}

	branch := &Timeline{
		agentID: fmt.Sprintf("%s_branch_%d", t.agentID, len(t.branches)),
		events:  make([]Event, len(t.events)),
		votes:   t.votes,
	}
	copy(branch.events, t.events)
	branch.fingerprint = t.fingerprint
	branch.Append(divergence)

	branch.weight = 1.0 / math.Sqrt(float64(len(t.branches)+1))
	t.branches = append(t.branches, branch)
	return branch, nil
}

// Collapse resolves the superposition. With no branches the timeline itself
// is marked terminal and returned. Otherwise one branch is selected at
// random, weighted by the branch weights normalized to sum to 1.
func (t *Timeline) Collapse() *Timeline {
	if len(t.branches) == 0 {
		t.collapsed = true
		return t
	}

	var total float64
	for _, b := range t.branches {
		total += b.weight
	}

	pick := rand.Float64() * total
	selected := t.branches[len(t.branches)-1]
	for _, b := range t.branches {
		pick -= b.weight
		if pick < 0 {
			selected = b
			break
		}
	}
	selected.collapsed = true
	return selected
}

// Similarity scores two timelines' correlation in [0,1] from their cached
// fingerprints. Empty timelines carry no state yet and score 0 against
// everything, themselves included.
func (t *Timeline) Similarity(other *Timeline) float64 {
	if other == nil || len(t.events) == 0 || len(other.events) == 0 {
		return 0
	}
	return fingerprintSimilarity(t.fingerprint, other.fingerprint)
}
