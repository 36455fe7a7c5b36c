package history

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// correlationThreshold is the similarity above which two timelines are
// considered correlated. Edges are never removed once added: histories only
// grow, so the graph is append-only by design of the data, not by accident.
const correlationThreshold = 0.5

// SharedMemorySpace aggregates every agent timeline, derives the undirected
// correlation graph from fingerprint similarity, and maintains the global
// coherence scalar.
type SharedMemorySpace struct {
	mu           sync.RWMutex
	timelines    map[string]*Timeline
	correlations map[string]map[string]struct{}
	coherence    float64
	logger       *zap.Logger
}

// NewSharedMemorySpace creates an empty shared memory space.
func NewSharedMemorySpace(logger *zap.Logger) *SharedMemorySpace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SharedMemorySpace{
		timelines:    make(map[string]*Timeline),
		correlations: make(map[string]map[string]struct{}),
		coherence:    1.0,
		logger:       logger,
	}
}

// Register creates the agent's timeline if absent and returns it. Idempotent.
func (s *SharedMemorySpace) Register(agentID string) *Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerLocked(agentID)
}

func (s *SharedMemorySpace) registerLocked(agentID string) *Timeline {
	if tl, ok := s.timelines[agentID]; ok {
		return tl
	}
	tl := NewTimeline(agentID)
	s.timelines[agentID] = tl
	s.correlations[agentID] = make(map[string]struct{})
	s.coherence = 1.0 / math.Sqrt(float64(len(s.timelines)))
	s.logger.Debug("timeline registered",
		zap.String("agent", agentID),
		zap.Int("timelines", len(s.timelines)))
	return tl
}

// Record appends an event to the agent's timeline (creating it if missing),
// re-evaluates correlations between that agent and every other registered
// agent, and refreshes coherence. O(n) in the agent count per call.
func (s *SharedMemorySpace) Record(agentID string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.registerLocked(agentID)
	tl.Append(ev)

	for otherID, other := range s.timelines {
		if otherID == agentID {
			continue
		}
		if tl.Similarity(other) > correlationThreshold {
			s.correlations[agentID][otherID] = struct{}{}
			s.correlations[otherID][agentID] = struct{}{}
		}
	}

	s.coherence = 1.0 / math.Sqrt(float64(len(s.timelines)))
}

// Timeline returns the agent's timeline, if registered.
func (s *SharedMemorySpace) Timeline(agentID string) (*Timeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tl, ok := s.timelines[agentID]
	return tl, ok
}

// Coherence returns the current global coherence, 1/sqrt(timeline count).
func (s *SharedMemorySpace) Coherence() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coherence
}

// TimelineCount returns the number of registered agents.
func (s *SharedMemorySpace) TimelineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.timelines)
}

// TotalEvents sums event counts across all timelines.
func (s *SharedMemorySpace) TotalEvents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, tl := range s.timelines {
		total += tl.EventCount()
	}
	return total
}

// CorrelatedWith returns the sorted agent ids correlated with agentID.
func (s *SharedMemorySpace) CorrelatedWith(agentID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.correlations[agentID])
}

// CorrelationGraph returns a copy of the full correlation adjacency.
func (s *SharedMemorySpace) CorrelationGraph() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	graph := make(map[string][]string, len(s.correlations))
	for id, peers := range s.correlations {
		graph[id] = sortedKeys(peers)
	}
	return graph
}

// QueryMatch is one event returned by a non-local query, annotated with the
// correlation strength between the querying agent and the match's owner.
type QueryMatch struct {
	AgentID     string  `json:"agent_id"`
	Event       Event   `json:"event"`
	Correlation float64 `json:"correlation"`
}

// QueryResult is the outcome of a non-local query.
type QueryResult struct {
	Query            string       `json:"query"`
	QueryingAgent    string       `json:"querying_agent"`
	CorrelatedAgents []string     `json:"correlated_agents"`
	Matches          []QueryMatch `json:"matches"`
	Coherence        float64      `json:"coherence"`
}

// QueryNonLocal scans the timelines of every agent correlated with the
// querying agent and returns events whose content contains the query text,
// case-insensitively. Only correlated timelines are visible.
func (s *SharedMemorySpace) QueryNonLocal(queryingAgent, query string) (*QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	querying, ok := s.timelines[queryingAgent]
	if !ok {
		return nil, fmt.Errorf("query from %s: %w", queryingAgent, ErrNotRegistered)
	}

	correlated := sortedKeys(s.correlations[queryingAgent])
	needle := strings.ToLower(query)

	result := &QueryResult{
		Query:            query,
		QueryingAgent:    queryingAgent,
		CorrelatedAgents: correlated,
		Coherence:        s.coherence,
	}

	for _, agentID := range correlated {
		tl := s.timelines[agentID]
		strength := tl.Similarity(querying)
		for _, ev := range tl.Events() {
			if strings.Contains(strings.ToLower(ev.ContentText()), needle) {
				result.Matches = append(result.Matches, QueryMatch{
					AgentID:     agentID,
					Event:       ev,
					Correlation: strength,
				})
			}
		}
	}
	return result, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
