package mesh

// Snapshot is the read-only topology report. Its JSON shape is the persisted
// format: top-level keys are stable and round-trip safe.
type Snapshot struct {
	NodeCount       int                     `json:"node_count"`
	Nodes           map[string]NodeSnapshot `json:"nodes"`
	IsActive        bool                    `json:"is_active"`
	CoherenceReport CoherenceReport         `json:"coherence_report"`
	RelayRoutes     map[string][]string     `json:"relay_routes"`
}

// NodeSnapshot captures one node's public state.
type NodeSnapshot struct {
	Position      Position           `json:"position"`
	Connections   []string           `json:"connections"`
	LinkStrengths map[string]float64 `json:"link_strengths"`
	EventCount    int                `json:"event_count"`
}

// CoherenceReport summarizes the shared memory space.
type CoherenceReport struct {
	AgentCount        int                 `json:"agent_count"`
	CorrelationGraph  map[string][]string `json:"correlation_graph"`
	TotalInteractions int                 `json:"total_interactions"`
	Coherence         float64             `json:"coherence"`
}

// Bridge describes a spacetime bridge between two nodes. Pure derivation
// from current positions; computing one never mutates the graph.
type Bridge struct {
	ID                  string    `json:"bridge_id"`
	Nodes               [2]string `json:"nodes"`
	Path                []string  `json:"path,omitempty"`
	SpatialDistance     float64   `json:"spatial_distance"`
	TemporalOffset      float64   `json:"temporal_offset"`
	SpacetimeDistance   float64   `json:"spacetime_distance"`
	Strength            float64   `json:"bridge_strength"`
	TranscendsClassical bool      `json:"transcends_classical_limits"`
}

// NodeResonance is one node's entry in a resonance report.
type NodeResonance struct {
	NodeID       string  `json:"node_id"`
	Connections  int     `json:"connections"`
	MeanStrength float64 `json:"mean_strength"`
}

// ResonanceReport is the outcome of a harmonic resonance pass.
type ResonanceReport struct {
	SourceID  string          `json:"source_id"`
	Frequency float64         `json:"frequency"`
	Nodes     []NodeResonance `json:"nodes"`
	Coherence float64         `json:"coherence"`
}
