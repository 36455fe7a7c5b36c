package mesh

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gaianet/quantum-mesh/internal/history"
	"github.com/gaianet/quantum-mesh/internal/messenger"
)

// Options tunes the network's link-forming and activity policies.
type Options struct {
	// DirectLinkRadius is the distance under which two nodes link directly.
	DirectLinkRadius float64
	// SmallNetworkSize is the node count (including the node being added)
	// at or below which every pairing links directly regardless of distance.
	SmallNetworkSize int
	// ActivityThreshold is the metric above which the network reports active.
	ActivityThreshold float64
	// TransmissionDelay paces mutating operations. Zero disables pacing;
	// it never changes observable outcomes.
	TransmissionDelay time.Duration
}

// DefaultOptions returns the reference policy values.
func DefaultOptions() Options {
	return Options{
		DirectLinkRadius:  10.0,
		SmallNetworkSize:  3,
		ActivityThreshold: 0.7,
	}
}

// EventHook observes every event the network records. Hooks run after the
// mutation completes, outside the network lock.
type EventHook func(history.Event)

type route struct{ src, dst string }

// Network owns all nodes, forms links between them, maintains the shared
// memory space, and derives the global activity flag. All mutation entry
// points serialize on one writer lock; reads work against the live state
// under a read lock.
type Network struct {
	mu     sync.RWMutex
	nodes  map[string]*Node
	routes map[route][]string

	memory *history.SharedMemorySpace

	active       bool
	metric       float64
	connectivity float64

	opts   Options
	hook   EventHook
	logger *zap.Logger
}

// NewNetwork creates an empty network.
func NewNetwork(opts Options, logger *zap.Logger) *Network {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DirectLinkRadius <= 0 {
		opts.DirectLinkRadius = 10.0
	}
	if opts.SmallNetworkSize <= 0 {
		opts.SmallNetworkSize = 3
	}
	if opts.ActivityThreshold <= 0 {
		opts.ActivityThreshold = 0.7
	}
	return &Network{
		nodes:  make(map[string]*Node),
		routes: make(map[route][]string),
		memory: history.NewSharedMemorySpace(logger),
		opts:   opts,
		logger: logger,
	}
}

// SetEventHook installs an observer for recorded events.
func (n *Network) SetEventHook(hook EventHook) {
	n.mu.Lock()
	n.hook = hook
	n.mu.Unlock()
}

// Memory returns the shared memory space.
func (n *Network) Memory() *history.SharedMemorySpace { return n.memory }

// AddNode registers a new node and links it to the existing network.
// A duplicate id is rejected with ErrDuplicateNode.
func (n *Network) AddNode(id string, pos Position) (*Node, error) {
	if id == "" {
		return nil, fmt.Errorf("add node: %w: empty id", ErrInvalidNode)
	}

	n.mu.Lock()
	if _, exists := n.nodes[id]; exists {
		n.mu.Unlock()
		return nil, fmt.Errorf("add node %s: %w", id, ErrDuplicateNode)
	}

	node := &Node{
		id:        id,
		position:  pos,
		timeline:  n.memory.Register(id),
		messenger: messenger.New(id, n.logger),
		links:     make(map[string]float64),
	}
	n.nodes[id] = node
	n.establishLinks(node)
	n.recomputeActivityLocked()
	n.mu.Unlock()

	n.pace()
	n.logger.Info("node added",
		zap.String("node", id),
		zap.Int("network_size", n.NodeCount()))
	return node, nil
}

// establishLinks runs the link-forming policy for a freshly added node
// against every existing node. Direct links form first so that the relay
// search in the second pass sees every edge the new node will carry; the
// outcome is then independent of id ordering. Caller holds the write lock.
func (n *Network) establishLinks(node *Node) {
	var distant []string
	for _, otherID := range n.sortedIDsLocked() {
		if otherID == node.id {
			continue
		}
		other := n.nodes[otherID]
		distance := node.position.DistanceTo(other.position)

		if distance < n.opts.DirectLinkRadius || len(n.nodes) <= n.opts.SmallNetworkSize {
			strength := 1.0 / (1.0 + distance)
			node.links[otherID] = strength
			other.links[node.id] = strength
			continue
		}
		distant = append(distant, otherID)
	}

	for _, otherID := range distant {
		path, err := n.searchPathLocked(node.id, otherID)
		if err != nil {
			// Disconnected pairing stays unlinked.
			continue
		}
		n.routes[route{node.id, otherID}] = path
		n.routes[route{otherID, node.id}] = reversed(path)

		strength := 1.0 / float64(len(path)-1) // hops
		node.links[otherID] = strength
		n.nodes[otherID].links[node.id] = strength
	}
}

// RelayPath returns the relay path from src to dst: the stored route if the
// pair was linked indirectly, otherwise a fresh breadth-first search over
// the adjacency graph. ErrNoPath when disconnected.
func (n *Network) RelayPath(src, dst string) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if _, ok := n.nodes[src]; !ok {
		return nil, fmt.Errorf("relay path %s->%s: %w", src, dst, ErrNodeNotFound)
	}
	if _, ok := n.nodes[dst]; !ok {
		return nil, fmt.Errorf("relay path %s->%s: %w", src, dst, ErrNodeNotFound)
	}
	if stored, ok := n.routes[route{src, dst}]; ok {
		out := make([]string, len(stored))
		copy(out, stored)
		return out, nil
	}
	return n.searchPathLocked(src, dst)
}

// searchPathLocked is a BFS over neighbor adjacency. Neighbor iteration is
// sorted, so the first shortest path found is deterministic for a given
// construction order. Caller holds at least the read lock.
func (n *Network) searchPathLocked(start, end string) ([]string, error) {
	if start == end {
		return []string{start}, nil
	}

	visited := map[string]bool{start: true}
	queue := [][]string{{start}}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		current := path[len(path)-1]

		for _, neighbor := range n.nodes[current].Neighbors() {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			next := append(append([]string{}, path...), neighbor)
			if neighbor == end {
				return next, nil
			}
			queue = append(queue, next)
		}
	}
	return nil, fmt.Errorf("relay path %s->%s: %w", start, end, ErrNoPath)
}

// SendMessage delivers a payload from source to destination, recording a
// sent event on the source timeline and a receive event on the destination
// timeline. Delivery is synchronous and always succeeds once both ids exist;
// the mode only changes transfer accounting.
func (n *Network) SendMessage(sourceID, destID string, payload map[string]any, mode messenger.TransferMode) error {
	if mode == "" {
		mode = messenger.ModeRegular
	}
	if !mode.Valid() {
		return fmt.Errorf("send %s->%s: %w: %q", sourceID, destID, ErrInvalidMode, mode)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	n.mu.Lock()
	source, ok := n.nodes[sourceID]
	if !ok {
		n.mu.Unlock()
		return fmt.Errorf("send %s->%s: source: %w", sourceID, destID, ErrNodeNotFound)
	}
	dest, ok := n.nodes[destID]
	if !ok {
		n.mu.Unlock()
		return fmt.Errorf("send %s->%s: destination: %w", sourceID, destID, ErrNodeNotFound)
	}

	msg := source.messenger.CreatePair(destID, payload, mode)
	dest.messenger.Receive(msg)

	sent, err := history.NewEvent(sourceID, history.EventMessage, payload, map[string]any{
		"destination": destID,
		"mode":        string(mode),
	})
	if err != nil {
		n.mu.Unlock()
		return fmt.Errorf("send %s->%s: %w", sourceID, destID, err)
	}
	received, err := history.NewEvent(destID, history.EventReceive, payload, map[string]any{
		"source": sourceID,
	})
	if err != nil {
		n.mu.Unlock()
		return fmt.Errorf("send %s->%s: %w", sourceID, destID, err)
	}

	n.memory.Record(sourceID, sent)
	n.memory.Record(destID, received)
	n.recomputeActivityLocked()
	hook := n.hook
	n.mu.Unlock()

	n.pace()
	if hook != nil {
		hook(sent)
		hook(received)
	}
	n.logger.Debug("message delivered",
		zap.String("source", sourceID),
		zap.String("destination", destID),
		zap.String("mode", string(mode)))
	return nil
}

// Broadcast records a receive event for the payload on every current
// neighbor of the source. Single hop only; it never recurses.
func (n *Network) Broadcast(sourceID string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}

	n.mu.Lock()
	source, ok := n.nodes[sourceID]
	if !ok {
		n.mu.Unlock()
		return fmt.Errorf("broadcast from %s: %w", sourceID, ErrNodeNotFound)
	}

	var delivered []history.Event
	for _, neighborID := range source.Neighbors() {
		neighbor := n.nodes[neighborID]
		msg := source.messenger.CreatePair(neighborID, payload, messenger.ModeRegular)
		neighbor.messenger.Receive(msg)

		ev, err := history.NewEvent(neighborID, history.EventReceive, payload, map[string]any{
			"source":    sourceID,
			"broadcast": true,
		})
		if err != nil {
			n.mu.Unlock()
			return fmt.Errorf("broadcast from %s: %w", sourceID, err)
		}
		n.memory.Record(neighborID, ev)
		delivered = append(delivered, ev)
	}
	n.recomputeActivityLocked()
	hook := n.hook
	n.mu.Unlock()

	n.pace()
	if hook != nil {
		for _, ev := range delivered {
			hook(ev)
		}
	}
	n.logger.Debug("broadcast delivered",
		zap.String("source", sourceID),
		zap.Int("recipients", len(delivered)))
	return nil
}

// RecordEvent appends an event to an agent's timeline through the shared
// memory space. Every event recorded this way reaches the event hook, same
// as events produced by SendMessage and Broadcast.
func (n *Network) RecordEvent(agentID string, ev history.Event) {
	n.mu.Lock()
	n.memory.Record(agentID, ev)
	n.recomputeActivityLocked()
	hook := n.hook
	n.mu.Unlock()

	if hook != nil {
		hook(ev)
	}
}

// QueryAggregate scans the timelines of every node correlated with the
// querying node for events containing the query text.
func (n *Network) QueryAggregate(nodeID, query string) (*history.QueryResult, error) {
	n.mu.RLock()
	_, ok := n.nodes[nodeID]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("query from %s: %w", nodeID, ErrNodeNotFound)
	}
	return n.memory.QueryNonLocal(nodeID, query)
}

// SpacetimeBridge derives the bridge descriptor between two nodes for a
// temporal offset. Pure read; the graph is never mutated.
func (n *Network) SpacetimeBridge(idA, idB string, temporalOffset float64) (*Bridge, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	a, ok := n.nodes[idA]
	if !ok {
		return nil, fmt.Errorf("bridge %s<->%s: %w", idA, idB, ErrNodeNotFound)
	}
	b, ok := n.nodes[idB]
	if !ok {
		return nil, fmt.Errorf("bridge %s<->%s: %w", idA, idB, ErrNodeNotFound)
	}

	var path []string
	if stored, ok := n.routes[route{idA, idB}]; ok {
		path = append(path, stored...)
	} else if found, err := n.searchPathLocked(idA, idB); err == nil {
		path = found
	}

	spatial := a.position.DistanceTo(b.position)
	effective := Position{spatial, temporalOffset, 0}.DistanceTo(Position{})

	return &Bridge{
		ID:                  fmt.Sprintf("bridge_%s_%s", idA, idB),
		Nodes:               [2]string{idA, idB},
		Path:                path,
		SpatialDistance:     spatial,
		TemporalOffset:      temporalOffset,
		SpacetimeDistance:   effective,
		Strength:            1.0 / (1.0 + effective),
		TranscendsClassical: temporalOffset != 0 || spatial > n.opts.DirectLinkRadius,
	}, nil
}

// Resonate broadcasts a resonance payload from the first node (sorted order)
// and reports per-node mean link strength. Needs at least two nodes.
func (n *Network) Resonate(frequency float64) (*ResonanceReport, error) {
	ids := n.NodeIDs()
	if len(ids) < 2 {
		return nil, fmt.Errorf("resonate: %w: have %d, need 2", ErrInsufficientNodes, len(ids))
	}

	sourceID := ids[0]
	payload := map[string]any{
		"broadcast_state":     "GHZ",
		"resonance_frequency": frequency,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
	}
	if err := n.Broadcast(sourceID, payload); err != nil {
		return nil, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	report := &ResonanceReport{
		SourceID:  sourceID,
		Frequency: frequency,
		Coherence: n.memory.Coherence(),
	}
	for _, id := range ids {
		node := n.nodes[id]
		var total float64
		for _, s := range node.links {
			total += s
		}
		mean := 0.0
		if len(node.links) > 0 {
			mean = total / float64(len(node.links))
		}
		report.Nodes = append(report.Nodes, NodeResonance{
			NodeID:       id,
			Connections:  len(node.links),
			MeanStrength: mean,
		})
	}
	return report, nil
}

// TopologySnapshot returns the full read-only network report.
func (n *Network) TopologySnapshot() *Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()

	snap := &Snapshot{
		NodeCount:   len(n.nodes),
		Nodes:       make(map[string]NodeSnapshot, len(n.nodes)),
		IsActive:    n.active,
		RelayRoutes: make(map[string][]string, len(n.routes)),
		CoherenceReport: CoherenceReport{
			AgentCount:        n.memory.TimelineCount(),
			CorrelationGraph:  n.memory.CorrelationGraph(),
			TotalInteractions: n.memory.TotalEvents(),
			Coherence:         n.memory.Coherence(),
		},
	}
	for id, node := range n.nodes {
		snap.Nodes[id] = NodeSnapshot{
			Position:      node.position,
			Connections:   node.Neighbors(),
			LinkStrengths: node.linkStrengths(),
			EventCount:    node.timeline.EventCount(),
		}
	}
	for r, path := range n.routes {
		snap.RelayRoutes[r.src+"->"+r.dst] = append([]string{}, path...)
	}
	return snap
}

// Status summarizes the activity computation.
type Status struct {
	NodeCount      int     `json:"node_count"`
	IsActive       bool    `json:"is_active"`
	ActivityMetric float64 `json:"activity_metric"`
	Connectivity   float64 `json:"connectivity"`
	Coherence      float64 `json:"coherence"`
}

// Status returns the current activity summary.
func (n *Network) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return Status{
		NodeCount:      len(n.nodes),
		IsActive:       n.active,
		ActivityMetric: n.metric,
		Connectivity:   n.connectivity,
		Coherence:      n.memory.Coherence(),
	}
}

// Node returns a node by id.
func (n *Network) Node(id string) (*Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	node, ok := n.nodes[id]
	return node, ok
}

// NodeCount returns the number of nodes.
func (n *Network) NodeCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.nodes)
}

// NodeIDs returns all node ids, sorted.
func (n *Network) NodeIDs() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sortedIDsLocked()
}

// IsActive reports the derived activity flag.
func (n *Network) IsActive() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.active
}

func (n *Network) sortedIDsLocked() []string {
	ids := make([]string, 0, len(n.nodes))
	for id := range n.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// recomputeActivityLocked refreshes connectivity, the activity metric and
// the activity flag. Asymmetric adjacency is a core bug, not user error:
// it fails loudly.
func (n *Network) recomputeActivityLocked() {
	total := 0
	for id, node := range n.nodes {
		for neighborID := range node.links {
			if _, ok := n.nodes[neighborID].links[id]; !ok {
				panic(fmt.Sprintf("mesh: asymmetric adjacency %s->%s", id, neighborID))
			}
			total++
		}
	}

	count := len(n.nodes)
	n.connectivity = 0
	if count > 1 {
		n.connectivity = float64(total) / float64(count*(count-1))
	}
	n.metric = (n.connectivity + n.memory.Coherence()) / 2
	n.active = n.metric > n.opts.ActivityThreshold
}

// pace applies the optional transmission delay. Pacing only; it must never
// change observable outcomes.
func (n *Network) pace() {
	if n.opts.TransmissionDelay > 0 {
		time.Sleep(n.opts.TransmissionDelay)
	}
}

func reversed(path []string) []string {
	out := make([]string, len(path))
	for i, v := range path {
		out[len(path)-1-i] = v
	}
	return out
}
