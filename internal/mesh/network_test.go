package mesh

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/gaianet/quantum-mesh/internal/history"
	"github.com/gaianet/quantum-mesh/internal/messenger"
)

func newTestNetwork(t *testing.T) *Network {
	t.Helper()
	return NewNetwork(DefaultOptions(), nil)
}

func addNode(t *testing.T, n *Network, id string, pos Position) *Node {
	t.Helper()
	node, err := n.AddNode(id, pos)
	if err != nil {
		t.Fatalf("add node %s: %v", id, err)
	}
	return node
}

func TestDirectLinkWithinRadius(t *testing.T) {
	n := newTestNetwork(t)
	a := addNode(t, n, "a", Position{0, 0, 0})
	b := addNode(t, n, "b", Position{5, 0, 0})

	s, ok := a.LinkStrength("b")
	if !ok {
		t.Fatal("a and b must link directly at distance 5")
	}
	if s <= 0 || s > 1 {
		t.Errorf("strength out of (0,1]: %v", s)
	}
	if want := 1.0 / 6.0; math.Abs(s-want) > 1e-12 {
		t.Errorf("strength: expected %v, got %v", want, s)
	}
	if rs, _ := b.LinkStrength("a"); rs != s {
		t.Errorf("link must be symmetric: %v vs %v", s, rs)
	}
}

// The small-network rule counts the node being added: a distant third node
// still links directly because 3 <= 3.
func TestSmallNetworkCountsNewNode(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "a", Position{0, 0, 0})
	addNode(t, n, "b", Position{5, 0, 0})
	c := addNode(t, n, "c", Position{100, 0, 0})

	if !c.Linked("a") || !c.Linked("b") {
		t.Fatal("third node must link directly despite distance")
	}
	sa, _ := c.LinkStrength("a")
	if want := 1.0 / 101.0; math.Abs(sa-want) > 1e-12 {
		t.Errorf("c-a strength: expected %v, got %v", want, sa)
	}
}

func TestDistantFourthNodeRelays(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "a", Position{0, 0, 0})
	addNode(t, n, "b", Position{5, 0, 0})
	addNode(t, n, "c", Position{8, 0, 0})
	d := addNode(t, n, "d", Position{14, 0, 0})

	// d is within radius of b (9) and c (6); only a (14) is reached by relay.
	if _, ok := d.LinkStrength("c"); !ok {
		t.Fatal("d must link directly to c at distance 6")
	}
	sa, ok := d.LinkStrength("a")
	if !ok {
		t.Fatal("d must reach a through relay")
	}
	path, err := n.RelayPath("d", "a")
	if err != nil {
		t.Fatalf("relay path: %v", err)
	}
	if path[0] != "d" || path[len(path)-1] != "a" {
		t.Errorf("path endpoints wrong: %v", path)
	}
	hops := float64(len(path) - 1)
	if math.Abs(sa-1.0/hops) > 1e-12 {
		t.Errorf("relay strength: expected 1/%v, got %v", hops, sa)
	}
}

func TestRelayPathReversal(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "a", Position{0, 0, 0})
	addNode(t, n, "b", Position{5, 0, 0})
	addNode(t, n, "c", Position{8, 0, 0})
	addNode(t, n, "d", Position{14, 0, 0})

	forward, err := n.RelayPath("d", "a")
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	backward, err := n.RelayPath("a", "d")
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	if len(forward) != len(backward) {
		t.Fatalf("lengths differ: %v vs %v", forward, backward)
	}
	for i := range forward {
		if forward[i] != backward[len(backward)-1-i] {
			t.Errorf("backward is not forward reversed: %v vs %v", forward, backward)
			break
		}
	}
}

// Strength never increases with distance among nodes added past the
// small-network phase.
func TestStrengthMonotoneInDistance(t *testing.T) {
	n := newTestNetwork(t)
	anchor := addNode(t, n, "anchor", Position{0, 0, 0})
	addNode(t, n, "pad1", Position{1, 0, 0})
	addNode(t, n, "pad2", Position{2, 0, 0})

	distances := []float64{3, 5, 7, 9}
	prev := math.Inf(1)
	for i, d := range distances {
		id := string(rune('w' + i))
		addNode(t, n, id, Position{d, 0, 0})
		s, ok := anchor.LinkStrength(id)
		if !ok {
			t.Fatalf("anchor must link to %s at distance %v", id, d)
		}
		if s > prev {
			t.Errorf("strength increased with distance at %v: %v > %v", d, s, prev)
		}
		prev = s
	}
}

func TestAdjacencySymmetryInvariant(t *testing.T) {
	n := newTestNetwork(t)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		addNode(t, n, id, Position{float64(len(id)) * 3, float64(len(n.nodes)), 0})
	}
	snap := n.TopologySnapshot()
	for id, ns := range snap.Nodes {
		for _, peer := range ns.Connections {
			found := false
			for _, back := range snap.Nodes[peer].Connections {
				if back == id {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("asymmetric adjacency: %s lists %s but not vice versa", id, peer)
			}
		}
	}
}

func TestDuplicateNodeRejected(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "a", Position{0, 0, 0})
	if _, err := n.AddNode("a", Position{1, 1, 1}); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("expected ErrDuplicateNode, got %v", err)
	}
	if n.NodeCount() != 1 {
		t.Errorf("duplicate add must not change the network: %d nodes", n.NodeCount())
	}
}

func TestSendMessageRecordsBothSides(t *testing.T) {
	n := newTestNetwork(t)
	a := addNode(t, n, "a", Position{0, 0, 0})
	b := addNode(t, n, "b", Position{1, 0, 0})

	err := n.SendMessage("a", "b", map[string]any{"text": "ping"}, messenger.ModeRegular)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if got := a.Timeline().EventCount(); got != 1 {
		t.Errorf("source event count: expected 1, got %d", got)
	}
	if got := b.Timeline().EventCount(); got != 1 {
		t.Errorf("destination event count: expected 1, got %d", got)
	}
	events := b.Timeline().Events()
	if events[0].Context["source"] != "a" {
		t.Errorf("receive context missing source: %v", events[0].Context)
	}
}

func TestSendToMissingNodeLeavesSourceUntouched(t *testing.T) {
	n := newTestNetwork(t)
	a := addNode(t, n, "a", Position{0, 0, 0})

	err := n.SendMessage("a", "ghost", map[string]any{"text": "hello"}, messenger.ModeRegular)
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	if got := a.Timeline().EventCount(); got != 0 {
		t.Errorf("failed send must not record events: %d", got)
	}
}

func TestSendRejectsUnknownMode(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "a", Position{0, 0, 0})
	addNode(t, n, "b", Position{1, 0, 0})
	err := n.SendMessage("a", "b", nil, messenger.TransferMode("telepathy"))
	if !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
}

func TestSuperdenseDeliveryIdentical(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "a", Position{0, 0, 0})
	b := addNode(t, n, "b", Position{1, 0, 0})

	if err := n.SendMessage("a", "b", map[string]any{"k": "v"}, messenger.ModeSuperdense); err != nil {
		t.Fatalf("superdense send: %v", err)
	}
	if got := b.Timeline().EventCount(); got != 1 {
		t.Errorf("superdense must deliver like regular: %d events", got)
	}
	stats := b.Messenger().Stats()
	if stats.MessagesReceived != 1 {
		t.Errorf("expected 1 received message, got %d", stats.MessagesReceived)
	}
}

func TestBroadcastReachesNeighborsOnly(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "a", Position{0, 0, 0})
	b := addNode(t, n, "b", Position{5, 0, 0})
	c := addNode(t, n, "c", Position{8, 0, 0})

	if err := n.Broadcast("a", map[string]any{"note": "wave"}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if b.Timeline().EventCount() != 1 || c.Timeline().EventCount() != 1 {
		t.Error("all neighbors must receive the broadcast")
	}
	a, _ := n.Node("a")
	if a.Timeline().EventCount() != 0 {
		t.Error("broadcast source must not record a receive event")
	}
}

func TestQueryAggregateSubsetOfCorrelated(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "a", Position{0, 0, 0})
	addNode(t, n, "b", Position{1, 0, 0})
	addNode(t, n, "c", Position{2, 0, 0})

	// Identical traffic drives timelines correlated.
	for i := 0; i < 4; i++ {
		if err := n.SendMessage("a", "b", map[string]any{"text": "orbital survey results"}, ""); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	result, err := n.QueryAggregate("a", "survey")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	correlated := make(map[string]bool)
	for _, id := range result.CorrelatedAgents {
		correlated[id] = true
	}
	for _, m := range result.Matches {
		if !correlated[m.AgentID] {
			t.Errorf("match from uncorrelated agent %s", m.AgentID)
		}
		if m.Correlation <= 0 {
			t.Errorf("correlation annotation must be positive: %v", m.Correlation)
		}
	}

	if _, err := n.QueryAggregate("ghost", "anything"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestSpacetimeBridge(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "a", Position{0, 0, 0})
	addNode(t, n, "b", Position{3, 4, 0})

	before := n.TopologySnapshot()
	bridge, err := n.SpacetimeBridge("a", "b", 12.0)
	if err != nil {
		t.Fatalf("bridge: %v", err)
	}
	if math.Abs(bridge.SpatialDistance-5.0) > 1e-12 {
		t.Errorf("spatial distance: expected 5, got %v", bridge.SpatialDistance)
	}
	if math.Abs(bridge.SpacetimeDistance-13.0) > 1e-12 {
		t.Errorf("spacetime distance: expected 13, got %v", bridge.SpacetimeDistance)
	}
	if want := 1.0 / 14.0; math.Abs(bridge.Strength-want) > 1e-12 {
		t.Errorf("strength: expected %v, got %v", want, bridge.Strength)
	}
	if !bridge.TranscendsClassical {
		t.Error("non-zero temporal offset must transcend classical limits")
	}

	after := n.TopologySnapshot()
	if len(after.Nodes["a"].Connections) != len(before.Nodes["a"].Connections) {
		t.Error("bridge derivation must not mutate the graph")
	}

	if _, err := n.SpacetimeBridge("a", "ghost", 0); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestResonateNeedsTwoNodes(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "solo", Position{0, 0, 0})
	if _, err := n.Resonate(432.0); !errors.Is(err, ErrInsufficientNodes) {
		t.Errorf("expected ErrInsufficientNodes, got %v", err)
	}

	addNode(t, n, "tutti", Position{1, 0, 0})
	report, err := n.Resonate(432.0)
	if err != nil {
		t.Fatalf("resonate: %v", err)
	}
	if report.SourceID != "solo" {
		t.Errorf("source must be first sorted node, got %s", report.SourceID)
	}
	if len(report.Nodes) != 2 {
		t.Errorf("expected 2 node entries, got %d", len(report.Nodes))
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "a", Position{0, 0, 0})
	addNode(t, n, "b", Position{5, 0, 0})
	addNode(t, n, "c", Position{8, 0, 0})
	addNode(t, n, "d", Position{14, 0, 0})
	if err := n.SendMessage("a", "b", map[string]any{"text": "hello"}, ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	snap := n.TopologySnapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Snapshot
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.NodeCount != snap.NodeCount {
		t.Errorf("node count: %d vs %d", back.NodeCount, snap.NodeCount)
	}
	for id, ns := range snap.Nodes {
		got, ok := back.Nodes[id]
		if !ok {
			t.Fatalf("node %s lost in round trip", id)
		}
		if len(got.Connections) != len(ns.Connections) {
			t.Errorf("%s connections: %v vs %v", id, got.Connections, ns.Connections)
		}
		for peer, s := range ns.LinkStrengths {
			if math.Abs(got.LinkStrengths[peer]-s) > 1e-9 {
				t.Errorf("%s->%s strength drifted: %v vs %v", id, peer, got.LinkStrengths[peer], s)
			}
		}
	}
	for key, path := range snap.RelayRoutes {
		if len(back.RelayRoutes[key]) != len(path) {
			t.Errorf("route %s lost: %v vs %v", key, back.RelayRoutes[key], path)
		}
	}
}

func TestEventHookSeesAllRecordedEvents(t *testing.T) {
	n := newTestNetwork(t)
	addNode(t, n, "a", Position{0, 0, 0})
	addNode(t, n, "b", Position{1, 0, 0})

	var seen []history.Event
	n.SetEventHook(func(ev history.Event) { seen = append(seen, ev) })

	if err := n.SendMessage("a", "b", map[string]any{"text": "ping"}, ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("send must fire the hook for both sides, got %d", len(seen))
	}

	ev, err := history.NewEvent("a", history.EventResponse, map[string]any{"text": "an answer"}, nil)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	n.RecordEvent("a", ev)

	if len(seen) != 3 {
		t.Fatalf("directly recorded events must fire the hook, got %d", len(seen))
	}
	if seen[2].Fingerprint != ev.Fingerprint {
		t.Errorf("hook received a different event: %+v", seen[2])
	}
	node, _ := n.Node("a")
	if node.Timeline().EventCount() != 2 {
		t.Errorf("recorded event must land on the timeline, got %d events", node.Timeline().EventCount())
	}
}

func TestActivityThreshold(t *testing.T) {
	n := NewNetwork(Options{ActivityThreshold: 0.6}, nil)
	addNode(t, n, "a", Position{0, 0, 0})
	addNode(t, n, "b", Position{1, 0, 0})

	// Two fully linked nodes: connectivity 1, coherence 1/sqrt(2).
	st := n.Status()
	want := (1.0 + 1.0/math.Sqrt(2)) / 2
	if math.Abs(st.ActivityMetric-want) > 1e-12 {
		t.Errorf("metric: expected %v, got %v", want, st.ActivityMetric)
	}
	if !st.IsActive {
		t.Errorf("metric %v must exceed threshold 0.6", st.ActivityMetric)
	}
}
