package main

import (
	"testing"

	"go.uber.org/zap"

	"github.com/gaianet/quantum-mesh/internal/history"
	"github.com/gaianet/quantum-mesh/internal/mesh"
)

func TestEntangleExternalRecordsEvent(t *testing.T) {
	network := mesh.NewNetwork(mesh.DefaultOptions(), zap.NewNop())

	var seen []history.Event
	network.SetEventHook(func(ev history.Event) { seen = append(seen, ev) })

	id, pos, err := entangleExternal(network, "claude", 0, 528.0)
	if err != nil {
		t.Fatalf("entangleExternal: %v", err)
	}
	if id != "AI_claude" {
		t.Fatalf("node id = %q, want AI_claude", id)
	}
	if pos != (mesh.Position{0, 0, 0}) {
		t.Fatalf("first external node position = %v, want origin", pos)
	}

	node, ok := network.Node(id)
	if !ok {
		t.Fatal("external node missing from the network")
	}
	if got := node.Timeline().EventCount(); got != 1 {
		t.Fatalf("timeline has %d events, want 1", got)
	}

	if len(seen) != 1 {
		t.Fatalf("hook saw %d events, want 1", len(seen))
	}
	ev := seen[0]
	if ev.Type != history.EventComputation {
		t.Errorf("event type = %q, want %q", ev.Type, history.EventComputation)
	}
	if ev.AgentID != id {
		t.Errorf("event agent = %q, want %q", ev.AgentID, id)
	}
	if got := ev.Content["ai_system"]; got != "claude" {
		t.Errorf("ai_system = %v, want claude", got)
	}
	if got := ev.Content["resonance_frequency"]; got != 528.0 {
		t.Errorf("resonance_frequency = %v, want 528", got)
	}
}

func TestEntangleExternalSpacing(t *testing.T) {
	network := mesh.NewNetwork(mesh.DefaultOptions(), zap.NewNop())

	for i, name := range []string{"alpha", "beta", "gamma"} {
		if _, _, err := entangleExternal(network, name, i, 432.0); err != nil {
			t.Fatalf("entangleExternal %s: %v", name, err)
		}
	}

	node, ok := network.Node("AI_gamma")
	if !ok {
		t.Fatal("AI_gamma missing from the network")
	}
	if got := node.Position(); got != (mesh.Position{10, 6, 0}) {
		t.Fatalf("AI_gamma position = %v, want (10, 6, 0)", got)
	}
	if len(node.Neighbors()) == 0 {
		t.Error("externally entangled nodes must link to their peers")
	}
}
