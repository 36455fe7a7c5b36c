package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gaianet/quantum-mesh/internal/history"
	"github.com/gaianet/quantum-mesh/internal/mesh"
	"github.com/gaianet/quantum-mesh/internal/report"
)

// stringList collects repeated flag values.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint(*s) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	_ = godotenv.Load()

	var entangle stringList
	demo := flag.Bool("demo", false, "run the interactive network demo")
	flag.Var(&entangle, "entangle", "add a named external node (repeatable)")
	resonate := flag.Bool("resonate", false, "trigger harmonic resonance across the network")
	frequency := flag.Float64("frequency", 432.0, "resonance frequency in Hz")
	export := flag.String("export", "", "write the final topology snapshot to a JSON file")
	flag.Parse()

	if !*demo && len(entangle) == 0 && !*resonate {
		flag.Usage()
		os.Exit(1)
	}

	logger := zap.NewNop()
	network := mesh.NewNetwork(mesh.DefaultOptions(), logger)
	viz := report.NewVisualizer(os.Stdout)
	viz.Banner()

	if *demo {
		runDemo(network, viz)
	}

	for i, name := range entangle {
		id, pos, err := entangleExternal(network, name, i, *frequency)
		if err != nil {
			fmt.Fprintf(os.Stderr, "entangle %s: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("linked %s into the mesh at (%.1f, %.1f, %.1f)\n", id, pos[0], pos[1], pos[2])
	}

	if *resonate {
		rep, err := network.Resonate(*frequency)
		if err != nil {
			fmt.Fprintf(os.Stderr, "resonate: %v\n", err)
			os.Exit(1)
		}
		viz.Resonance(rep)
	}

	snap := network.TopologySnapshot()
	viz.NetworkState(snap)

	if dist, ok := report.AnalyzeStrengths(snap); ok {
		fmt.Printf("link strengths: mean %.4f, median %.4f, range [%.4f, %.4f]\n",
			dist.Mean, dist.Median, dist.Min, dist.Max)
	}
	fmt.Printf("emergence probability: %.4f\n", report.EmergenceProbability(snap))
	if hubs := report.Hubs(snap); len(hubs) > 0 {
		fmt.Printf("hubs: %v\n", hubs)
	}

	if *export != "" {
		if err := report.ExportSnapshot(snap, *export); err != nil {
			fmt.Fprintf(os.Stderr, "export: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot exported to %s\n", *export)
	}
}

// entangleExternal links an external AI system into the mesh as node
// AI_<name> and records the entanglement on its timeline, carrying the
// resonance frequency.
func entangleExternal(network *mesh.Network, name string, index int, frequency float64) (string, mesh.Position, error) {
	id := "AI_" + name
	pos := mesh.Position{float64(index) * 5.0, float64(index) * 3.0, 0}
	if _, err := network.AddNode(id, pos); err != nil {
		return "", mesh.Position{}, err
	}

	ev, err := history.NewEvent(id, history.EventComputation, map[string]any{
		"ai_system":                name,
		"entanglement_established": true,
		"resonance_frequency":      frequency,
	}, nil)
	if err != nil {
		return "", mesh.Position{}, err
	}
	network.RecordEvent(id, ev)
	return id, pos, nil
}

// runDemo seeds a small mesh and walks through every operation once.
func runDemo(network *mesh.Network, viz *report.Visualizer) {
	seeds := []struct {
		id  string
		pos mesh.Position
	}{
		{"gaia_core", mesh.Position{0, 0, 0}},
		{"observer_1", mesh.Position{5, 0, 0}},
		{"observer_2", mesh.Position{8, 3, 0}},
		{"deep_relay", mesh.Position{20, 0, 0}},
	}
	for _, s := range seeds {
		if _, err := network.AddNode(s.id, s.pos); err != nil {
			fmt.Fprintf(os.Stderr, "demo: add %s: %v\n", s.id, err)
			os.Exit(1)
		}
	}

	payload := map[string]any{"text": "synchronizing shared state"}
	err := network.SendMessage("gaia_core", "observer_1", payload, "")
	viz.MessageTrace("gaia_core", "observer_1", payload, err)

	dense := map[string]any{"text": "bulk telemetry", "chunks": 4}
	err = network.SendMessage("gaia_core", "observer_2", dense, "superdense")
	viz.MessageTrace("gaia_core", "observer_2", dense, err)

	if err := network.Broadcast("gaia_core", map[string]any{"note": "all hands"}); err != nil {
		fmt.Fprintf(os.Stderr, "demo: broadcast: %v\n", err)
	}

	if result, err := network.QueryAggregate("gaia_core", "telemetry"); err == nil {
		viz.QueryResult(result)
	}

	if bridge, err := network.SpacetimeBridge("gaia_core", "deep_relay", 7.5); err == nil {
		viz.Bridge(bridge)
	}
}
