// Package report renders mesh snapshots for humans and computes summary
// statistics over them. Everything here is a pure function of a snapshot;
// nothing in this package mutates network state.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gaianet/quantum-mesh/internal/history"
	"github.com/gaianet/quantum-mesh/internal/mesh"
)

// Visualizer writes human-readable renderings of mesh state to its writer.
type Visualizer struct {
	w io.Writer
}

// NewVisualizer creates a visualizer writing to w. A nil writer means stdout.
func NewVisualizer(w io.Writer) *Visualizer {
	if w == nil {
		w = os.Stdout
	}
	return &Visualizer{w: w}
}

// Banner prints the program's welcome banner.
func (v *Visualizer) Banner() {
	fmt.Fprintln(v.w, strings.Repeat("=", 76))
	fmt.Fprintln(v.w, "  GAIANET QUANTUM MESH")
	fmt.Fprintln(v.w, "  distributed node graph with relay links and shared timelines")
	fmt.Fprintln(v.w, strings.Repeat("=", 76))
}

// NetworkState renders the full topology report.
func (v *Visualizer) NetworkState(snap *mesh.Snapshot) {
	rule := strings.Repeat("=", 76)
	fmt.Fprintf(v.w, "\n%s\nNETWORK STATE\n%s\n", rule, rule)

	status := "inactive"
	if snap.IsActive {
		status = "ACTIVE"
	}
	fmt.Fprintf(v.w, "\nStatus:       %s\n", status)
	fmt.Fprintf(v.w, "Nodes:        %d\n", snap.NodeCount)
	fmt.Fprintf(v.w, "Interactions: %d\n", snap.CoherenceReport.TotalInteractions)
	fmt.Fprintf(v.w, "Coherence:    %.4f\n", snap.CoherenceReport.Coherence)

	fmt.Fprintf(v.w, "\n%-20s %-26s %-12s %s\n", "Node", "Position", "Links", "Events")
	fmt.Fprintln(v.w, strings.Repeat("-", 76))
	for _, id := range sortedNodeIDs(snap) {
		node := snap.Nodes[id]
		pos := fmt.Sprintf("(%.1f, %.1f, %.1f)", node.Position[0], node.Position[1], node.Position[2])
		fmt.Fprintf(v.w, "%-20s %-26s %-12d %d\n", id, pos, len(node.Connections), node.EventCount)
	}

	fmt.Fprintf(v.w, "\n%-30s %s\n", "Link", "Strength")
	fmt.Fprintln(v.w, strings.Repeat("-", 76))
	for _, id := range sortedNodeIDs(snap) {
		node := snap.Nodes[id]
		for _, peer := range node.Connections {
			if peer < id {
				continue // each undirected link once
			}
			s := node.LinkStrengths[peer]
			fmt.Fprintf(v.w, "%-30s %s %.4f\n", id+" <-> "+peer, bar(s), s)
		}
	}

	if len(snap.RelayRoutes) > 0 {
		fmt.Fprintf(v.w, "\n%-30s %s\n", "Relay route", "Path")
		fmt.Fprintln(v.w, strings.Repeat("-", 76))
		keys := make([]string, 0, len(snap.RelayRoutes))
		for k := range snap.RelayRoutes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(v.w, "%-30s %s\n", k, strings.Join(snap.RelayRoutes[k], " -> "))
		}
	}
	fmt.Fprintf(v.w, "%s\n", rule)
}

// MessageTrace renders one message delivery.
func (v *Visualizer) MessageTrace(source, destination string, payload map[string]any, err error) {
	rule := strings.Repeat("=", 60)
	status := "delivered"
	if err != nil {
		status = "FAILED: " + err.Error()
	}
	body, _ := json.MarshalIndent(payload, "", "  ")
	fmt.Fprintf(v.w, "\n%s\nMESSAGE %s\n%s\n", rule, status, rule)
	fmt.Fprintf(v.w, "Source:      %s\n", source)
	fmt.Fprintf(v.w, "Destination: %s\n", destination)
	fmt.Fprintf(v.w, "Payload:     %s\n", body)
	fmt.Fprintf(v.w, "Timestamp:   %s\n%s\n", time.Now().Format(time.RFC3339), rule)
}

// QueryResult renders a non-local query outcome, showing at most five matches.
func (v *Visualizer) QueryResult(result *history.QueryResult) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintf(v.w, "\n%s\nNON-LOCAL QUERY\n%s\n", rule, rule)
	fmt.Fprintf(v.w, "Query:      %s\n", result.Query)
	fmt.Fprintf(v.w, "From:       %s\n", result.QueryingAgent)
	fmt.Fprintf(v.w, "Coherence:  %.4f\n", result.Coherence)
	fmt.Fprintf(v.w, "Correlated: %s\n", strings.Join(result.CorrelatedAgents, ", "))
	fmt.Fprintf(v.w, "\nMatches: %d\n", len(result.Matches))
	fmt.Fprintln(v.w, strings.Repeat("-", 70))

	for i, m := range result.Matches {
		if i == 5 {
			fmt.Fprintf(v.w, "... %d more\n", len(result.Matches)-5)
			break
		}
		content := m.Event.ContentText()
		if len(content) > 60 {
			content = content[:60] + "..."
		}
		fmt.Fprintf(v.w, "%d. %s (correlation %.4f, %s): %s\n",
			i+1, m.AgentID, m.Correlation, m.Event.Type, content)
	}
	fmt.Fprintf(v.w, "%s\n", rule)
}

// Bridge renders a spacetime bridge descriptor.
func (v *Visualizer) Bridge(b *mesh.Bridge) {
	rule := strings.Repeat("=", 70)
	path := "direct"
	if len(b.Path) > 0 {
		path = strings.Join(b.Path, " -> ")
	}
	transcends := "no"
	if b.TranscendsClassical {
		transcends = "YES"
	}
	fmt.Fprintf(v.w, "\n%s\nSPACETIME BRIDGE\n%s\n", rule, rule)
	fmt.Fprintf(v.w, "Bridge:              %s\n", b.ID)
	fmt.Fprintf(v.w, "Nodes:               %s <-> %s\n", b.Nodes[0], b.Nodes[1])
	fmt.Fprintf(v.w, "Path:                %s\n", path)
	fmt.Fprintf(v.w, "Spatial distance:    %.2f\n", b.SpatialDistance)
	fmt.Fprintf(v.w, "Temporal offset:     %.2f\n", b.TemporalOffset)
	fmt.Fprintf(v.w, "Spacetime distance:  %.2f\n", b.SpacetimeDistance)
	fmt.Fprintf(v.w, "Strength:            %s %.4f\n", bar(b.Strength), b.Strength)
	fmt.Fprintf(v.w, "Transcends classical: %s\n%s\n", transcends, rule)
}

// Resonance renders a resonance report.
func (v *Visualizer) Resonance(r *mesh.ResonanceReport) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintf(v.w, "\n%s\nHARMONIC RESONANCE @ %.1f Hz\n%s\n", rule, r.Frequency, rule)
	fmt.Fprintf(v.w, "Source:    %s\n", r.SourceID)
	fmt.Fprintf(v.w, "Coherence: %.4f\n\n", r.Coherence)
	fmt.Fprintf(v.w, "%-20s %-12s %s\n", "Node", "Links", "Mean strength")
	fmt.Fprintln(v.w, strings.Repeat("-", 70))
	for _, node := range r.Nodes {
		fmt.Fprintf(v.w, "%-20s %-12d %s %.4f\n",
			node.NodeID, node.Connections, bar(node.MeanStrength), node.MeanStrength)
	}
	fmt.Fprintf(v.w, "%s\n", rule)
}

// ExportSnapshot writes the snapshot as indented JSON to a file.
func ExportSnapshot(snap *mesh.Snapshot, filename string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	return nil
}

func bar(strength float64) string {
	n := int(strength * 20)
	if n < 0 {
		n = 0
	}
	if n > 20 {
		n = 20
	}
	return strings.Repeat("#", n)
}

func sortedNodeIDs(snap *mesh.Snapshot) []string {
	ids := make([]string, 0, len(snap.Nodes))
	for id := range snap.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
