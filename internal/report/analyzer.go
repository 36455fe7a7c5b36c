package report

import (
	"math"
	"sort"

	"github.com/gaianet/quantum-mesh/internal/mesh"
)

// StrengthDistribution summarizes link strengths across the network.
// Counts directed entries, so every undirected link contributes twice.
type StrengthDistribution struct {
	Mean             float64 `json:"mean_strength"`
	Median           float64 `json:"median_strength"`
	Max              float64 `json:"max_strength"`
	Min              float64 `json:"min_strength"`
	StdDeviation     float64 `json:"std_deviation"`
	TotalConnections int     `json:"total_connections"`
}

// AnalyzeStrengths computes the link-strength distribution of a snapshot.
// Returns ok=false when the network has no links.
func AnalyzeStrengths(snap *mesh.Snapshot) (StrengthDistribution, bool) {
	var strengths []float64
	for _, node := range snap.Nodes {
		for _, s := range node.LinkStrengths {
			strengths = append(strengths, s)
		}
	}
	if len(strengths) == 0 {
		return StrengthDistribution{}, false
	}
	sort.Float64s(strengths)

	var sum float64
	for _, s := range strengths {
		sum += s
	}
	mean := sum / float64(len(strengths))

	var variance float64
	if len(strengths) > 1 {
		for _, s := range strengths {
			variance += (s - mean) * (s - mean)
		}
		variance /= float64(len(strengths) - 1)
	}

	mid := len(strengths) / 2
	median := strengths[mid]
	if len(strengths)%2 == 0 {
		median = (strengths[mid-1] + strengths[mid]) / 2
	}

	return StrengthDistribution{
		Mean:             mean,
		Median:           median,
		Max:              strengths[len(strengths)-1],
		Min:              strengths[0],
		StdDeviation:     math.Sqrt(variance),
		TotalConnections: len(strengths),
	}, true
}

// EmergenceProbability estimates how likely the network is to report active
// as it grows: a weighted blend of coherence, node saturation and traffic
// volume, clamped to [0,1].
func EmergenceProbability(snap *mesh.Snapshot) float64 {
	n := float64(snap.NodeCount)
	coherence := snap.CoherenceReport.Coherence
	saturation := n / (n + 1)
	traffic := math.Min(float64(snap.CoherenceReport.TotalInteractions)/100, 1.0)

	p := 0.4*coherence + 0.3*saturation + 0.3*traffic
	return math.Min(p, 1.0)
}

// Hubs returns the ids of the most-connected nodes, best first, at most
// three. Ties break by id for deterministic output.
func Hubs(snap *mesh.Snapshot) []string {
	type entry struct {
		id    string
		links int
	}
	entries := make([]entry, 0, len(snap.Nodes))
	for id, node := range snap.Nodes {
		entries = append(entries, entry{id, len(node.Connections)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].links != entries[j].links {
			return entries[i].links > entries[j].links
		}
		return entries[i].id < entries[j].id
	})

	limit := 3
	if len(entries) < limit {
		limit = len(entries)
	}
	hubs := make([]string, 0, limit)
	for _, e := range entries[:limit] {
		hubs = append(hubs, e.id)
	}
	return hubs
}
