package mesh

import (
	"math"
	"sort"

	"github.com/gaianet/quantum-mesh/internal/history"
	"github.com/gaianet/quantum-mesh/internal/messenger"
)

// Position locates a node in 3-D space. Used only by the distance-based
// link-forming policy.
type Position [3]float64

// DistanceTo returns the Euclidean distance to another position.
func (p Position) DistanceTo(q Position) float64 {
	var sum float64
	for i := range p {
		d := p[i] - q[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Node is a vertex of the mesh. Its timeline is the same object registered
// in the shared memory space; the network serializes all mutation.
type Node struct {
	id        string
	position  Position
	timeline  *history.Timeline
	messenger *messenger.Messenger
	links     map[string]float64 // neighbor id -> link strength in (0,1]
}

// ID returns the node id.
func (n *Node) ID() string { return n.id }

// Position returns the node's spatial position.
func (n *Node) Position() Position { return n.position }

// Timeline returns the node's shared timeline reference.
func (n *Node) Timeline() *history.Timeline { return n.timeline }

// Messenger returns the node's pair bookkeeping.
func (n *Node) Messenger() *messenger.Messenger { return n.messenger }

// Neighbors returns the sorted ids of all linked nodes.
func (n *Node) Neighbors() []string {
	ids := make([]string, 0, len(n.links))
	for id := range n.links {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LinkStrength returns the strength of the link to a neighbor, if linked.
func (n *Node) LinkStrength(neighborID string) (float64, bool) {
	s, ok := n.links[neighborID]
	return s, ok
}

// Linked reports whether the node has a link to the given id.
func (n *Node) Linked(neighborID string) bool {
	_, ok := n.links[neighborID]
	return ok
}

func (n *Node) linkStrengths() map[string]float64 {
	out := make(map[string]float64, len(n.links))
	for id, s := range n.links {
		out[id] = s
	}
	return out
}
