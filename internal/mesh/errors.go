package mesh

import "errors"

var (
	// ErrNodeNotFound indicates a referenced node id is absent. Expected,
	// caller-correctable; surfaced as a value, never a panic.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode indicates an add with an id already in the network.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrNoPath indicates relay search exhausted without a connection.
	// Not fatal: the pairing simply stays unlinked.
	ErrNoPath = errors.New("no relay path")

	// ErrInvalidNode indicates construction-time validation failed.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidMode indicates an unknown transfer mode.
	ErrInvalidMode = errors.New("invalid transfer mode")

	// ErrInsufficientNodes indicates an operation that needs more nodes
	// than the network currently has.
	ErrInsufficientNodes = errors.New("insufficient nodes")
)
