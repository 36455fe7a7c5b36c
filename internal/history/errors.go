package history

import "errors"

var (
	// ErrInvalidEvent indicates an event failed construction-time validation.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrNotRegistered indicates the agent has no timeline in shared memory.
	ErrNotRegistered = errors.New("agent not registered")

	// ErrCollapsed indicates the timeline was already measured and can no
	// longer branch.
	ErrCollapsed = errors.New("timeline collapsed")
)
