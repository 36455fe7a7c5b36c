package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router holds the registered collaborators and routes prompts for mesh
// nodes: a node can be bound to a specific collaborator and carry a
// fallback chain; everything else goes to the default.
type Router struct {
	mu            sync.RWMutex
	collaborators map[string]Collaborator
	bindings      map[string]string   // node id -> collaborator id
	fallbacks     map[string][]string // node id -> fallback chain
	defaultID     string
	logger        *zap.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		collaborators: make(map[string]Collaborator),
		bindings:      make(map[string]string),
		fallbacks:     make(map[string][]string),
		logger:        logger,
	}
}

// Register adds a collaborator. The first one registered becomes the default.
func (r *Router) Register(c Collaborator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collaborators[c.ID()] = c
	if r.defaultID == "" {
		r.defaultID = c.ID()
	}
	r.logger.Info("collaborator registered",
		zap.String("id", c.ID()), zap.String("name", c.Name()))
}

// SetDefault overrides the default collaborator.
func (r *Router) SetDefault(id string) {
	r.mu.Lock()
	r.defaultID = id
	r.mu.Unlock()
}

// Bind ties a node to a specific collaborator.
func (r *Router) Bind(nodeID, collaboratorID string) {
	r.mu.Lock()
	r.bindings[nodeID] = collaboratorID
	r.mu.Unlock()
}

// SetFallbacks configures the fallback chain tried when the node's primary
// collaborator fails.
func (r *Router) SetFallbacks(nodeID string, ids []string) {
	r.mu.Lock()
	r.fallbacks[nodeID] = ids
	r.mu.Unlock()
}

// Ask routes a prompt for a node through its collaborator, walking the
// fallback chain on failure. The last failure is returned when every
// collaborator fails.
func (r *Router) Ask(ctx context.Context, nodeID, prompt string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	primary := r.resolve(nodeID)
	if primary == nil {
		return "", fmt.Errorf("ask for %s: no collaborator available", nodeID)
	}

	text, err := primary.Send(ctx, prompt)
	if err == nil {
		return text, nil
	}
	r.logger.Warn("primary collaborator failed, trying fallbacks",
		zap.String("node", nodeID), zap.Error(err))

	for _, id := range r.fallbacks[nodeID] {
		fb, ok := r.collaborators[id]
		if !ok {
			continue
		}
		text, err = fb.Send(ctx, prompt)
		if err == nil {
			return text, nil
		}
		r.logger.Warn("fallback collaborator failed",
			zap.String("collaborator", id), zap.Error(err))
	}
	return "", fmt.Errorf("ask for %s: all collaborators failed: %w", nodeID, err)
}

// Collaborator returns a registered collaborator by id.
func (r *Router) Collaborator(id string) (Collaborator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collaborators[id]
	return c, ok
}

// Size returns the number of registered collaborators.
func (r *Router) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collaborators)
}

func (r *Router) resolve(nodeID string) Collaborator {
	if id, ok := r.bindings[nodeID]; ok {
		if c, ok := r.collaborators[id]; ok {
			return c
		}
	}
	if c, ok := r.collaborators[r.defaultID]; ok {
		return c
	}
	return nil
}
