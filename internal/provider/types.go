// Package provider connects mesh nodes to external LLM collaborators.
// A collaborator generates message content for a node; the mesh core never
// depends on this package.
package provider

import (
	"context"
	"errors"
	"time"
)

// Collaborator is an external text generator bound to mesh nodes.
// Send must never return an empty completion with a nil error: a failed or
// empty generation is an error value, so callers can tell it apart from a
// genuinely empty answer they chose to accept.
type Collaborator interface {
	ID() string
	Name() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyCompletion indicates the collaborator answered with no text.
var ErrEmptyCompletion = errors.New("empty completion")

func isEmptyCompletion(err error) bool { return errors.Is(err, ErrEmptyCompletion) }

// Config holds settings for one collaborator instance.
type Config struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"` // "anthropic" or "openai"
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Model    string            `json:"model"`
	Extra    map[string]string `json:"extra,omitempty"`
	Timeout  time.Duration     `json:"timeout,omitempty"`
}
