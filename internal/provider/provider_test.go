package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func anthropicServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("x-api-key") == "" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"` + text + `"}],"stop_reason":"end_turn"}`))
	}))
}

func TestAnthropicSend(t *testing.T) {
	srv := anthropicServer(t, "hello from claude")
	defer srv.Close()

	c := NewAnthropic(Config{ID: "claude", Endpoint: srv.URL, APIKey: "k"}, nil)
	text, err := c.Send(context.Background(), "greet me")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if text != "hello from claude" {
		t.Errorf("unexpected completion: %q", text)
	}
}

func TestAnthropicEmptyCompletionIsError(t *testing.T) {
	srv := anthropicServer(t, "")
	defer srv.Close()

	c := NewAnthropic(Config{ID: "claude", Endpoint: srv.URL, APIKey: "k"}, nil)
	text, err := c.Send(context.Background(), "say nothing")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
	if text != "" {
		t.Errorf("failed send must not return text: %q", text)
	}
}

func TestOpenAISendAndConnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/models":
			w.Write([]byte(`{"data":[{"id":"gpt-4o-mini"}]}`))
		case "/chat/completions":
			w.Write([]byte(`{"choices":[{"message":{"content":"42"},"finish_reason":"stop"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewOpenAI(Config{ID: "oai", Endpoint: srv.URL, APIKey: "k"}, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	text, err := c.Send(context.Background(), "meaning of life?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if text != "42" {
		t.Errorf("unexpected completion: %q", text)
	}
}

type stubCollaborator struct {
	id   string
	text string
	err  error
}

func (s *stubCollaborator) ID() string                        { return s.id }
func (s *stubCollaborator) Name() string                      { return s.id }
func (s *stubCollaborator) Connect(context.Context) error     { return s.err }
func (s *stubCollaborator) Send(context.Context, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func TestRouterFallbackChain(t *testing.T) {
	r := NewRouter(nil)
	r.Register(&stubCollaborator{id: "broken", err: errors.New("down")})
	r.Register(&stubCollaborator{id: "backup", text: "fallback answer"})
	r.Bind("node-1", "broken")
	r.SetFallbacks("node-1", []string{"backup"})

	text, err := r.Ask(context.Background(), "node-1", "anyone there?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if text != "fallback answer" {
		t.Errorf("expected fallback answer, got %q", text)
	}
}

func TestRouterAllFailed(t *testing.T) {
	r := NewRouter(nil)
	r.Register(&stubCollaborator{id: "broken", err: errors.New("down")})

	if _, err := r.Ask(context.Background(), "node-1", "hello"); err == nil {
		t.Fatal("expected error when every collaborator fails")
	}
}

func TestRouterDefaultIsFirstRegistered(t *testing.T) {
	r := NewRouter(nil)
	r.Register(&stubCollaborator{id: "first", text: "from first"})
	r.Register(&stubCollaborator{id: "second", text: "from second"})

	text, err := r.Ask(context.Background(), "unbound-node", "hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if text != "from first" {
		t.Errorf("default must be first registered: %q", text)
	}
}
