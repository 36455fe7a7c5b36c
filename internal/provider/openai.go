package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// OpenAICollaborator talks to OpenAI-compatible chat completion APIs.
type OpenAICollaborator struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewOpenAI creates an OpenAI-compatible collaborator.
func NewOpenAI(cfg Config, logger *zap.Logger) *OpenAICollaborator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAICollaborator{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (c *OpenAICollaborator) ID() string   { return c.config.ID }
func (c *OpenAICollaborator) Name() string { return c.config.Name }

// chatURL builds the chat completions URL. Extra["path_model"] set to "true"
// inserts the model name into the path, for providers that route that way.
func (c *OpenAICollaborator) chatURL() string {
	if c.config.Extra["path_model"] == "true" && c.config.Model != "" {
		return c.config.Endpoint + "/" + c.config.Model + "/chat/completions"
	}
	return c.config.Endpoint + "/chat/completions"
}

// Connect verifies the API is reachable by listing models.
func (c *OpenAICollaborator) Connect(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.Endpoint+"/models", nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.config.ID, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.config.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("connect %s: API error %d: %s", c.config.ID, resp.StatusCode, string(respBody))
	}
	return nil
}

type openAIRequest struct {
	Model    string         `json:"model"`
	Messages []anthropicMsg `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Send asks the model for a completion of the prompt.
func (c *OpenAICollaborator) Send(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(openAIRequest{
		Model:    c.config.Model,
		Messages: []anthropicMsg{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("openai send: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.chatURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai send: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai send: API error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("openai send: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai send: %w", ErrEmptyCompletion)
	}
	return parsed.Choices[0].Message.Content, nil
}
