// Package llm is a REST client for an Ollama- or OpenAI-compatible model
// endpoint, providing text embeddings and prompt completion. Transient
// provider failures are not retried here; retry policy belongs to callers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ErrGeneration wraps failures of the completion endpoint.
var ErrGeneration = errors.New("llm: generation failed")

// Client calls one provider endpoint for both embeddings and generation.
type Client struct {
	baseURL       string
	apiKey        string
	embedModel    string
	generateModel string
	client        *http.Client
}

// Config configures the provider client. APIKeyEnv names an environment
// variable; an empty value means no auth header (local Ollama).
type Config struct {
	BaseURL       string
	APIKeyEnv     string
	EmbedModel    string
	GenerateModel string
	Timeout       time.Duration
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm: base url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        key,
		embedModel:    cfg.EmbedModel,
		generateModel: cfg.GenerateModel,
		client:        &http.Client{Timeout: timeout},
	}, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	// Input and Prompt are both set so either an OpenAI-compatible or an
	// Ollama-native endpoint accepts the request.
	req := map[string]any{
		"model":  c.embedModel,
		"input":  text,
		"prompt": text,
	}
	payload, err := c.post(ctx, "/api/embeddings", req)
	if err != nil {
		return nil, fmt.Errorf("llm: embed: %w", err)
	}

	var openaiOut struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil &&
		len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
		return openaiOut.Data[0].Embedding, nil
	}

	var ollamaOut struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return ollamaOut.Embedding, nil
	}

	return nil, fmt.Errorf("llm: embed: no embedding in response")
}

// Generate completes the prompt and returns the model's text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := map[string]any{
		"model":  c.generateModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			// Conservative sampling keeps answers anchored to the prompt's
			// retrieved context.
			"temperature":    0.2,
			"top_p":          0.85,
			"top_k":          40,
			"repeat_penalty": 1.2,
		},
	}
	payload, err := c.post(ctx, "/api/generate", req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	var ollamaOut struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && ollamaOut.Response != "" {
		return ollamaOut.Response, nil
	}

	var openaiOut struct {
		Choices []struct {
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil &&
		len(openaiOut.Choices) > 0 && openaiOut.Choices[0].Text != "" {
		return openaiOut.Choices[0].Text, nil
	}

	return "", fmt.Errorf("%w: no completion in response", ErrGeneration)
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned %s", path, resp.Status)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return payload, nil
}
