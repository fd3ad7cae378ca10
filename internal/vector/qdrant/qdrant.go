// Package qdrant is a minimal REST client for a shared Qdrant collection.
// All agents' chunks live in one collection; tenant isolation is a payload
// filter on agent_id applied to every search and delete.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kestrelworks/docent/internal/vector"
)

// Store talks to Qdrant over HTTP. It assumes cosine distance and creates
// the collection on first upsert, once the vector dimension is known.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	createMu sync.Mutex
	created  bool
}

// Config configures the Qdrant client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// New creates a Store.
func New(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Upsert writes all entries, creating the collection first if needed.
func (s *Store) Upsert(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.ensureCreated(ctx, len(entries[0].Vector)); err != nil {
		return err
	}

	points := make([]map[string]any, len(entries))
	for i, e := range entries {
		points[i] = map[string]any{
			"id":      e.ID,
			"vector":  e.Vector,
			"payload": e.Payload,
		}
	}
	body := map[string]any{"points": points}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body)
}

// Search runs an agent-filtered similarity query.
func (s *Store) Search(ctx context.Context, vec []float32, agentID string, k int) ([]vector.Hit, error) {
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        k,
		"with_payload": true,
		"filter":       matchFilter("agent_id", agentID),
	}
	var resp struct {
		Result []struct {
			Score   float32        `json:"score"`
			Payload vector.Payload `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}

	hits := make([]vector.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, vector.Hit{
			Text:       r.Payload.Text,
			Filename:   r.Payload.Filename,
			DocumentID: r.Payload.DocumentID,
			Score:      r.Score,
		})
	}
	return hits, nil
}

// DeleteByDocument removes every point tagged with the document.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	return s.deleteByFilter(ctx, matchFilter("document_id", documentID))
}

// DeleteByAgent removes every point tagged with the agent.
func (s *Store) DeleteByAgent(ctx context.Context, agentID string) error {
	return s.deleteByFilter(ctx, matchFilter("agent_id", agentID))
}

// ensureCreated serializes the lazy collection create so concurrent uploads
// issue it exactly once. A failed create is retried on the next upsert.
func (s *Store) ensureCreated(ctx context.Context, dimension int) error {
	s.createMu.Lock()
	defer s.createMu.Unlock()
	if s.created {
		return nil
	}
	if err := s.ensureCollection(ctx, dimension); err != nil {
		return err
	}
	s.created = true
	return nil
}

// ensureCollection creates the collection with cosine distance. Qdrant
// returns 200 when the collection already exists with the same schema.
func (s *Store) ensureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("qdrant: invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

func (s *Store) deleteByFilter(ctx context.Context, filter map[string]any) error {
	body := map[string]any{"filter": filter}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection)
	return s.postJSON(ctx, url, body, nil)
}

func matchFilter(key, value string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": key, "match": map[string]any{"value": value}},
		},
	}
}

func (s *Store) putJSON(ctx context.Context, url string, body any) error {
	return s.do(ctx, http.MethodPut, url, body, nil)
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any) error {
	return s.do(ctx, http.MethodPost, url, body, out)
}

func (s *Store) do(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("qdrant: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("qdrant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant: %s %s: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("qdrant: decode response: %w", err)
		}
	}
	return nil
}
