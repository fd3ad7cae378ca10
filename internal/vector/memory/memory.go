// Package memory is an in-process vector store using brute-force cosine
// similarity. It backs tests and single-node development deployments.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kestrelworks/docent/internal/vector"
)

// Store holds entries in memory, guarded by a single RWMutex.
type Store struct {
	mu      sync.RWMutex
	entries []vector.Entry
}

// New creates an empty Store.
func New() *Store { return &Store{} }

// Upsert appends all entries. Vectors must share a dimension.
func (s *Store) Upsert(_ context.Context, entries []vector.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("memory: entry %s has empty vector", e.ID)
		}
		if len(s.entries) > 0 && len(e.Vector) != len(s.entries[0].Vector) {
			return fmt.Errorf("memory: entry %s dimension %d != %d", e.ID, len(e.Vector), len(s.entries[0].Vector))
		}
	}
	s.entries = append(s.entries, entries...)
	return nil
}

// Search scores every entry of the agent by cosine similarity and returns
// the top k, best first.
func (s *Store) Search(_ context.Context, vec []float32, agentID string, k int) ([]vector.Hit, error) {
	if k <= 0 {
		k = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []vector.Hit
	for _, e := range s.entries {
		if e.Payload.AgentID != agentID {
			continue
		}
		hits = append(hits, vector.Hit{
			Text:       e.Payload.Text,
			Filename:   e.Payload.Filename,
			DocumentID: e.Payload.DocumentID,
			Score:      cosine(e.Vector, vec),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteByDocument removes every entry tagged with the document.
func (s *Store) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = filter(s.entries, func(e vector.Entry) bool {
		return e.Payload.DocumentID != documentID
	})
	return nil
}

// DeleteByAgent removes every entry tagged with the agent.
func (s *Store) DeleteByAgent(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = filter(s.entries, func(e vector.Entry) bool {
		return e.Payload.AgentID != agentID
	})
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func filter(entries []vector.Entry, keep func(vector.Entry) bool) []vector.Entry {
	out := entries[:0]
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
