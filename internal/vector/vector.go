// Package vector defines the vector index boundary: embedding, storage and
// agent-scoped similarity search. The agent filter is enforced at this
// boundary — no call path can read or delete another agent's entries.
package vector

import (
	"context"
	"errors"
)

// ErrIndex wraps embedding and vector-store failures.
var ErrIndex = errors.New("vector: index operation failed")

// Embedder converts text into a fixed-size numeric vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Payload is the metadata stored with every entry. AgentID and DocumentID
// are the only association the system keeps between index entries and the
// relational rows, so filtered deletion must remain possible from these two
// fields alone.
type Payload struct {
	AgentID    string `json:"agent_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Text       string `json:"text"`
}

// Entry is one stored chunk: its embedding plus payload.
type Entry struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is one search result, ordered by descending relevance.
type Hit struct {
	Text       string
	Filename   string
	DocumentID string
	Score      float32
}

// Store persists entries and answers agent-scoped similarity queries.
type Store interface {
	// Upsert writes all entries or fails; partial writes left behind by a
	// failed batch are cleaned up by the caller via DeleteByDocument.
	Upsert(ctx context.Context, entries []Entry) error
	// Search returns up to k hits for the agent, best first. Entries of
	// other agents are never returned.
	Search(ctx context.Context, vector []float32, agentID string, k int) ([]Hit, error)
	// DeleteByDocument removes every entry tagged with the document.
	DeleteByDocument(ctx context.Context, documentID string) error
	// DeleteByAgent removes every entry tagged with the agent.
	DeleteByAgent(ctx context.Context, agentID string) error
}
