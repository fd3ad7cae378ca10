package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Indexer embeds chunks and stores them tagged {agent_id, document_id}.
// It is the write/read path shared by ingestion and retrieval.
type Indexer struct {
	embedder Embedder
	store    Store
}

// NewIndexer creates an Indexer.
func NewIndexer(embedder Embedder, store Store) (*Indexer, error) {
	if embedder == nil {
		return nil, fmt.Errorf("vector: indexer: embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector: indexer: store is required")
	}
	return &Indexer{embedder: embedder, store: store}, nil
}

// Add embeds every chunk and upserts the batch. Any failure aborts the call
// with an error so the ingestion orchestrator can roll back; partially
// written entries are removed by a compensating DeleteByDocument there.
func (ix *Indexer) Add(ctx context.Context, chunks []string, documentID, agentID, filename string) error {
	entries := make([]Entry, 0, len(chunks))
	for i, text := range chunks {
		vec, err := ix.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("%w: embed chunk %d of document %s: %v", ErrIndex, i, documentID, err)
		}
		entries = append(entries, Entry{
			ID:     uuid.NewString(),
			Vector: vec,
			Payload: Payload{
				AgentID:    agentID,
				DocumentID: documentID,
				Filename:   filename,
				Text:       text,
			},
		})
	}
	if err := ix.store.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("%w: upsert document %s: %v", ErrIndex, documentID, err)
	}
	return nil
}

// Search embeds the query and returns the agent's top-k hits, best first.
// An empty result is not an error.
func (ix *Indexer) Search(ctx context.Context, query, agentID string, k int) ([]Hit, error) {
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrIndex, err)
	}
	hits, err := ix.store.Search(ctx, vec, agentID, k)
	if err != nil {
		return nil, fmt.Errorf("%w: search agent %s: %v", ErrIndex, agentID, err)
	}
	return hits, nil
}

// DeleteDocument removes all entries belonging to a document.
func (ix *Indexer) DeleteDocument(ctx context.Context, documentID string) error {
	if err := ix.store.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("%w: delete document %s: %v", ErrIndex, documentID, err)
	}
	return nil
}

// DeleteAgent removes all entries belonging to an agent.
func (ix *Indexer) DeleteAgent(ctx context.Context, agentID string) error {
	if err := ix.store.DeleteByAgent(ctx, agentID); err != nil {
		return fmt.Errorf("%w: delete agent %s: %v", ErrIndex, agentID, err)
	}
	return nil
}
