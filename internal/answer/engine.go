// Package answer orchestrates one chat query: document check, agent-scoped
// retrieval, prompt assembly with recent history, model generation and turn
// persistence. The engine never lets the model answer outside retrieved
// material — zero documents and empty retrievals short-circuit to fixed
// replies before any generation call.
package answer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kestrelworks/docent/internal/models"
	"github.com/kestrelworks/docent/internal/vector"
	"gorm.io/gorm"
)

// Fixed replies for the short-circuit states. These are deterministic and
// produced without invoking the generation provider.
const (
	NoDocumentsReply = "I'm configured to answer based on documents, but no documents have been uploaded yet. " +
		"Please upload relevant documents first."
	NoContextReply = "I don't have information about that in my documents."
)

// Defaults for the sliding history window and retrieval depth.
const (
	DefaultHistoryTurns = 5
	DefaultTopK         = 5
)

// Generator produces text from an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever returns the agent's most relevant chunks for a query.
type Retriever interface {
	Search(ctx context.Context, query, agentID string, k int) ([]vector.Hit, error)
}

// Engine answers queries for one deployment. It is safe for concurrent use
// across sessions; serialization within a session is the session's job.
type Engine struct {
	db           *gorm.DB
	retriever    Retriever
	generator    Generator
	historyTurns int
	topK         int
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	DB           *gorm.DB
	Retriever    Retriever
	Generator    Generator
	HistoryTurns int // defaults to DefaultHistoryTurns
	TopK         int // defaults to DefaultTopK
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("answer: engine: db is required")
	}
	if opts.Retriever == nil {
		return nil, fmt.Errorf("answer: engine: retriever is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("answer: engine: generator is required")
	}
	turns := opts.HistoryTurns
	if turns <= 0 {
		turns = DefaultHistoryTurns
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{
		db:           opts.DB,
		retriever:    opts.Retriever,
		generator:    opts.Generator,
		historyTurns: turns,
		topK:         topK,
	}, nil
}

// Answer runs the full pipeline for one query. The user turn is persisted
// before generation is attempted, and an assistant turn — the answer or an
// error explanation — is always persisted afterwards, so the conversation
// log reflects every query regardless of outcome. Each persistence call
// commits independently of the generation call.
func (e *Engine) Answer(ctx context.Context, agent *models.Agent, userID, query string) (string, error) {
	start := time.Now()

	history, err := e.RecentHistory(agent.ID, e.historyTurns)
	if err != nil {
		return "", err
	}

	if err := e.AppendTurn(agent.ID, userID, query, true, nil); err != nil {
		return "", err
	}

	response, genErr := e.run(ctx, agent, history, query)
	elapsed := time.Since(start).Seconds()

	if genErr != nil {
		explanation := fmt.Sprintf("Error processing question: %v", genErr)
		if err := e.AppendTurn(agent.ID, userID, explanation, false, &elapsed); err != nil {
			log.Printf("answer: persist error turn for agent %s: %v", agent.ID, err)
		}
		return "", fmt.Errorf("answer: %w", genErr)
	}

	if err := e.AppendTurn(agent.ID, userID, response, false, &elapsed); err != nil {
		return "", err
	}
	return response, nil
}

// run walks the query state machine up to the generated (or fixed) reply.
func (e *Engine) run(ctx context.Context, agent *models.Agent, history []models.Message, query string) (string, error) {
	hasDocs, err := e.hasDocuments(agent.ID)
	if err != nil {
		return "", err
	}
	if !hasDocs {
		return NoDocumentsReply, nil
	}

	hits, err := e.retriever.Search(ctx, query, agent.ID, e.topK)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return NoContextReply, nil
	}

	prompt, err := BuildPrompt(agent, history, hits, query)
	if err != nil {
		return "", err
	}
	return e.generator.Generate(ctx, prompt)
}

// hasDocuments reports whether the agent has at least one ingested document.
func (e *Engine) hasDocuments(agentID string) (bool, error) {
	var count int64
	err := e.db.Model(&models.Document{}).Where("agent_id = ?", agentID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("answer: count documents for agent %s: %w", agentID, err)
	}
	return count > 0, nil
}
