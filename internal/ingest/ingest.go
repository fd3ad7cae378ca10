// Package ingest drives the document pipeline: temp storage, text
// extraction, chunking, vector indexing and the final document record. From
// the caller's view ingestion is atomic — on any failure no document record
// survives and partially indexed chunks are compensated away.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kestrelworks/docent/internal/chunk"
	"github.com/kestrelworks/docent/internal/extract"
	"github.com/kestrelworks/docent/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors surfaced to transport layers.
var (
	ErrAgentNotFound    = errors.New("ingest: agent not found")
	ErrDocumentNotFound = errors.New("ingest: document not found")
	ErrStorage          = errors.New("ingest: temporary storage failed")
)

// Indexer is the vector-index surface ingestion needs.
type Indexer interface {
	Add(ctx context.Context, chunks []string, documentID, agentID, filename string) error
	DeleteDocument(ctx context.Context, documentID string) error
	DeleteAgent(ctx context.Context, agentID string) error
}

// Orchestrator runs ingestion and the document/agent purge paths.
type Orchestrator struct {
	db           *gorm.DB
	indexer      Indexer
	uploadDir    string
	chunkSize    int
	chunkOverlap int
}

// OrchestratorOpts holds parameters for creating an Orchestrator.
type OrchestratorOpts struct {
	DB           *gorm.DB
	Indexer      Indexer
	UploadDir    string // defaults to "uploads"
	ChunkSize    int    // defaults to chunk.DefaultSize
	ChunkOverlap int    // defaults to chunk.DefaultOverlap
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts OrchestratorOpts) (*Orchestrator, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("ingest: orchestrator: db is required")
	}
	if opts.Indexer == nil {
		return nil, fmt.Errorf("ingest: orchestrator: indexer is required")
	}
	uploadDir := opts.UploadDir
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	size := opts.ChunkSize
	if size <= 0 {
		size = chunk.DefaultSize
	}
	overlap := opts.ChunkOverlap
	if overlap <= 0 {
		overlap = chunk.DefaultOverlap
	}
	return &Orchestrator{
		db:           opts.DB,
		indexer:      opts.Indexer,
		uploadDir:    uploadDir,
		chunkSize:    size,
		chunkOverlap: overlap,
	}, nil
}

// Ingest processes one uploaded file for an owned agent and returns the
// persisted document record. Extraction errors propagate unchanged so the
// transport layer can map them to client errors.
func (o *Orchestrator) Ingest(ctx context.Context, ownerID, agentID, filename, contentType string, r io.Reader) (*models.Document, error) {
	var agent models.Agent
	err := o.db.Where("id = ? AND owner_id = ?", agentID, ownerID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: lookup agent %s: %w", agentID, err)
	}

	tmpPath, err := o.saveTemp(filename, r)
	if err != nil {
		return nil, err
	}
	defer o.removeTemp(tmpPath)

	text, err := extract.Text(tmpPath, contentType)
	if err != nil {
		return nil, err
	}

	chunks := chunk.Split(text, o.chunkSize, o.chunkOverlap)
	if len(chunks) == 0 {
		return nil, extract.ErrEmptyContent
	}

	docID := uuid.NewString()
	if err := o.indexer.Add(ctx, chunks, docID, agentID, filename); err != nil {
		return nil, err
	}

	doc := models.Document{
		ID:          docID,
		AgentID:     agentID,
		Filename:    filename,
		ContentType: contentType,
		UploadedAt:  time.Now(),
	}
	if err := o.db.Create(&doc).Error; err != nil {
		// The chunks are indexed but the record failed; remove them so no
		// orphaned entries stay behind.
		if delErr := o.indexer.DeleteDocument(ctx, docID); delErr != nil {
			log.Printf("ingest: compensating delete for document %s failed: %v", docID, delErr)
		}
		return nil, fmt.Errorf("ingest: persist document %s: %w", docID, err)
	}

	log.Printf("ingest: document %s (%s) indexed for agent %s: %d chunks",
		docID, filename, agentID, len(chunks))
	return &doc, nil
}

// DeleteDocument removes a document's vector entries and then its record.
// Ownership is checked through the owning agent.
func (o *Orchestrator) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	var doc models.Document
	err := o.db.
		Joins("JOIN agents ON agents.id = documents.agent_id").
		Where("documents.id = ? AND agents.owner_id = ?", documentID, ownerID).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("ingest: lookup document %s: %w", documentID, err)
	}

	// Vector entries go first: a failed index delete leaves the record in
	// place so the purge can be retried.
	if err := o.indexer.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if err := o.db.Delete(&models.Document{}, "id = ?", documentID).Error; err != nil {
		return fmt.Errorf("ingest: delete document %s: %w", documentID, err)
	}
	return nil
}

// PurgeAgent removes every trace of an owned agent: vector entries,
// document records, messages, then the agent row.
func (o *Orchestrator) PurgeAgent(ctx context.Context, ownerID, agentID string) error {
	var agent models.Agent
	err := o.db.Where("id = ? AND owner_id = ?", agentID, ownerID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAgentNotFound
	}
	if err != nil {
		return fmt.Errorf("ingest: lookup agent %s: %w", agentID, err)
	}

	if err := o.indexer.DeleteAgent(ctx, agentID); err != nil {
		return err
	}
	if err := o.db.Delete(&models.Document{}, "agent_id = ?", agentID).Error; err != nil {
		return fmt.Errorf("ingest: delete documents of agent %s: %w", agentID, err)
	}
	if err := o.db.Delete(&models.Message{}, "agent_id = ?", agentID).Error; err != nil {
		return fmt.Errorf("ingest: delete messages of agent %s: %w", agentID, err)
	}
	if err := o.db.Delete(&models.Agent{}, "id = ?", agentID).Error; err != nil {
		return fmt.Errorf("ingest: delete agent %s: %w", agentID, err)
	}
	return nil
}

// saveTemp streams the upload into a scoped temporary file.
func (o *Orchestrator) saveTemp(filename string, r io.Reader) (string, error) {
	if err := os.MkdirAll(o.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrStorage, o.uploadDir, err)
	}
	tmp, err := os.CreateTemp(o.uploadDir, "upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		o.removeTemp(tmp.Name())
		return "", fmt.Errorf("%w: write temp file: %v", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		o.removeTemp(tmp.Name())
		return "", fmt.Errorf("%w: close temp file: %v", ErrStorage, err)
	}
	return tmp.Name(), nil
}

// removeTemp deletes a temp file, logging failures instead of masking the
// pipeline's original error.
func (o *Orchestrator) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("ingest: failed to delete temp file %s: %v", path, err)
	}
}
