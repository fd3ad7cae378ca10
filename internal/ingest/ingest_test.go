package ingest

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/kestrelworks/docent/internal/extract"
	"github.com/kestrelworks/docent/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeIndexer records calls and injects failures.
type fakeIndexer struct {
	added       map[string][]string // documentID -> chunks
	agentByDoc  map[string]string
	deletedDocs []string
	deletedAgts []string
	addErr      error
	deleteErr   error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{added: map[string][]string{}, agentByDoc: map[string]string{}}
}

func (f *fakeIndexer) Add(_ context.Context, chunks []string, documentID, agentID, _ string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added[documentID] = chunks
	f.agentByDoc[documentID] = agentID
	return nil
}

func (f *fakeIndexer) DeleteDocument(_ context.Context, documentID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedDocs = append(f.deletedDocs, documentID)
	delete(f.added, documentID)
	return nil
}

func (f *fakeIndexer) DeleteAgent(_ context.Context, agentID string) error {
	f.deletedAgts = append(f.deletedAgts, agentID)
	return nil
}

func setup(t *testing.T) (*gorm.DB, *fakeIndexer, *Orchestrator) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Agent{}, &models.Document{}, &models.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Create(&models.Agent{ID: "agent-1", OwnerID: "owner-1", Name: "SkyBot"}).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	idx := newFakeIndexer()
	orch, err := NewOrchestrator(OrchestratorOpts{
		DB:        db,
		Indexer:   idx,
		UploadDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return db, idx, orch
}

func TestIngestSuccess(t *testing.T) {
	db, idx, orch := setup(t)

	doc, err := orch.Ingest(context.Background(), "owner-1", "agent-1",
		"hello.txt", "text/plain", strings.NewReader("The sky is blue."))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if doc.ID == "" || doc.Filename != "hello.txt" || doc.ContentType != "text/plain" {
		t.Errorf("doc = %+v", doc)
	}

	chunks, ok := idx.added[doc.ID]
	if !ok || len(chunks) == 0 {
		t.Fatalf("no chunks indexed for %s", doc.ID)
	}
	if idx.agentByDoc[doc.ID] != "agent-1" {
		t.Errorf("chunks tagged with agent %q", idx.agentByDoc[doc.ID])
	}

	var stored models.Document
	if err := db.First(&stored, "id = ?", doc.ID).Error; err != nil {
		t.Fatalf("document row missing: %v", err)
	}

	// Temp file cleaned up on the success path.
	entries, _ := os.ReadDir(orch.uploadDir)
	if len(entries) != 0 {
		t.Errorf("upload dir not empty: %d files", len(entries))
	}
}

func TestIngestUnknownAgent(t *testing.T) {
	_, _, orch := setup(t)
	_, err := orch.Ingest(context.Background(), "owner-1", "nope",
		"a.txt", "text/plain", strings.NewReader("x"))
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestIngestForeignAgent(t *testing.T) {
	_, _, orch := setup(t)
	_, err := orch.Ingest(context.Background(), "intruder", "agent-1",
		"a.txt", "text/plain", strings.NewReader("x"))
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestIngestUnsupportedTypeLeavesNothingBehind(t *testing.T) {
	db, idx, orch := setup(t)

	_, err := orch.Ingest(context.Background(), "owner-1", "agent-1",
		"pic.png", "image/png", strings.NewReader("binary"))
	if !errors.Is(err, extract.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}

	var count int64
	db.Model(&models.Document{}).Count(&count)
	if count != 0 {
		t.Error("document record created for unsupported upload")
	}
	if len(idx.added) != 0 {
		t.Error("index entries created for unsupported upload")
	}
	entries, _ := os.ReadDir(orch.uploadDir)
	if len(entries) != 0 {
		t.Errorf("temp file left behind after failure")
	}
}

func TestIngestEmptyContent(t *testing.T) {
	_, _, orch := setup(t)
	_, err := orch.Ingest(context.Background(), "owner-1", "agent-1",
		"blank.txt", "text/plain", strings.NewReader("  \n\t "))
	if !errors.Is(err, extract.ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
}

func TestIngestIndexFailureCreatesNoRecord(t *testing.T) {
	db, idx, orch := setup(t)
	idx.addErr = errors.New("vector store down")

	_, err := orch.Ingest(context.Background(), "owner-1", "agent-1",
		"a.txt", "text/plain", strings.NewReader("some text"))
	if err == nil {
		t.Fatal("expected error")
	}
	var count int64
	db.Model(&models.Document{}).Count(&count)
	if count != 0 {
		t.Error("document record created despite index failure")
	}
}

func TestIngestRecordFailureCompensatesIndex(t *testing.T) {
	db, idx, orch := setup(t)
	// Dropping the table makes the record insert fail after indexing.
	if err := db.Migrator().DropTable(&models.Document{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, err := orch.Ingest(context.Background(), "owner-1", "agent-1",
		"a.txt", "text/plain", strings.NewReader("some text"))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(idx.deletedDocs) != 1 {
		t.Fatalf("compensating delete not issued: %v", idx.deletedDocs)
	}
	if len(idx.added) != 0 {
		t.Error("orphaned index entries remain")
	}
}

func TestDeleteDocument(t *testing.T) {
	db, idx, orch := setup(t)
	ctx := context.Background()

	doc, err := orch.Ingest(ctx, "owner-1", "agent-1",
		"a.txt", "text/plain", strings.NewReader("some text"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := orch.DeleteDocument(ctx, "owner-1", doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if len(idx.deletedDocs) != 1 || idx.deletedDocs[0] != doc.ID {
		t.Errorf("vector delete = %v", idx.deletedDocs)
	}
	var count int64
	db.Model(&models.Document{}).Count(&count)
	if count != 0 {
		t.Error("document row survived deletion")
	}
}

func TestDeleteDocumentNotOwned(t *testing.T) {
	_, _, orch := setup(t)
	ctx := context.Background()
	doc, _ := orch.Ingest(ctx, "owner-1", "agent-1",
		"a.txt", "text/plain", strings.NewReader("some text"))

	err := orch.DeleteDocument(ctx, "intruder", doc.ID)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestPurgeAgent(t *testing.T) {
	db, idx, orch := setup(t)
	ctx := context.Background()

	orch.Ingest(ctx, "owner-1", "agent-1", "a.txt", "text/plain", strings.NewReader("some text"))
	db.Create(&models.Message{ID: "m1", AgentID: "agent-1", UserID: "owner-1", Content: "hi", IsUser: true})

	if err := orch.PurgeAgent(ctx, "owner-1", "agent-1"); err != nil {
		t.Fatalf("PurgeAgent: %v", err)
	}
	if len(idx.deletedAgts) != 1 || idx.deletedAgts[0] != "agent-1" {
		t.Errorf("vector purge = %v", idx.deletedAgts)
	}
	for _, m := range []interface{}{&models.Agent{}, &models.Document{}, &models.Message{}} {
		var count int64
		db.Model(m).Count(&count)
		if count != 0 {
			t.Errorf("%T rows survived purge", m)
		}
	}
}
