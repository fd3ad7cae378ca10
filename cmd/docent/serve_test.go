package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kestrelworks/docent/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSweepUploadsRemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "upload-old.txt")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("write stale: %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	fresh := filepath.Join(dir, "upload-new.txt")
	if err := os.WriteFile(fresh, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fresh: %v", err)
	}

	sweepUploads(dir, time.Hour)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file survived the sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh file removed by the sweep")
	}
}

func TestSweepUploadsMissingDir(t *testing.T) {
	// No panic, no error spam for a dir that has never been created.
	sweepUploads(filepath.Join(t.TempDir(), "absent"), time.Hour)
}

func TestSnapshotUsage(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Agent{}, &models.Message{}, &models.UsageSnapshot{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db.Create(&models.Agent{ID: "agent-1", OwnerID: "owner-1", Name: "SkyBot"})
	yesterday := time.Now().AddDate(0, 0, -1)
	noon := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 12, 0, 0, 0, yesterday.Location())
	for i, isUser := range []bool{true, false, true} {
		db.Create(&models.Message{
			ID:        "m" + string(rune('1'+i)),
			AgentID:   "agent-1",
			UserID:    "owner-1",
			Content:   "x",
			IsUser:    isUser,
			CreatedAt: noon.Add(time.Duration(i) * time.Minute),
		})
	}

	snapshotUsage(db)

	var snap models.UsageSnapshot
	if err := db.Where("owner_id = ?", "owner-1").First(&snap).Error; err != nil {
		t.Fatalf("snapshot row missing: %v", err)
	}
	if snap.QueryCount != 2 {
		t.Errorf("QueryCount = %d, want 2 (assistant turns excluded)", snap.QueryCount)
	}
	if snap.ActiveAgents != 1 {
		t.Errorf("ActiveAgents = %d, want 1", snap.ActiveAgents)
	}
	if snap.Day != yesterday.Format("2006-01-02") {
		t.Errorf("Day = %q", snap.Day)
	}

	// Re-running the rollup does not duplicate rows.
	snapshotUsage(db)
	var count int64
	db.Model(&models.UsageSnapshot{}).Count(&count)
	if count != 1 {
		t.Errorf("snapshot rows = %d, want 1", count)
	}
}
