package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/kestrelworks/docent/internal/answer"
	"github.com/kestrelworks/docent/internal/auth"
	"github.com/kestrelworks/docent/internal/chat"
	"github.com/kestrelworks/docent/internal/config"
	"github.com/kestrelworks/docent/internal/db"
	"github.com/kestrelworks/docent/internal/ingest"
	"github.com/kestrelworks/docent/internal/llm"
	"github.com/kestrelworks/docent/internal/models"
	"github.com/kestrelworks/docent/internal/server"
	"github.com/kestrelworks/docent/internal/vector"
	"github.com/kestrelworks/docent/internal/vector/memory"
	"github.com/kestrelworks/docent/internal/vector/qdrant"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Docent API server",
		Long:  "Starts the HTTP/WebSocket server plus the background maintenance jobs. Blocks until SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to Docent config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	provider, err := llm.New(llm.Config{
		BaseURL:       cfg.Providers.BaseURL,
		APIKeyEnv:     cfg.Providers.APIKeyEnv,
		EmbedModel:    cfg.Providers.EmbedModel,
		GenerateModel: cfg.Providers.GenerateModel,
		Timeout:       time.Duration(cfg.Providers.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	var store vector.Store
	switch cfg.Vector.Backend {
	case "memory":
		store = memory.New()
	default:
		store = qdrant.New(qdrant.Config{
			URL:        cfg.Vector.URL,
			APIKey:     os.Getenv(cfg.Vector.APIKeyEnv),
			Collection: cfg.Vector.Collection,
		})
	}
	indexer, err := vector.NewIndexer(provider, store)
	if err != nil {
		return err
	}

	authSvc, err := auth.NewService(auth.ServiceOpts{
		DB:     gormDB,
		Secret: cfg.Auth.Secret,
		TTL:    time.Duration(cfg.Auth.TokenTTLHours) * time.Hour,
	})
	if err != nil {
		return err
	}

	orchestrator, err := ingest.NewOrchestrator(ingest.OrchestratorOpts{
		DB:           gormDB,
		Indexer:      indexer,
		UploadDir:    cfg.Ingest.UploadDir,
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	})
	if err != nil {
		return err
	}

	engine, err := answer.NewEngine(answer.EngineOpts{
		DB:           gormDB,
		Retriever:    indexer,
		Generator:    provider,
		HistoryTurns: cfg.Chat.HistoryTurns,
		TopK:         cfg.Chat.TopK,
	})
	if err != nil {
		return err
	}

	sessions := chat.NewSessionManager(chat.SessionManagerOpts{
		MaxPerUser: cfg.Chat.SessionsPerUser,
	})

	srv, err := server.New(server.Opts{
		DB:          gormDB,
		Auth:        authSvc,
		Ingestor:    orchestrator,
		Engine:      engine,
		Sessions:    sessions,
		Port:        cfg.Server.Port,
		IdleTimeout: time.Duration(cfg.Chat.IdleTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs := startMaintenance(gormDB, cfg.Ingest.UploadDir)
	defer jobs.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Docent listening on :%d (db: %s, vector: %s)\n",
		cfg.Server.Port, cfg.DB.Driver, cfg.Vector.Backend)
	return srv.Start(ctx)
}

// startMaintenance schedules the background jobs: an hourly sweep of stale
// temp uploads and a nightly usage rollup.
func startMaintenance(gormDB *gorm.DB, uploadDir string) *cron.Cron {
	c := cron.New()
	c.AddFunc("@hourly", func() { sweepUploads(uploadDir, time.Hour) })
	c.AddFunc("5 0 * * *", func() { snapshotUsage(gormDB) })
	c.Start()
	return c
}

// sweepUploads removes temp files older than maxAge. Ingestion deletes its
// own temp files; the sweeper only catches leftovers from crashed requests.
func sweepUploads(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("maintenance: read upload dir %s: %v", dir, err)
		}
		return
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			log.Printf("maintenance: sweep %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("maintenance: swept %d stale upload(s) from %s", removed, dir)
	}
}

// snapshotUsage writes yesterday's per-owner query rollup.
func snapshotUsage(gormDB *gorm.DB) {
	day := time.Now().AddDate(0, 0, -1)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	label := start.Format("2006-01-02")

	type row struct {
		OwnerID      string
		QueryCount   int64
		ActiveAgents int64
	}
	var rows []row
	err := gormDB.Model(&models.Message{}).
		Select("agents.owner_id as owner_id, COUNT(*) as query_count, COUNT(DISTINCT messages.agent_id) as active_agents").
		Joins("JOIN agents ON agents.id = messages.agent_id").
		Where("messages.is_user = ? AND messages.created_at >= ? AND messages.created_at < ?", true, start, end).
		Group("agents.owner_id").
		Find(&rows).Error
	if err != nil {
		log.Printf("maintenance: usage rollup for %s: %v", label, err)
		return
	}

	for _, r := range rows {
		snap := models.UsageSnapshot{
			OwnerID:      r.OwnerID,
			Day:          label,
			QueryCount:   r.QueryCount,
			ActiveAgents: r.ActiveAgents,
		}
		if err := gormDB.Where("owner_id = ? AND day = ?", r.OwnerID, label).
			Assign(snap).FirstOrCreate(&models.UsageSnapshot{}).Error; err != nil {
			log.Printf("maintenance: usage snapshot for owner %s: %v", r.OwnerID, err)
		}
	}
	log.Printf("maintenance: usage rollup for %s: %d owner(s)", label, len(rows))
}
