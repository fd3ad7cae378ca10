// Package config provides YAML-based configuration loading for Docent.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Docent configuration, loaded from config.yaml.
// Secrets (auth.secret, provider API keys) may also arrive via environment
// variables loaded from .env before the config is parsed.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	DB        DBConfig       `yaml:"db"`
	Auth      AuthConfig     `yaml:"auth"`
	Ingest    IngestConfig   `yaml:"ingest"`
	Chat      ChatConfig     `yaml:"chat"`
	Providers ProviderConfig `yaml:"providers"`
	Vector    VectorConfig   `yaml:"vector"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DBConfig selects and configures the relational backend. Driver is either
// "sqlite" (Path) or "mysql" (Host/Port/Database).
type DBConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// AuthConfig holds JWT signing settings.
type AuthConfig struct {
	Secret        string `yaml:"secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// IngestConfig holds document ingestion settings. ChunkSize and ChunkOverlap
// are in characters and default to 800/100; they are fixed per deployment so
// chunk boundaries stay reproducible across reindexes.
type IngestConfig struct {
	UploadDir    string `yaml:"upload_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// ChatConfig holds answer-pipeline and session settings.
type ChatConfig struct {
	HistoryTurns       int `yaml:"history_turns"`
	TopK               int `yaml:"top_k"`
	SessionsPerUser    int `yaml:"sessions_per_user"`
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`
}

// ProviderConfig holds settings for the OpenAI/Ollama-compatible model
// endpoint used for both embeddings and generation.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	EmbedModel     string `yaml:"embed_model"`
	GenerateModel  string `yaml:"generate_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// VectorConfig selects the vector index backend: "qdrant" or "memory".
type VectorConfig struct {
	Backend    string `yaml:"backend"`
	URL        string `yaml:"url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Collection string `yaml:"collection"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "docent.db"
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.User == "" {
			c.DB.User = "root"
		}
		if c.DB.Database == "" {
			c.DB.Database = "docent"
		}
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = os.Getenv("DOCENT_SECRET")
	}
	if c.Auth.TokenTTLHours == 0 {
		c.Auth.TokenTTLHours = 24
	}
	if c.Ingest.UploadDir == "" {
		c.Ingest.UploadDir = "uploads"
	}
	if c.Ingest.ChunkSize == 0 {
		c.Ingest.ChunkSize = 800
	}
	if c.Ingest.ChunkOverlap == 0 {
		c.Ingest.ChunkOverlap = 100
	}
	if c.Chat.HistoryTurns == 0 {
		c.Chat.HistoryTurns = 5
	}
	if c.Chat.TopK == 0 {
		c.Chat.TopK = 5
	}
	if c.Chat.SessionsPerUser == 0 {
		c.Chat.SessionsPerUser = 5
	}
	if c.Chat.IdleTimeoutSeconds == 0 {
		c.Chat.IdleTimeoutSeconds = 30
	}
	if c.Providers.BaseURL == "" {
		c.Providers.BaseURL = "http://localhost:11434"
	}
	if c.Providers.EmbedModel == "" {
		c.Providers.EmbedModel = "llama3"
	}
	if c.Providers.GenerateModel == "" {
		c.Providers.GenerateModel = "llama3"
	}
	if c.Providers.TimeoutSeconds == 0 {
		c.Providers.TimeoutSeconds = 120
	}
	if c.Vector.Backend == "" {
		c.Vector.Backend = "qdrant"
	}
	if c.Vector.URL == "" {
		c.Vector.URL = "http://localhost:6333"
	}
	if c.Vector.Collection == "" {
		c.Vector.Collection = "agent_store"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q must be sqlite or mysql", c.DB.Driver))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, "auth.secret is required (or set DOCENT_SECRET)")
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errs = append(errs, "ingest.chunk_overlap must be smaller than ingest.chunk_size")
	}
	switch c.Vector.Backend {
	case "qdrant", "memory":
	default:
		errs = append(errs, fmt.Sprintf("vector.backend %q must be qdrant or memory", c.Vector.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
