package clauselens

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jaekyeom/clauselens/llm"
)

// Config holds all configuration for the ClauseLens engine and server.
type Config struct {
	// LLM endpoints. Chat serves extraction, summarization, formatting and
	// simulation; Embedding serves the case-law index and agent scoring.
	Chat      llm.Config `json:"chat" yaml:"chat"`
	Embedding llm.Config `json:"embedding" yaml:"embedding"`

	// Upstage configures the external OCR parsing service. When nil the
	// native PDF text extractor is used instead.
	Upstage *UpstageConfig `json:"upstage,omitempty" yaml:"upstage,omitempty"`

	// CaseDBPath is the case-law corpus (JSON array of {key, value}).
	CaseDBPath string `json:"case_db_path" yaml:"case_db_path"`

	// EmbeddingArchivePath is the persisted embedding index. If empty it is
	// derived from CaseDBPath (".json" -> "_embeddings.bin").
	EmbeddingArchivePath string `json:"embedding_archive_path,omitempty" yaml:"embedding_archive_path,omitempty"`

	// PromptsDir holds the prompt files loaded at startup.
	PromptsDir string `json:"prompts_dir" yaml:"prompts_dir"`

	// UploadsDir is where uploaded contract PDFs are stored.
	UploadsDir string `json:"uploads_dir" yaml:"uploads_dir"`

	// DBPath is the SQLite upload registry and query log.
	DBPath string `json:"db_path" yaml:"db_path"`

	// Analysis tuning.
	SummaryMaxAttempts int     `json:"summary_max_attempts" yaml:"summary_max_attempts"`
	SummaryMaxTokens   int     `json:"summary_max_tokens" yaml:"summary_max_tokens"`
	AnalysisTemp       float64 `json:"analysis_temperature" yaml:"analysis_temperature"`
	RouterTemp         float64 `json:"router_temperature" yaml:"router_temperature"`
	FormatterTemp      float64 `json:"formatter_temperature" yaml:"formatter_temperature"`

	// Agent retrieval windows.
	SelectClauses int `json:"select_clauses" yaml:"select_clauses"` // relevant toxic clauses kept
	RetrieveCases int `json:"retrieve_cases" yaml:"retrieve_cases"` // candidate precedents per clause

	// Sessions: "memory" (default) or "redis".
	Sessions SessionsConfig `json:"sessions" yaml:"sessions"`

	// Blob enables public S3 upload of stored contracts when Bucket is set.
	Blob BlobConfig `json:"blob" yaml:"blob"`

	// Search configures the web search tool. Disabled when APIKey is empty.
	Search SearchConfig `json:"search" yaml:"search"`
}

// UpstageConfig configures the Upstage document OCR service.
type UpstageConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// SessionsConfig selects and configures the session backend.
type SessionsConfig struct {
	Backend   string `json:"backend" yaml:"backend"` // memory, redis
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`
	RedisDB   int    `json:"redis_db" yaml:"redis_db"`
	RedisPass string `json:"redis_password" yaml:"redis_password"`
}

// BlobConfig configures S3 publication of uploaded contracts.
type BlobConfig struct {
	Bucket    string `json:"bucket" yaml:"bucket"`
	Region    string `json:"region" yaml:"region"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
}

// SearchConfig configures the Tavily web search client.
type SearchConfig struct {
	APIKey     string `json:"api_key" yaml:"api_key"`
	BaseURL    string `json:"base_url" yaml:"base_url"`
	MaxResults int    `json:"max_results" yaml:"max_results"`
}

// DefaultConfig returns a Config matching the service's stock deployment.
func DefaultConfig() Config {
	return Config{
		Chat: llm.Config{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Embedding: llm.Config{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		CaseDBPath:         filepath.Join("datasets", "case_db.json"),
		PromptsDir:         "prompts",
		UploadsDir:         "uploads",
		DBPath:             filepath.Join("data", "clauselens.db"),
		SummaryMaxAttempts: 3,
		SummaryMaxTokens:   1500,
		AnalysisTemp:       1.0,
		RouterTemp:         0.1,
		FormatterTemp:      0.7,
		SelectClauses:      2,
		RetrieveCases:      10,
		Sessions: SessionsConfig{
			Backend: "memory",
		},
		Blob: BlobConfig{
			Region:    "ap-northeast-2",
			KeyPrefix: "pdf",
		},
		Search: SearchConfig{
			BaseURL:    "https://api.tavily.com",
			MaxResults: 5,
		},
	}
}

// LoadConfig reads a YAML or JSON config file (by extension) over defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	default:
		return cfg, fmt.Errorf("%w: unsupported config extension %q", ErrInvalidConfig, filepath.Ext(path))
	}
	return cfg, nil
}

// archivePath resolves the embedding archive location from config fields.
func (c *Config) archivePath() string {
	if c.EmbeddingArchivePath != "" {
		return c.EmbeddingArchivePath
	}
	base := strings.TrimSuffix(c.CaseDBPath, ".json")
	return base + "_embeddings.bin"
}
