// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Inference InferenceConfig `yaml:"inference"`
	Answer    AnswerConfig    `yaml:"answer"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
	MaxUploadMB        int    `yaml:"max_upload_mb"`
}

// RequestTimeout returns the per-request timeout applied by the router.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// StorageConfig holds paths for the session database and per-session corpora.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	DataDir      string `yaml:"data_dir"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "hash", "ollama" or "onnx".
	Provider         string `yaml:"provider"`
	URL              string `yaml:"url"`
	Model            string `yaml:"model"`
	ModelPath        string `yaml:"model_path"`
	Dimensions       int    `yaml:"dimensions"`
	MaxTokens        int    `yaml:"max_tokens"`
	CacheSize        int    `yaml:"cache_size"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
	BatchConcurrency int    `yaml:"batch_concurrency"`
}

// Timeout returns the per-call embedding timeout.
func (e EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// VectorConfig holds similarity index settings.
type VectorConfig struct {
	// IndexType is "flat" (exact) or "hnsw" (approximate).
	IndexType      string `yaml:"index_type"`
	M              int    `yaml:"m"`
	EfConstruction int    `yaml:"ef_construction"`
	EfSearch       int    `yaml:"ef_search"`
	Seed           int64  `yaml:"seed"`
}

// InferenceConfig holds the endpoints of the answer, entity and rewrite capabilities.
type InferenceConfig struct {
	BaseURL        string `yaml:"base_url"`
	RewriteURL     string `yaml:"rewrite_url"`
	RewriteModel   string `yaml:"rewrite_model"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
	MaxRetries     int    `yaml:"max_retries"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

// Timeout returns the per-call inference timeout.
func (i InferenceConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSecs) * time.Second
}

// AnswerConfig tunes query classification and answer gating.
type AnswerConfig struct {
	TaskKeywords        []string            `yaml:"task_keywords"`
	TaskK               int                 `yaml:"task_k"`
	QuestionK           int                 `yaml:"question_k"`
	ConfidenceThreshold *float64            `yaml:"confidence_threshold"`
	TaskConfidence      float64             `yaml:"task_confidence"`
	RewriteMaxLength    int                 `yaml:"rewrite_max_length"`
	MaxPromptTokens     int                 `yaml:"max_prompt_tokens"`
	TokenEncoding       string              `yaml:"token_encoding"`
	Roles               map[string][]string `yaml:"roles"`
}

// Threshold returns the confidence gate; 0.15 when unset.
func (a *AnswerConfig) Threshold() float64 {
	if a.ConfidenceThreshold != nil {
		return *a.ConfidenceThreshold
	}
	return DefaultConfidenceThreshold
}

// IngestConfig holds chunking and accepted file types for uploads.
type IngestConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Extensions   []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides endpoint settings from KOTAE_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("KOTAE_INFERENCE_URL"); v != "" {
		cfg.Inference.BaseURL = v
	}
	if v := os.Getenv("KOTAE_REWRITE_URL"); v != "" {
		cfg.Inference.RewriteURL = v
	}
	if v := os.Getenv("KOTAE_REWRITE_MODEL"); v != "" {
		cfg.Inference.RewriteModel = v
	}
	if v := os.Getenv("KOTAE_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("KOTAE_EMBEDDING_URL"); v != "" {
		cfg.Embedding.URL = v
	}
	if v := os.Getenv("KOTAE_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("KOTAE_EMBEDDING_DIMENSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid KOTAE_EMBEDDING_DIMENSIONS %q: %w", v, err)
		}
		cfg.Embedding.Dimensions = n
	}
	if v := os.Getenv("KOTAE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
