package config

// DefaultConfidenceThreshold is the extraction score below which an answer is withheld.
const DefaultConfidenceThreshold = 0.15

// Retrieval breadth for task and question queries.
const (
	DefaultTaskK     = 5
	DefaultQuestionK = 3
)

// DefaultTaskConfidence is reported for generated task answers, which carry no score.
const DefaultTaskConfidence = 0.95

// DefaultTaskKeywords mark a query as a task (list, summarize, extract) instead of a question.
var DefaultTaskKeywords = []string{"list", "summarize", "extract", "show me all", "what are all", "find all"}

// DefaultRoles maps stakeholder roles to the entity types they care about.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		"Product Lead":       {"ORG", "DATE", "MONEY", "PERCENT", "PRODUCT"},
		"Tech Lead":          {"ORG", "PRODUCT", "DATE", "CARDINAL", "QUANTITY"},
		"Compliance Lead":    {"PERSON", "ORG", "GPE", "LAW", "DATE", "MONEY"},
		"Bank Alliance Lead": {"ORG", "LAW", "DATE", "PERCENT", "GPE"},
	}
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 300
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/sessions.db"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/usr/local/var/kotae/data/corpora"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	if cfg.Embedding.URL == "" {
		cfg.Embedding.URL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-minilm"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Embedding.BatchConcurrency == 0 {
		cfg.Embedding.BatchConcurrency = 4
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "flat"
	}
	if cfg.Vector.M == 0 {
		cfg.Vector.M = 16
	}
	if cfg.Vector.EfConstruction == 0 {
		cfg.Vector.EfConstruction = 200
	}
	if cfg.Vector.EfSearch == 0 {
		cfg.Vector.EfSearch = 64
	}
	if cfg.Vector.Seed == 0 {
		cfg.Vector.Seed = 42
	}
	if cfg.Inference.BaseURL == "" {
		cfg.Inference.BaseURL = "http://localhost:8001"
	}
	if cfg.Inference.RewriteURL == "" {
		cfg.Inference.RewriteURL = "http://localhost:11434"
	}
	if cfg.Inference.RewriteModel == "" {
		cfg.Inference.RewriteModel = "flan-t5-base"
	}
	if cfg.Inference.TimeoutSecs == 0 {
		cfg.Inference.TimeoutSecs = 60
	}
	if cfg.Inference.MaxRetries == 0 {
		cfg.Inference.MaxRetries = 2
	}
	if cfg.Answer.TaskKeywords == nil {
		cfg.Answer.TaskKeywords = append([]string(nil), DefaultTaskKeywords...)
	}
	if cfg.Answer.TaskK == 0 {
		cfg.Answer.TaskK = DefaultTaskK
	}
	if cfg.Answer.QuestionK == 0 {
		cfg.Answer.QuestionK = DefaultQuestionK
	}
	if cfg.Answer.ConfidenceThreshold == nil {
		t := DefaultConfidenceThreshold
		cfg.Answer.ConfidenceThreshold = &t
	}
	if cfg.Answer.TaskConfidence == 0 {
		cfg.Answer.TaskConfidence = DefaultTaskConfidence
	}
	if cfg.Answer.RewriteMaxLength == 0 {
		cfg.Answer.RewriteMaxLength = 256
	}
	if cfg.Answer.TokenEncoding == "" {
		cfg.Answer.TokenEncoding = "cl100k_base"
	}
	if cfg.Answer.Roles == nil {
		cfg.Answer.Roles = DefaultRoles()
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".pdf", ".docx", ".xlsx", ".txt", ".md", ".rst"}
	}
}
