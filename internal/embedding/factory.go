package embedding

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
)

// Provider names accepted in embedding.provider.
const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
	ProviderONNX   = "onnx"
)

// New builds the configured embedder, wrapped in an LRU cache when cache_size > 0.
// An unknown provider or a provider that cannot start is an error.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case ProviderHash, "":
		inner = NewHashEmbedder(cfg.Dimensions)
	case ProviderOllama:
		e, err := NewOllamaEmbedder(OllamaConfig{
			BaseURL:     cfg.URL,
			Model:       cfg.Model,
			Dimensions:  cfg.Dimensions,
			Timeout:     cfg.Timeout(),
			Concurrency: cfg.BatchConcurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: %w", err)
		}
		inner = e
	case ProviderONNX:
		e, err := NewONNXEmbedder(ONNXConfig{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("onnx embedder: %w", err)
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hash, ollama, onnx)", cfg.Provider)
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
