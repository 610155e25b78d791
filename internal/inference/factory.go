package inference

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
)

// Capabilities groups the three inference capabilities an orchestrator needs.
type Capabilities struct {
	Extractor AnswerExtractor
	Tagger    EntityTagger
	Rewriter  Rewriter
}

// New builds HTTP capability clients from cfg, bounded by cfg.MaxConcurrency.
func New(cfg config.InferenceConfig) (*Capabilities, error) {
	base := HTTPConfig{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout(),
		MaxRetries: cfg.MaxRetries,
	}
	qa, err := NewQAClient(base)
	if err != nil {
		return nil, err
	}
	ner, err := NewNERClient(base)
	if err != nil {
		return nil, err
	}
	rw := base
	if cfg.RewriteURL != "" {
		rw.BaseURL = cfg.RewriteURL
	}
	rewriter, err := NewOllamaRewriter(rw, cfg.RewriteModel)
	if err != nil {
		return nil, fmt.Errorf("rewriter: %w", err)
	}

	limit := NewLimiter(cfg.MaxConcurrency)
	return &Capabilities{
		Extractor: limit.Extractor(qa),
		Tagger:    limit.Tagger(ner),
		Rewriter:  limit.Rewriter(rewriter),
	}, nil
}
