package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/inference"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Sessions *session.Manager
	Ingester *ingest.Ingester
	Answers  *answer.Orchestrator
	Open     session.StoreOpener
	Info     server.Info
}

// Close releases the session database, open stores and the embedder.
func (c *Components) Close() {
	if c.Sessions != nil {
		_ = c.Sessions.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c := &Components{Embedder: embedder}

	indexType := cfg.Vector.IndexType
	if indexType == string(vector.IndexTypeFAISS) && !vector.IsFAISSAvailable() {
		logger.Warn("FAISS not compiled in, falling back to flat index")
		indexType = string(vector.IndexTypeFlat)
	}
	logger.Info("vector index configured",
		zap.String("type", indexType),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))
	c.Open = storeOpener(indexType, cfg.Vector, embedder, logger)

	c.Sessions, err = session.NewManager(cfg.Storage.DatabasePath, cfg.Storage.DataDir, c.Open,
		session.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize sessions: %w", err)
	}

	splitter, err := ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("invalid ingest config: %w", err)
	}
	c.Ingester = ingest.New(extract.NewExtractor(cfg.Ingest.Extensions...), splitter, ingest.WithLogger(logger))

	caps, err := inference.New(cfg.Inference)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize inference: %w", err)
	}
	tokens, err := inference.NewTokenCounter(cfg.Answer.TokenEncoding)
	if err != nil {
		logger.Warn("token encoding unavailable, counting words", zap.String("encoding", cfg.Answer.TokenEncoding), zap.Error(err))
	}
	c.Answers, err = answer.New(*caps, answer.ConfigFrom(cfg.Answer, cfg.Inference.Timeout()),
		answer.WithLogger(logger), answer.WithTokenCounter(tokens))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize answers: %w", err)
	}

	model := cfg.Embedding.Model
	if cfg.Embedding.Provider == embedding.ProviderHash || cfg.Embedding.Provider == "" {
		model = embedding.ProviderHash
	}
	c.Info = server.Info{
		Version:        version,
		EmbeddingModel: model,
		Dimensions:     embedder.Dimensions(),
		IndexType:      indexType,
	}
	return c, nil
}

// storeOpener returns an opener that gives each store its own empty index.
func storeOpener(indexType string, vc config.VectorConfig, embedder embedding.Embedder, logger *zap.Logger) session.StoreOpener {
	opts := vector.Options{M: vc.M, EfConstruction: vc.EfConstruction, EfSearch: vc.EfSearch, Seed: vc.Seed}
	return func(dir string) (*vectorstore.Store, error) {
		idx, err := vector.NewIndex(indexType, embedder.Dimensions(), opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create vector index: %w", err)
		}
		s, err := vectorstore.Open(dir, embedder, vectorstore.WithIndex(idx), vectorstore.WithLogger(logger))
		if err != nil {
			_ = idx.Close()
			return nil, err
		}
		return s, nil
	}
}
