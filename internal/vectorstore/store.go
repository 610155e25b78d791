// Package vectorstore keeps document chunks searchable by embedding similarity.
//
// A Store pairs a vector.Index with a metadata slice of the same length: the chunk at
// position N of the metadata is the chunk whose embedding sits in slot N of the index.
// Every Add persists both to disk before returning, and Open restores them together.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

// ErrPersistence marks a failure to write the index or metadata to disk.
var ErrPersistence = errors.New("persistence failed")

// Chunk is one stored piece of a document.
type Chunk struct {
	Slot     int    `json:"slot"`
	SourceID string `json:"source_id"`
	// Source is "<SourceID>_chunk_<Slot>".
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Store is a persistent, append-only chunk store. Searches may run concurrently;
// Add is exclusive with every other operation on the same Store.
type Store struct {
	dir      string
	embedder embedding.Embedder
	index    vector.Index
	chunks   []Chunk
	logger   *zap.Logger
	mu       sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load fallbacks and persistence failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIndex replaces the default flat index. The index must be empty and match the
// embedder's dimension.
func WithIndex(idx vector.Index) Option {
	return func(s *Store) {
		s.index = idx
	}
}

// Open creates the directory if needed and loads any previously persisted state.
// Missing, unreadable or inconsistent artifacts are logged and replaced by an empty
// store; only an unusable directory or configuration is an error.
func Open(dir string, embedder embedding.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	s := &Store{dir: dir, embedder: embedder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.index == nil {
		idx, err := vector.NewFlatIndex(embedder.Dimensions())
		if err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
		s.index = idx
	}
	if s.index.Dimensions() != embedder.Dimensions() {
		return nil, fmt.Errorf("index dimension %d does not match embedder dimension %d",
			s.index.Dimensions(), embedder.Dimensions())
	}
	if s.index.Size() != 0 {
		return nil, fmt.Errorf("index must be empty, has %d vectors", s.index.Size())
	}

	chunks, err := load(dir, s.index)
	switch {
	case err == nil:
		s.chunks = chunks
		s.logger.Debug("vector store loaded", zap.String("dir", dir), zap.Int("chunks", len(chunks)))
	case errors.Is(err, errNoState):
		s.logger.Debug("vector store empty", zap.String("dir", dir))
	default:
		s.logger.Warn("vector store state discarded, starting empty", zap.String("dir", dir), zap.Error(err))
		_ = s.index.Truncate(0)
		s.chunks = nil
	}
	return s, nil
}

// Add embeds chunks and appends them under sourceID. The whole batch is embedded before
// anything is stored, so an embedding failure leaves the store unchanged. A persistence
// failure rolls the in-memory state back and returns an error wrapping ErrPersistence.
func (s *Store) Add(ctx context.Context, chunks []string, sourceID string) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed %d chunks of %s: %w", len(chunks), sourceID, embedding.Wrap(err))
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", embedding.ErrEmbedding, len(vectors), len(chunks))
	}
	for _, v := range vectors {
		if err := embedding.CheckDimensions(v, s.index.Dimensions()); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := len(s.chunks)
	added := make([]Chunk, len(chunks))
	for i, content := range chunks {
		slot := prev + i
		added[i] = Chunk{
			Slot:     slot,
			SourceID: sourceID,
			Source:   fmt.Sprintf("%s_chunk_%d", sourceID, slot),
			Content:  content,
		}
	}
	if err := s.index.Add(ctx, vectors); err != nil {
		_ = s.index.Truncate(prev)
		return fmt.Errorf("index add: %w", err)
	}
	s.chunks = append(s.chunks, added...)

	if err := persist(s.dir, s.index, s.chunks); err != nil {
		s.chunks = s.chunks[:prev]
		if terr := s.index.Truncate(prev); terr != nil {
			s.logger.Error("rollback failed", zap.String("dir", s.dir), zap.Error(terr))
		}
		s.logger.Error("vector store persist failed", zap.String("dir", s.dir), zap.Error(err))
		// The index may already be renamed into place; rewrite the previous state so
		// the two files agree again. If that fails too, the next Open discards them.
		if rerr := persist(s.dir, s.index, s.chunks); rerr != nil {
			s.logger.Error("vector store repair failed", zap.String("dir", s.dir), zap.Error(rerr))
		}
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.logger.Debug("chunks added",
		zap.String("source_id", sourceID),
		zap.Int("count", len(chunks)),
		zap.Int("total", len(s.chunks)))
	return nil
}

// Search returns up to k chunks nearest to query, nearest first. An empty store
// returns no chunks without calling the embedder.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 || s.Size() == 0 {
		return []Chunk{}, nil
	}
	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", embedding.Wrap(err))
	}
	if err := embedding.CheckDimensions(qv, s.index.Dimensions()); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	hits, err := s.index.Search(ctx, qv, k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	out := make([]Chunk, 0, len(hits))
	for _, h := range hits {
		if h.Slot < 0 || h.Slot >= len(s.chunks) {
			continue
		}
		out = append(out, s.chunks[h.Slot])
	}
	return out, nil
}

// Size returns the number of stored chunks.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Dimensions returns the embedding dimension.
func (s *Store) Dimensions() int {
	return s.index.Dimensions()
}

// Dir returns the directory holding the persisted artifacts.
func (s *Store) Dir() string {
	return s.dir
}

// IndexType returns the underlying vector index type.
func (s *Store) IndexType() string {
	return s.index.Type()
}

// Sources returns the distinct source ids in insertion order.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.chunks {
		if !seen[c.SourceID] {
			seen[c.SourceID] = true
			out = append(out, c.SourceID)
		}
	}
	return out
}

// Close releases the index. The embedder is owned by the caller.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
