// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// ErrEmbedding marks a failure of the embedding capability, including a vector
// of the wrong dimension.
var ErrEmbedding = errors.New("embedding failed")

// Wrap marks err as an embedding failure unless it already is one.
func Wrap(err error) error {
	if err == nil || errors.Is(err, ErrEmbedding) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEmbedding, err)
}

// CheckDimensions fails with ErrEmbedding when vec does not have want entries.
func CheckDimensions(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d dimensions, expected %d", ErrEmbedding, len(vec), want)
	}
	return nil
}
