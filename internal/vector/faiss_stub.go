//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import (
	"context"
	"errors"
	"io"
)

var errFAISSUnavailable = errors.New("FAISS support not compiled in; build with -tags=faiss and CGO_ENABLED=1")

// FAISSIndex is a stub when FAISS support is not compiled in.
type FAISSIndex struct{}

// NewFAISSIndex returns an error when FAISS support is not compiled in.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Type() string { return string(IndexTypeFAISS) }

func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) error {
	return errFAISSUnavailable
}

func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Truncate(n int) error     { return errFAISSUnavailable }
func (f *FAISSIndex) Encode(w io.Writer) error { return errFAISSUnavailable }
func (f *FAISSIndex) Decode(r io.Reader) error { return errFAISSUnavailable }
func (f *FAISSIndex) Size() int                { return 0 }
func (f *FAISSIndex) Dimensions() int          { return 0 }
func (f *FAISSIndex) Close() error             { return nil }
