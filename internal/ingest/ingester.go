package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/kotae/internal/extract"
	"go.uber.org/zap"
)

// ErrNoText is returned when a document yields no text to index.
var ErrNoText = errors.New("document contains no extractable text")

// Adder stores chunks under a source id.
type Adder interface {
	Add(ctx context.Context, chunks []string, sourceID string) error
}

// Ingester turns documents into chunks and adds them to a store.
type Ingester struct {
	extractor *extract.Extractor
	splitter  *Splitter
	logger    *zap.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// New returns an ingester.
func New(extractor *extract.Extractor, splitter *Splitter, opts ...Option) *Ingester {
	in := &Ingester{extractor: extractor, splitter: splitter, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Supports reports whether name has an accepted extension.
func (in *Ingester) Supports(name string) bool {
	return in.extractor.Supports(name)
}

// Extensions returns the accepted extensions.
func (in *Ingester) Extensions() []string {
	return in.extractor.Extensions()
}

// Chunks extracts and splits content named name without storing it.
func (in *Ingester) Chunks(name string, content []byte) ([]string, error) {
	text, err := in.extractor.ExtractBytes(content, filepath.Ext(name))
	if err != nil {
		return nil, err
	}
	chunks := in.splitter.Split(Normalize(text))
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoText, name)
	}
	return chunks, nil
}

// IngestBytes adds the chunks of content to store with name as source id and returns
// the number of chunks added.
func (in *Ingester) IngestBytes(ctx context.Context, store Adder, name string, content []byte) (int, error) {
	chunks, err := in.Chunks(name, content)
	if err != nil {
		return 0, err
	}
	if err := store.Add(ctx, chunks, name); err != nil {
		return 0, fmt.Errorf("add %s: %w", name, err)
	}
	in.logger.Debug("document ingested", zap.String("source_id", name), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// IngestFile reads path and ingests it under its base name.
func (in *Ingester) IngestFile(ctx context.Context, store Adder, path string) (int, error) {
	name := filepath.Base(path)
	if !in.Supports(name) {
		return 0, fmt.Errorf("%w: %s", extract.ErrUnsupported, name)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}
	return in.IngestBytes(ctx, store, name, content)
}

// IngestDirectory walks dir and ingests every supported regular file. Documents without
// text are skipped; any other failure stops the walk and the counts so far are returned.
func (in *Ingester) IngestDirectory(ctx context.Context, store Adder, dir string) (files, chunks int, err error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, 0, fmt.Errorf("not a directory: %s", dir)
	}
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !in.Supports(path) {
			return nil
		}
		// Resolve symlinks so only regular files are read.
		if fi, statErr := os.Stat(path); statErr != nil || !fi.Mode().IsRegular() {
			return nil
		}
		n, err := in.IngestFile(ctx, store, path)
		if errors.Is(err, ErrNoText) {
			in.logger.Warn("skipping document without text", zap.String("path", path))
			return nil
		}
		if err != nil {
			return err
		}
		files++
		chunks += n
		return nil
	})
	return files, chunks, err
}
