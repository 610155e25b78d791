// Package extract turns uploaded documents into plain text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrUnsupported is returned for file types the extractor does not accept.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrExtraction is returned when a supported file cannot be decoded.
	ErrExtraction = errors.New("text extraction failed")
)

type extractFunc func(content []byte) (string, error)

var formats = map[string]extractFunc{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractExcel,
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
}

// Extractor extracts plain text from the document types it is configured for.
type Extractor struct {
	formats map[string]extractFunc
}

// NewExtractor returns an extractor for extensions (e.g. ".pdf" or "pdf"). With no
// extensions every known format is accepted; unknown extensions are ignored.
func NewExtractor(extensions ...string) *Extractor {
	e := &Extractor{formats: make(map[string]extractFunc)}
	if len(extensions) == 0 {
		for ext, fn := range formats {
			e.formats[ext] = fn
		}
		return e
	}
	for _, ext := range extensions {
		ext = normalizeExt(ext)
		if fn, ok := formats[ext]; ok {
			e.formats[ext] = fn
		}
	}
	return e
}

// Extensions returns the accepted extensions, sorted.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.formats))
	for ext := range e.formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether filename has an accepted extension.
func (e *Extractor) Supports(filename string) bool {
	_, ok := e.formats[normalizeExt(filepath.Ext(filename))]
	return ok
}

// Extract reads the file at path and returns its text.
func (e *Extractor) Extract(path string) (string, error) {
	if !e.Supports(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content according to ext (".pdf", "docx", ...).
// Decoding failures wrap ErrExtraction.
func (e *Extractor) ExtractBytes(content []byte, ext string) (text string, err error) {
	ext = normalizeExt(ext)
	fn, ok := e.formats[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	// Some malformed PDFs make the parser panic.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %s: %v", ErrExtraction, ext, r)
		}
	}()
	text, err = fn(content)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return text, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
