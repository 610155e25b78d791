// Package inference provides the answer extraction, entity tagging and rewriting
// capabilities used to compose answers.
package inference

import (
	"context"
	"errors"
	"fmt"
)

// ErrInference marks a failure of an inference capability, including a timeout.
var ErrInference = errors.New("inference failed")

// Wrap marks err as an inference failure unless it already is one.
func Wrap(err error) error {
	if err == nil || errors.Is(err, ErrInference) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInference, err)
}

// Answer is an extractive answer span and its score in [0, 1].
type Answer struct {
	Text       string
	Confidence float64
}

// Entity is a named entity found in text, e.g. {"Acme Corp", "ORG"}.
type Entity struct {
	Text string
	Type string
}

// AnswerExtractor finds the answer span for question inside context.
type AnswerExtractor interface {
	ExtractAnswer(ctx context.Context, question, passage string) (Answer, error)
}

// EntityTagger finds named entities in text.
type EntityTagger interface {
	TagEntities(ctx context.Context, text string) ([]Entity, error)
}

// Rewriter generates text for prompt, bounded by maxLength tokens.
type Rewriter interface {
	Rewrite(ctx context.Context, prompt string, maxLength int) (string, error)
}

// ExtractorFunc adapts a function to AnswerExtractor.
type ExtractorFunc func(ctx context.Context, question, passage string) (Answer, error)

// ExtractAnswer calls f.
func (f ExtractorFunc) ExtractAnswer(ctx context.Context, question, passage string) (Answer, error) {
	return f(ctx, question, passage)
}

// TaggerFunc adapts a function to EntityTagger.
type TaggerFunc func(ctx context.Context, text string) ([]Entity, error)

// TagEntities calls f.
func (f TaggerFunc) TagEntities(ctx context.Context, text string) ([]Entity, error) {
	return f(ctx, text)
}

// RewriterFunc adapts a function to Rewriter.
type RewriterFunc func(ctx context.Context, prompt string, maxLength int) (string, error)

// Rewrite calls f.
func (f RewriterFunc) Rewrite(ctx context.Context, prompt string, maxLength int) (string, error) {
	return f(ctx, prompt, maxLength)
}
