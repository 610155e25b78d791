package inference

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of in-flight capability calls. A nil Limiter is unbounded.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter returns a limiter allowing n concurrent calls, or nil when n <= 0.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		return nil
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n))}
}

// Do runs fn once a slot is free. Waiting for a slot honours ctx.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return Wrap(err)
	}
	defer l.sem.Release(1)
	return fn(ctx)
}

// Extractor returns e bounded by l.
func (l *Limiter) Extractor(e AnswerExtractor) AnswerExtractor {
	if l == nil {
		return e
	}
	return ExtractorFunc(func(ctx context.Context, question, passage string) (Answer, error) {
		var out Answer
		err := l.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = e.ExtractAnswer(ctx, question, passage)
			return err
		})
		return out, err
	})
}

// Tagger returns t bounded by l.
func (l *Limiter) Tagger(t EntityTagger) EntityTagger {
	if l == nil {
		return t
	}
	return TaggerFunc(func(ctx context.Context, text string) ([]Entity, error) {
		var out []Entity
		err := l.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = t.TagEntities(ctx, text)
			return err
		})
		return out, err
	})
}

// Rewriter returns r bounded by l.
func (l *Limiter) Rewriter(r Rewriter) Rewriter {
	if l == nil {
		return r
	}
	return RewriterFunc(func(ctx context.Context, prompt string, maxLength int) (string, error) {
		var out string
		err := l.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = r.Rewrite(ctx, prompt, maxLength)
			return err
		})
		return out, err
	})
}
