package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/kotae/pkg/utils"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "quarterly revenue report")
	b, _ := e.Embed(ctx, "quarterly revenue report")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text produced different vectors")
		}
	}
	var norm float64
	for _, v := range a {
		norm += float64(v * v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm^2 = %v, want 1", norm)
	}
}

func TestHashEmbedder_SharedWordsAreCloser(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "transaction success rate")
	near, _ := e.Embed(ctx, "The transaction success rate was 98 percent")
	far, _ := e.Embed(ctx, "Lunch menu for the offsite")
	if utils.SquaredL2(q, near) >= utils.SquaredL2(q, far) {
		t.Error("text sharing words should be nearer than unrelated text")
	}
}

func TestHashEmbedder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashEmbedder(4).Embed(ctx, "x"); !errors.Is(err, ErrEmbedding) {
		t.Errorf("got %v, want ErrEmbedding", err)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
	err := Wrap(errors.New("timeout"))
	if !errors.Is(err, ErrEmbedding) {
		t.Error("wrapped error should match ErrEmbedding")
	}
	if Wrap(err) != err {
		t.Error("wrapping twice should be a no-op")
	}
}
