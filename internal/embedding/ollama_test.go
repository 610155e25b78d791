package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newOllamaServer(t *testing.T, dims int, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/embeddings" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req ollamaEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if status != http.StatusOK {
			http.Error(w, "model not loaded", status)
			return
		}
		vec := make([]float32, dims)
		vec[len(req.Prompt)%dims] = 2
		_ = json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: vec})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv, _ := newOllamaServer(t, 4, http.StatusOK)
	emb, err := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL + "/", Model: "all-minilm", Dimensions: 4})
	if err != nil {
		t.Fatal(err)
	}
	v, err := emb.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 4 || v[3] != 1 {
		t.Errorf("got %v, want normalized one-hot at 3", v)
	}
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	srv, calls := newOllamaServer(t, 4, http.StatusOK)
	emb, _ := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "m", Dimensions: 4, Concurrency: 3})
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := emb.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != len(texts) || calls.Load() != int32(len(texts)) {
		t.Fatalf("got %d vectors from %d calls", len(vecs), calls.Load())
	}
	for i, v := range vecs {
		if v[len(texts[i])%4] != 1 {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	ctx := context.Background()

	srv, _ := newOllamaServer(t, 4, http.StatusInternalServerError)
	emb, _ := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "m", Dimensions: 4})
	if _, err := emb.Embed(ctx, "x"); !errors.Is(err, ErrEmbedding) {
		t.Errorf("status error: got %v, want ErrEmbedding", err)
	}

	wrongDims, _ := newOllamaServer(t, 3, http.StatusOK)
	emb, _ = NewOllamaEmbedder(OllamaConfig{BaseURL: wrongDims.URL, Model: "m", Dimensions: 4})
	if _, err := emb.EmbedBatch(ctx, []string{"x", "y"}); !errors.Is(err, ErrEmbedding) {
		t.Errorf("dimension mismatch: got %v, want ErrEmbedding", err)
	}
}

func TestNewOllamaEmbedder_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  OllamaConfig
	}{
		{"missing url", OllamaConfig{Model: "m", Dimensions: 4}},
		{"missing model", OllamaConfig{BaseURL: "http://x", Dimensions: 4}},
		{"zero dims", OllamaConfig{BaseURL: "http://x", Model: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewOllamaEmbedder(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
