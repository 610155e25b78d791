// Package integration runs the HTTP API end to end against fake inference endpoints.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/inference"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

// fakeInference serves the question-answering, NER and generate endpoints.
type fakeInference struct {
	score    float64
	prompts  atomic.Value
	qaCalls  atomic.Int32
	genCalls atomic.Int32
}

func (f *fakeInference) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/question-answering", func(w http.ResponseWriter, r *http.Request) {
		f.qaCalls.Add(1)
		var req struct {
			Question string `json:"question"`
			Context  string `json:"context"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("qa decode: %v", err)
		}
		answerText := "unknown"
		if strings.Contains(req.Context, "2.1 percent") {
			answerText = "2.1 percent"
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"answer": answerText, "score": f.score})
	})
	mux.HandleFunc("/ner", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"word": "Acme Bank", "entity_group": "ORG"},
			{"word": "Jane Roe", "entity_group": "PER"},
			{"word": "2.1 percent", "entity": "B-PERCENT"},
		})
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		f.genCalls.Add(1)
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.prompts.Store(req.Prompt)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"response": " Credit cards carry a 2.1 percent fee. ", "done": true})
	})
	return mux
}

type stack struct {
	client *cli.Client
	fake   *fakeInference
}

func newStack(t *testing.T, score float64) *stack {
	t.Helper()
	fake := &fakeInference{score: score}
	inferenceSrv := httptest.NewServer(fake.handler(t))
	t.Cleanup(inferenceSrv.Close)

	dir := t.TempDir()
	cfg := &config.Config{
		Storage:   config.StorageConfig{DatabasePath: filepath.Join(dir, "db", "sessions.db"), DataDir: filepath.Join(dir, "corpora")},
		Embedding: config.EmbeddingConfig{Provider: "hash", Dimensions: 128, CacheSize: 100},
		Vector:    config.VectorConfig{IndexType: "hnsw"},
		Inference: config.InferenceConfig{BaseURL: inferenceSrv.URL, RewriteURL: inferenceSrv.URL, RewriteModel: "flan-t5-base"},
		Ingest:    config.IngestConfig{ChunkSize: 300, ChunkOverlap: 30},
	}
	config.ApplyDefaults(cfg)

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		t.Fatal(err)
	}
	open := func(dir string) (*vectorstore.Store, error) {
		idx, err := vector.NewIndex(cfg.Vector.IndexType, embedder.Dimensions(), vector.Options{Seed: cfg.Vector.Seed})
		if err != nil {
			return nil, err
		}
		return vectorstore.Open(dir, embedder, vectorstore.WithIndex(idx))
	}
	sessions, err := session.NewManager(cfg.Storage.DatabasePath, cfg.Storage.DataDir, open)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sessions.Close() })

	splitter, err := ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		t.Fatal(err)
	}
	ingester := ingest.New(extract.NewExtractor(cfg.Ingest.Extensions...), splitter)

	caps, err := inference.New(cfg.Inference)
	if err != nil {
		t.Fatal(err)
	}
	answers, err := answer.New(*caps, answer.ConfigFrom(cfg.Answer, cfg.Inference.Timeout()))
	if err != nil {
		t.Fatal(err)
	}

	srv := server.NewServer(sessions, ingester, answers, &cfg.Server, server.Info{Version: "it", IndexType: "hnsw"}, nil)
	api := httptest.NewServer(srv.Router())
	t.Cleanup(api.Close)
	return &stack{client: cli.NewClient(api.URL), fake: fake}
}

func writeDocs(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	docs := map[string]string{
		"fees.txt":  "Acme Bank fee schedule.\n\nDebit cards carry a 1.8 percent fee. Credit cards carry a 2.1 percent fee.",
		"policy.md": "# KYC policy\n\nJane Roe approved the customer due diligence checklist in March.",
	}
	var paths []string
	for name, content := range docs {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

func TestIntegration_UploadChatHistory(t *testing.T) {
	s := newStack(t, 0.82)
	ctx := context.Background()

	up, err := s.client.Upload(ctx, "", "Product Lead", writeDocs(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if up.Message != "Successfully processed 2 files." || len(up.Filenames) != 2 {
		t.Errorf("upload = %+v", up)
	}

	resp, err := s.client.Chat(ctx, up.SessionID, "What is the credit card fee?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Response.Content != "Credit cards carry a 2.1 percent fee." {
		t.Errorf("content = %q", resp.Response.Content)
	}
	if resp.Response.Confidence != 0.82 {
		t.Errorf("confidence = %v", resp.Response.Confidence)
	}
	if len(resp.Response.Sources) == 0 {
		t.Error("sources should be set")
	}

	prompt, _ := s.fake.prompts.Load().(string)
	// Product Lead sees ORG and PERCENT but not PER.
	if !strings.Contains(prompt, "Acme Bank (ORG)") || !strings.Contains(prompt, "2.1 percent (PERCENT)") {
		t.Errorf("prompt missing role entities:\n%s", prompt)
	}
	if strings.Contains(prompt, "Jane Roe") {
		t.Errorf("prompt should not include entities outside the role:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Raw Answer: 2.1 percent") {
		t.Errorf("prompt missing raw answer:\n%s", prompt)
	}

	h, err := s.client.History(ctx, up.SessionID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h.Messages) != 2 || h.Messages[0].Sender != models.SenderUser || h.Messages[1].Sender != models.SenderAI {
		t.Errorf("history = %+v", h.Messages)
	}

	list, err := s.client.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(list) != 1 || list[0].Title != "What is the credit card fee?" {
		t.Errorf("sessions = %+v", list)
	}

	st, err := s.client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Sessions != 1 || st.IndexType != "hnsw" {
		t.Errorf("status = %+v", st)
	}
}

func TestIntegration_LowConfidenceSkipsGeneration(t *testing.T) {
	s := newStack(t, 0.1)
	ctx := context.Background()
	up, err := s.client.Upload(ctx, "", "Tech Lead", writeDocs(t))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := s.client.Chat(ctx, up.SessionID, "Who approved the checklist?")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Response.Content != answer.LowConfidenceMessage {
		t.Errorf("content = %q", resp.Response.Content)
	}
	if s.fake.genCalls.Load() != 0 {
		t.Errorf("generate called %d times, want 0", s.fake.genCalls.Load())
	}
}

func TestIntegration_TaskQueryUsesGeneration(t *testing.T) {
	s := newStack(t, 0.9)
	ctx := context.Background()
	up, err := s.client.Upload(ctx, "", "Tech Lead", writeDocs(t))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := s.client.Chat(ctx, up.SessionID, "List all card fees")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Response.Confidence != config.DefaultTaskConfidence {
		t.Errorf("confidence = %v, want %v", resp.Response.Confidence, config.DefaultTaskConfidence)
	}
	if s.fake.qaCalls.Load() != 0 {
		t.Errorf("question answering called %d times for a task", s.fake.qaCalls.Load())
	}
	prompt, _ := s.fake.prompts.Load().(string)
	if !strings.Contains(prompt, "Task: List all card fees") {
		t.Errorf("task prompt = %q", prompt)
	}
}

func TestIntegration_UnknownSession(t *testing.T) {
	s := newStack(t, 0.9)
	_, err := s.client.Chat(context.Background(), "5b1f0e52-93c8-4ab5-8d1e-0f4c2a7d9e31", "anything")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want 404", err)
	}
}
