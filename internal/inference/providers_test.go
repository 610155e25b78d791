package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/config"
)

func jsonServer(t *testing.T, path string, handle func(body map[string]any) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status, out := handle(body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(out))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQAClient_ExtractAnswer(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		want    Answer
		wantErr bool
	}{
		{"typical", `{"answer":" 98.2% ","score":0.73,"start":4,"end":9}`, Answer{Text: "98.2%", Confidence: 0.73}, false},
		{"score above one", `{"answer":"x","score":1.7}`, Answer{Text: "x", Confidence: 1}, false},
		{"negative score", `{"answer":"x","score":-0.2}`, Answer{Text: "x", Confidence: 0}, false},
		{"missing score", `{"answer":"x"}`, Answer{}, true},
		{"missing answer", `{"score":0.5}`, Answer{}, true},
		{"not json", `<html>`, Answer{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, "/question-answering", func(body map[string]any) (int, string) {
				if body["question"] != "what rate?" || body["context"] != "the rate is 98.2%" {
					return http.StatusBadRequest, "unexpected body"
				}
				return http.StatusOK, tt.resp
			})
			qa, err := NewQAClient(HTTPConfig{BaseURL: srv.URL, Timeout: time.Second})
			if err != nil {
				t.Fatal(err)
			}
			got, err := qa.ExtractAnswer(context.Background(), "what rate?", "the rate is 98.2%")
			if tt.wantErr {
				if !errors.Is(err, ErrInference) {
					t.Errorf("err = %v, want ErrInference", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNERClient_TagEntities(t *testing.T) {
	srv := jsonServer(t, "/ner", func(body map[string]any) (int, string) {
		return http.StatusOK, `[
			{"entity_group":"ORG","word":"Acme Corp","score":0.99},
			{"entity":"B-PER","word":"John"},
			{"type":"law","text":"Banking Act"},
			{"entity_group":"MISC","word":""},
			{"word":"orphan"}
		]`
	})
	ner, _ := NewNERClient(HTTPConfig{BaseURL: srv.URL + "/", Timeout: time.Second})
	got, err := ner.TagEntities(context.Background(), "Acme Corp and John under the Banking Act")
	if err != nil {
		t.Fatal(err)
	}
	want := []Entity{{"Acme Corp", "ORG"}, {"John", "PER"}, {"Banking Act", "LAW"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNormalizeEntities_keepsHyphenatedTypes(t *testing.T) {
	got := normalizeEntities([]nerEntity{{Word: "x", Entity: "WORK-OF-ART"}, {Word: "y", Entity: "I-ORG"}})
	want := []Entity{{"x", "WORK-OF-ART"}, {"y", "ORG"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestOllamaRewriter_Rewrite(t *testing.T) {
	srv := jsonServer(t, "/api/generate", func(body map[string]any) (int, string) {
		opts, _ := body["options"].(map[string]any)
		if body["model"] != "flan-t5-base" || body["stream"] != false || opts["num_predict"] != float64(256) {
			return http.StatusBadRequest, "unexpected body"
		}
		return http.StatusOK, `{"response":" The success rate was 98.2%. ","done":true}`
	})
	rw, err := NewOllamaRewriter(HTTPConfig{BaseURL: srv.URL, Timeout: time.Second}, "flan-t5-base")
	if err != nil {
		t.Fatal(err)
	}
	got, err := rw.Rewrite(context.Background(), "Rephrase: 98.2%", 256)
	if err != nil {
		t.Fatal(err)
	}
	if got != "The success rate was 98.2%." {
		t.Errorf("got %q", got)
	}
}

func TestOllamaRewriter_streamedAndEmpty(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		want    string
		wantErr bool
	}{
		{"streamed", "{\"response\":\"Hello\"}\n{\"response\":\" world\"}\n{\"response\":\"\",\"done\":true}\n", "Hello world", false},
		{"empty", `{"response":"   "}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, "/api/generate", func(map[string]any) (int, string) {
				return http.StatusOK, tt.resp
			})
			rw, _ := NewOllamaRewriter(HTTPConfig{BaseURL: srv.URL, Timeout: time.Second}, "m")
			got, err := rw.Rewrite(context.Background(), "p", 10)
			if tt.wantErr {
				if !errors.Is(err, ErrInference) {
					t.Errorf("err = %v, want ErrInference", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestNewOllamaRewriter_requiresModel(t *testing.T) {
	if _, err := NewOllamaRewriter(HTTPConfig{BaseURL: "http://localhost"}, ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestNew_fromConfig(t *testing.T) {
	qa := jsonServer(t, "/question-answering", func(map[string]any) (int, string) {
		return http.StatusOK, `{"answer":"a","score":0.5}`
	})
	caps, err := New(config.InferenceConfig{
		BaseURL:        qa.URL,
		RewriteURL:     "http://127.0.0.1:1",
		RewriteModel:   "m",
		TimeoutSecs:    1,
		MaxConcurrency: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := caps.Extractor.ExtractAnswer(context.Background(), "q", "c")
	if err != nil || got.Text != "a" {
		t.Errorf("got %+v, %v", got, err)
	}

	if _, err := New(config.InferenceConfig{RewriteModel: "m"}); err == nil {
		t.Error("expected error for missing base URL")
	}
}
