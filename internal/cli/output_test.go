package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"compact", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestWriteAnswer(t *testing.T) {
	msg := models.Message{
		Sender:     models.SenderAI,
		Content:    "The fee is two percent.",
		Sources:    []string{"terms.pdf_chunk_0", "terms.pdf_chunk_3"},
		Confidence: 0.87,
	}

	var text bytes.Buffer
	if err := WriteAnswer(&text, msg, OutputText); err != nil {
		t.Fatal(err)
	}
	out := text.String()
	for _, want := range []string{"The fee is two percent.", "confidence: 0.87", "terms.pdf_chunk_0, terms.pdf_chunk_3"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}

	var js bytes.Buffer
	if err := WriteAnswer(&js, msg, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.Message
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, js.String())
	}
	if decoded.Content != msg.Content || decoded.Confidence != msg.Confidence {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteAnswer_NoSources(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteAnswer(&buf, models.Message{Content: "nothing"}, OutputText)
	if strings.Contains(buf.String(), "sources:") {
		t.Errorf("sources line should be omitted:\n%s", buf.String())
	}
}

func TestWriteSessions(t *testing.T) {
	var empty bytes.Buffer
	_ = WriteSessions(&empty, nil, OutputText)
	if !strings.Contains(empty.String(), "No sessions.") {
		t.Errorf("empty output = %q", empty.String())
	}

	list := []models.SessionSummary{{
		SessionID: "0b7c1e4e-5f7a-4d3e-9a51-3f5d2c6b8e10",
		Title:     "What is the fee?",
		Role:      "Tech Lead",
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}
	var buf bytes.Buffer
	_ = WriteSessions(&buf, list, OutputText)
	for _, want := range []string{list[0].SessionID, "Tech Lead", "What is the fee?"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestWriteHistory(t *testing.T) {
	h := &models.SessionHistory{
		SessionID: "id-1",
		Role:      "Compliance Lead",
		Filenames: []string{"policy.pdf"},
		Messages: []models.Message{
			{Sender: models.SenderUser, Content: "Who signed?"},
			{Sender: models.SenderAI, Content: "Jane Roe signed.", Sources: []string{"policy.pdf_chunk_2"}},
		},
	}
	var buf bytes.Buffer
	if err := WriteHistory(&buf, h, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"role:    Compliance Lead", "policy.pdf", "[user] Who signed?", "[ai] Jane Roe signed.", "sources: policy.pdf_chunk_2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteStatus_JSON(t *testing.T) {
	s := &models.StatusResponse{Version: "1.0.0", Sessions: 3, IndexType: "hnsw", Roles: []string{"Tech Lead"}}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, s, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.StatusResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Sessions != 3 || decoded.IndexType != "hnsw" {
		t.Errorf("decoded = %+v", decoded)
	}

	var text bytes.Buffer
	_ = WriteStatus(&text, s, OutputText)
	if !strings.Contains(text.String(), "vector_index_type:  hnsw") {
		t.Errorf("text output:\n%s", text.String())
	}
}
