package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// OllamaRewriter generates text with an Ollama-compatible /api/generate endpoint.
type OllamaRewriter struct {
	c     *client
	model string
}

type generateOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// NewOllamaRewriter returns a rewriter for model served at cfg.BaseURL.
func NewOllamaRewriter(cfg HTTPConfig, model string) (*OllamaRewriter, error) {
	if model == "" {
		return nil, fmt.Errorf("rewrite model is required")
	}
	c, err := newClient(cfg.BaseURL, cfg.Client, cfg.Timeout, cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("rewrite client: %w", err)
	}
	return &OllamaRewriter{c: c, model: model}, nil
}

// Rewrite returns the generated text for prompt. An empty generation is an error.
func (o *OllamaRewriter) Rewrite(ctx context.Context, prompt string, maxLength int) (string, error) {
	req := generateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Options: generateOptions{NumPredict: maxLength},
	}
	raw, err := o.c.post(ctx, "/api/generate", req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(decodeGeneration(raw))
	if text == "" {
		return "", fmt.Errorf("%w: empty generation", ErrInference)
	}
	return text, nil
}

// decodeGeneration reads a single response object, or concatenates a stream of them
// when the server ignores stream=false.
func decodeGeneration(raw []byte) string {
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err == nil {
		return out.Response
	}
	var sb strings.Builder
	dec := json.NewDecoder(bytes.NewReader(raw))
	for dec.More() {
		var chunk generateResponse
		if err := dec.Decode(&chunk); err != nil {
			break
		}
		sb.WriteString(chunk.Response)
	}
	return sb.String()
}
