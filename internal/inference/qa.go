package inference

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/kotae/pkg/utils"
)

// HTTPConfig configures the HTTP capability clients.
type HTTPConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Client     *http.Client
}

// QAClient extracts answers with an extractive question answering server.
type QAClient struct {
	c *client
}

type qaRequest struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type qaResponse struct {
	Answer *string  `json:"answer"`
	Score  *float64 `json:"score"`
}

// NewQAClient returns a client for POST {base}/question-answering.
func NewQAClient(cfg HTTPConfig) (*QAClient, error) {
	c, err := newClient(cfg.BaseURL, cfg.Client, cfg.Timeout, cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("question answering client: %w", err)
	}
	return &QAClient{c: c}, nil
}

// ExtractAnswer returns the best answer span and its score clamped to [0, 1].
func (q *QAClient) ExtractAnswer(ctx context.Context, question, passage string) (Answer, error) {
	var out qaResponse
	if err := q.c.postJSON(ctx, "/question-answering", qaRequest{Question: question, Context: passage}, &out); err != nil {
		return Answer{}, err
	}
	return normalizeAnswer(out)
}

func normalizeAnswer(r qaResponse) (Answer, error) {
	if r.Answer == nil {
		return Answer{}, fmt.Errorf("%w: response has no answer", ErrInference)
	}
	if r.Score == nil {
		return Answer{}, fmt.Errorf("%w: response has no score", ErrInference)
	}
	return Answer{Text: strings.TrimSpace(*r.Answer), Confidence: utils.Clamp01(*r.Score)}, nil
}
