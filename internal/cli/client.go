package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// Client calls a running kotae server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Chat asks query within the session.
func (c *Client) Chat(ctx context.Context, sessionID, query string) (*models.ChatResponse, error) {
	body, err := json.Marshal(models.ChatRequest{SessionID: sessionID, Query: query})
	if err != nil {
		return nil, err
	}
	var out models.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/chat", "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends files to the server. An empty sessionID creates a session for role.
func (c *Client) Upload(ctx context.Context, sessionID, role string, paths []string) (*models.UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if sessionID != "" {
		_ = mw.WriteField("session_id", sessionID)
	}
	if role != "" {
		_ = mw.WriteField("role", role)
	}
	for _, p := range paths {
		if err := addFile(mw, p); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	var out models.UploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/upload", mw.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func addFile(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// Sessions lists the server's sessions.
func (c *Client) Sessions(ctx context.Context) ([]models.SessionSummary, error) {
	var out []models.SessionSummary
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns a session with its messages.
func (c *Client) History(ctx context.Context, id string) (*models.SessionHistory, error) {
	var out models.SessionHistory
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the server status.
func (c *Client) Status(ctx context.Context) (*models.StatusResponse, error) {
	var out models.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var e models.ErrorResponse
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
