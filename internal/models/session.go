// Package models defines the data exchanged between sessions, the HTTP API and the CLI.
package models

import "time"

// Message senders.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Message is one entry of a session's chat history.
type Message struct {
	Sender     string    `json:"sender"`
	Content    string    `json:"content"`
	Sources    []string  `json:"sources"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session is a chat session bound to one role and one document corpus.
type Session struct {
	ID        string    `json:"session_id"`
	Role      string    `json:"role"`
	Filenames []string  `json:"filenames"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionSummary is a session as shown in a list.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionHistory is a session with its full chat history.
type SessionHistory struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Filenames []string  `json:"filenames"`
	Messages  []Message `json:"messages"`
}
