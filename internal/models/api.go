package models

// UploadResponse is returned after files are added to a session.
type UploadResponse struct {
	SessionID string   `json:"session_id"`
	Message   string   `json:"message"`
	Filenames []string `json:"filenames"`
}

// ChatRequest asks a question within a session.
type ChatRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
	Query     string `json:"query" validate:"required,max=4000"`
}

// Validate returns field errors keyed by JSON name, or nil when the request is valid.
func (r *ChatRequest) Validate() map[string]string {
	return validateStruct(r)
}

// ChatResponse carries the AI message answering a ChatRequest.
type ChatResponse struct {
	SessionID string  `json:"session_id"`
	Response  Message `json:"response"`
}

// UploadForm holds the non-file fields of an upload.
type UploadForm struct {
	SessionID string `validate:"omitempty,uuid"`
	Role      string `validate:"required_without=SessionID,max=100"`
}

// Validate returns field errors, or nil when the form is valid.
func (f *UploadForm) Validate() map[string]string {
	return validateStruct(f)
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// StatusResponse describes the running server.
type StatusResponse struct {
	Version        string   `json:"version"`
	Sessions       int      `json:"sessions"`
	OpenStores     int      `json:"open_stores"`
	EmbeddingModel string   `json:"embedding_model"`
	Dimensions     int      `json:"dimensions"`
	IndexType      string   `json:"index_type"`
	Roles          []string `json:"roles"`
	Extensions     []string `json:"extensions"`
	DiskUsageBytes int64    `json:"disk_usage_bytes"`
}
