// Package session persists chat sessions and owns the vector store of each session.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrRoleRequired is returned when a session would be created without a role.
	ErrRoleRequired = errors.New("role is required to create a session")
)

// DefaultTitle names a session that has no user message yet.
const DefaultTitle = "New Chat"

const titleLength = 50

// StoreOpener opens the vector store persisted in dir.
type StoreOpener func(dir string) (*vectorstore.Store, error)

// Manager keeps sessions and chat history in SQLite and caches one open vector store per session.
type Manager struct {
	db      *sql.DB
	dbPath  string
	dataDir string
	open    StoreOpener
	logger  *zap.Logger

	mu     sync.Mutex
	stores map[string]*vectorstore.Store
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager opens or creates the session database at dbPath. Session stores live under dataDir.
// Parent directories are created if they do not exist.
func NewManager(dbPath, dataDir string, open StoreOpener, opts ...Option) (*Manager, error) {
	if open == nil {
		return nil, errors.New("store opener is required")
	}
	if dataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	m := &Manager{
		db:      db,
		dbPath:  dbPath,
		dataDir: dataDir,
		open:    open,
		logger:  zap.NewNop(),
		stores:  make(map[string]*vectorstore.Store),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);

	CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		sender TEXT NOT NULL,
		content TEXT NOT NULL,
		sources TEXT NOT NULL DEFAULT '[]',
		confidence REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (session_id, seq),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS files (
		session_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		UNIQUE (session_id, filename),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Create starts a new session for role.
func (m *Manager) Create(ctx context.Context, role string) (*models.Session, error) {
	if role == "" {
		return nil, ErrRoleRequired
	}
	s := &models.Session{
		ID:        uuid.New().String(),
		Role:      role,
		Filenames: []string{},
		CreatedAt: time.Now().UTC(),
	}
	if _, err := m.db.ExecContext(ctx,
		`INSERT INTO sessions (id, role, created_at) VALUES (?, ?, ?)`,
		s.ID, s.Role, s.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.logger.Info("session created", zap.String("session_id", s.ID), zap.String("role", role))
	return s, nil
}

// Get returns the session with id, including its uploaded filenames.
func (m *Manager) Get(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := m.db.QueryRowContext(ctx,
		`SELECT id, role, created_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.Role, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	s.Filenames, err = m.filenames(ctx, id)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetOrCreate returns the session with id, or creates one for role when id is empty.
// A non-empty unknown id is ErrNotFound.
func (m *Manager) GetOrCreate(ctx context.Context, id, role string) (*models.Session, error) {
	if id == "" {
		return m.Create(ctx, role)
	}
	return m.Get(ctx, id)
}

// Count returns the number of sessions.
func (m *Manager) Count(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// List returns all sessions, newest first. The title is the first user message.
func (m *Manager) List(ctx context.Context) ([]models.SessionSummary, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT s.id, s.role, s.created_at,
			(SELECT content FROM messages
			 WHERE session_id = s.id AND sender = ?
			 ORDER BY seq LIMIT 1)
		FROM sessions s
		ORDER BY s.created_at DESC, s.rowid DESC`, models.SenderUser)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.SessionSummary{}
	for rows.Next() {
		var sum models.SessionSummary
		var first sql.NullString
		if err := rows.Scan(&sum.SessionID, &sum.Role, &sum.CreatedAt, &first); err != nil {
			return nil, err
		}
		sum.Title = title(first)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func title(first sql.NullString) string {
	if !first.Valid || first.String == "" {
		return DefaultTitle
	}
	r := []rune(first.String)
	if len(r) > titleLength {
		r = r[:titleLength]
	}
	return string(r)
}

// History returns the session with its messages in order.
func (m *Manager) History(ctx context.Context, id string) (*models.SessionHistory, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx,
		`SELECT sender, content, sources, confidence, created_at
		 FROM messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	h := &models.SessionHistory{
		SessionID: s.ID,
		Role:      s.Role,
		Filenames: s.Filenames,
		Messages:  []models.Message{},
	}
	for rows.Next() {
		var msg models.Message
		var sourcesJSON string
		if err := rows.Scan(&msg.Sender, &msg.Content, &sourcesJSON, &msg.Confidence, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sourcesJSON), &msg.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
		if msg.Sources == nil {
			msg.Sources = []string{}
		}
		h.Messages = append(h.Messages, msg)
	}
	return h, rows.Err()
}

// AppendMessage adds msg to the end of the session's history. A zero CreatedAt is set to now.
func (m *Manager) AppendMessage(ctx context.Context, id string, msg *models.Message) error {
	if msg.Sources == nil {
		msg.Sources = []string{}
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	sourcesJSON, err := json.Marshal(msg.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := sessionExists(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, seq, sender, content, sources, confidence, created_at)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?), ?, ?, ?, ?, ?)`,
		id, id, msg.Sender, msg.Content, string(sourcesJSON), msg.Confidence, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return tx.Commit()
}

// AddFilenames records uploaded filenames and returns the session's sorted unique set.
func (m *Manager) AddFilenames(ctx context.Context, id string, names []string) ([]string, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := sessionExists(ctx, tx, id); err != nil {
		return nil, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO files (session_id, filename) VALUES (?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, name); err != nil {
			return nil, fmt.Errorf("failed to record filename: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m.filenames(ctx, id)
}

func (m *Manager) filenames(ctx context.Context, id string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT filename FROM files WHERE session_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, rows.Err()
}

func sessionExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// Store returns the session's vector store, opening it on first use.
func (m *Manager) Store(ctx context.Context, id string) (*vectorstore.Store, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[id]; ok {
		return s, nil
	}
	s, err := m.open(filepath.Join(m.dataDir, id))
	if err != nil {
		return nil, fmt.Errorf("failed to open store for session %s: %w", id, err)
	}
	m.stores[id] = s
	m.logger.Debug("session store opened", zap.String("session_id", id), zap.Int("chunks", s.Size()))
	return s, nil
}

// OpenStores returns how many session stores are cached.
func (m *Manager) OpenStores() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

// DiskUsage returns the bytes used by the database and all session stores.
func (m *Manager) DiskUsage() (int64, error) {
	return DiskUsageBytes(m.dbPath, m.dbPath+"-wal", m.dataDir)
}

// Close closes every cached store and the database.
func (m *Manager) Close() error {
	m.mu.Lock()
	var errs []error
	for id, s := range m.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store %s: %w", id, err))
		}
		delete(m.stores, id)
	}
	m.mu.Unlock()
	if err := m.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
