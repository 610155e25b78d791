package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	embedder := embedding.NewHashEmbedder(32)
	open := func(dir string) (*vectorstore.Store, error) {
		return vectorstore.Open(dir, embedder)
	}
	m, err := NewManager(filepath.Join(dir, "db", "sessions.db"), filepath.Join(dir, "corpora"), open)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, dir
}

func TestManager_CreateAndGet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "Tech Lead")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(s.ID) != 36 {
		t.Errorf("id = %q, want a uuid", s.ID)
	}

	got, err := m.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Role != "Tech Lead" || got.ID != s.ID {
		t.Errorf("Get = %+v", got)
	}
	if got.Filenames == nil || len(got.Filenames) != 0 {
		t.Errorf("Filenames = %#v, want empty", got.Filenames)
	}
}

func TestManager_Errors(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, ""); !errors.Is(err, ErrRoleRequired) {
		t.Errorf("Create without role: %v, want ErrRoleRequired", err)
	}
	if _, err := m.GetOrCreate(ctx, "", ""); !errors.Is(err, ErrRoleRequired) {
		t.Errorf("GetOrCreate without role: %v, want ErrRoleRequired", err)
	}
	const unknown = "5b1f0e52-93c8-4ab5-8d1e-0f4c2a7d9e31"
	if _, err := m.Get(ctx, unknown); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown: %v, want ErrNotFound", err)
	}
	if _, err := m.GetOrCreate(ctx, unknown, "Tech Lead"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOrCreate unknown: %v, want ErrNotFound", err)
	}
	if _, err := m.History(ctx, unknown); !errors.Is(err, ErrNotFound) {
		t.Errorf("History unknown: %v, want ErrNotFound", err)
	}
	if err := m.AppendMessage(ctx, unknown, &models.Message{Sender: models.SenderUser, Content: "hi"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendMessage unknown: %v, want ErrNotFound", err)
	}
	if _, err := m.AddFilenames(ctx, unknown, []string{"a.pdf"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddFilenames unknown: %v, want ErrNotFound", err)
	}
	if _, err := m.Store(ctx, unknown); !errors.Is(err, ErrNotFound) {
		t.Errorf("Store unknown: %v, want ErrNotFound", err)
	}
}

func TestManager_GetOrCreateReturnsExisting(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, "", "Product Lead")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	again, err := m.GetOrCreate(ctx, s.ID, "")
	if err != nil {
		t.Fatalf("GetOrCreate existing: %v", err)
	}
	if again.ID != s.ID || again.Role != "Product Lead" {
		t.Errorf("got %+v, want session %s", again, s.ID)
	}
}

func TestManager_History(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	s, _ := m.Create(ctx, "Compliance Lead")

	msgs := []models.Message{
		{Sender: models.SenderUser, Content: "What is the fee?"},
		{Sender: models.SenderAI, Content: "The fee is 2%.", Sources: []string{"terms.pdf_chunk_0"}, Confidence: 0.8},
		{Sender: models.SenderUser, Content: "And the term?"},
	}
	for i := range msgs {
		if err := m.AppendMessage(ctx, s.ID, &msgs[i]); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	h, err := m.History(ctx, s.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if h.Role != "Compliance Lead" || len(h.Messages) != 3 {
		t.Fatalf("History = %+v", h)
	}
	for i, msg := range h.Messages {
		if msg.Sender != msgs[i].Sender || msg.Content != msgs[i].Content {
			t.Errorf("message %d = %+v, want %+v", i, msg, msgs[i])
		}
	}
	if !reflect.DeepEqual(h.Messages[1].Sources, []string{"terms.pdf_chunk_0"}) || h.Messages[1].Confidence != 0.8 {
		t.Errorf("ai message = %+v", h.Messages[1])
	}
	if h.Messages[0].Sources == nil {
		t.Error("user message sources should be an empty slice")
	}
}

func TestManager_ListTitles(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	empty, _ := m.Create(ctx, "Tech Lead")
	long, _ := m.Create(ctx, "Tech Lead")
	question := strings.Repeat("é", 60)
	_ = m.AppendMessage(ctx, long.ID, &models.Message{Sender: models.SenderUser, Content: question})
	_ = m.AppendMessage(ctx, long.ID, &models.Message{Sender: models.SenderUser, Content: "second"})

	list, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List len = %d, want 2", len(list))
	}
	titles := map[string]string{}
	for _, s := range list {
		titles[s.SessionID] = s.Title
	}
	if titles[empty.ID] != DefaultTitle {
		t.Errorf("empty session title = %q, want %q", titles[empty.ID], DefaultTitle)
	}
	if want := strings.Repeat("é", 50); titles[long.ID] != want {
		t.Errorf("title = %q, want 50 runes of the first message", titles[long.ID])
	}
	if list[0].SessionID != long.ID {
		t.Errorf("List should be newest first, got %s first", list[0].SessionID)
	}

	n, err := m.Count(ctx)
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v; want 2", n, err)
	}
}

func TestManager_AddFilenames(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	s, _ := m.Create(ctx, "Tech Lead")

	got, err := m.AddFilenames(ctx, s.ID, []string{"b.pdf", "a.docx", "b.pdf"})
	if err != nil {
		t.Fatalf("AddFilenames: %v", err)
	}
	if want := []string{"a.docx", "b.pdf"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AddFilenames = %v, want %v", got, want)
	}
	got, _ = m.AddFilenames(ctx, s.ID, []string{"a.docx", "c.txt", ""})
	if want := []string{"a.docx", "b.pdf", "c.txt"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AddFilenames = %v, want %v", got, want)
	}
}

func TestManager_StoreIsCachedAndPersisted(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()
	s, _ := m.Create(ctx, "Tech Lead")

	store, err := m.Store(ctx, s.ID)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	again, _ := m.Store(ctx, s.ID)
	if store != again {
		t.Error("Store should return the cached instance")
	}
	if m.OpenStores() != 1 {
		t.Errorf("OpenStores = %d, want 1", m.OpenStores())
	}
	if err := store.Add(ctx, []string{"the fee is two percent"}, "terms.pdf"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "corpora", s.ID)); err != nil {
		t.Errorf("session store dir missing: %v", err)
	}

	usage, err := m.DiskUsage()
	if err != nil || usage == 0 {
		t.Errorf("DiskUsage = %d, %v; want > 0", usage, err)
	}
}

func TestManager_ReopenKeepsSessions(t *testing.T) {
	dir := t.TempDir()
	embedder := embedding.NewHashEmbedder(32)
	open := func(dir string) (*vectorstore.Store, error) { return vectorstore.Open(dir, embedder) }
	dbPath := filepath.Join(dir, "sessions.db")
	dataDir := filepath.Join(dir, "corpora")
	ctx := context.Background()

	m, err := NewManager(dbPath, dataDir, open)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := m.Create(ctx, "Bank Alliance Lead")
	store, _ := m.Store(ctx, s.ID)
	_ = store.Add(ctx, []string{"alliance terms"}, "deal.pdf")
	_ = m.AppendMessage(ctx, s.ID, &models.Message{Sender: models.SenderUser, Content: "terms?"})
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := NewManager(dbPath, dataDir, open)
	if err != nil {
		t.Fatal(err)
	}
	defer m2.Close()
	h, err := m2.History(ctx, s.ID)
	if err != nil || len(h.Messages) != 1 {
		t.Fatalf("History after reopen = %+v, %v", h, err)
	}
	store2, err := m2.Store(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if store2.Size() != 1 {
		t.Errorf("store size after reopen = %d, want 1", store2.Size())
	}
}

func TestManager_ConcurrentAppend(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	s, _ := m.Create(ctx, "Tech Lead")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.AppendMessage(ctx, s.ID, &models.Message{Sender: models.SenderUser, Content: "q"}); err != nil {
				t.Errorf("AppendMessage: %v", err)
			}
		}()
	}
	wg.Wait()

	h, _ := m.History(ctx, s.ID)
	if len(h.Messages) != 20 {
		t.Errorf("messages = %d, want 20", len(h.Messages))
	}
}

func TestNewManager_Validation(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewManager(filepath.Join(dir, "s.db"), dir, nil); err == nil {
		t.Error("expected error without opener")
	}
	open := func(string) (*vectorstore.Store, error) { return nil, errors.New("unused") }
	if _, err := NewManager(filepath.Join(dir, "s.db"), "", open); err == nil {
		t.Error("expected error without data dir")
	}
}
