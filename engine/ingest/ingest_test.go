package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/QAPilotAI/qapilot-mvp/engine/semantic"
	"github.com/QAPilotAI/qapilot-mvp/pkg/resilience"
)

// --- fakes ---

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

type fakeStore struct {
	resets  int
	upserts [][]semantic.VectorRecord
	// order records the sequence of operations, to assert reset-before-write.
	order     []string
	resetErr  error
	upsertErr error
}

func (f *fakeStore) Reset(context.Context) error {
	f.resets++
	f.order = append(f.order, "reset")
	return f.resetErr
}

func (f *fakeStore) Upsert(_ context.Context, records []semantic.VectorRecord) error {
	f.upserts = append(f.upserts, records)
	f.order = append(f.order, "upsert")
	return f.upsertErr
}

func writeCorpus(t *testing.T, files map[string]string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(files))
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

func newTestService(store *fakeStore, embedder *fakeEmbedder) *Service {
	return NewService(Deps{
		Embedder: embedder,
		Store:    store,
		Limiter:  resilience.NewLimiter(resilience.LimiterOpts{Rate: 1000, Burst: 1000}),
		Logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
}

// --- tests ---

func TestIngestFilesCountsChunks(t *testing.T) {
	long := strings.Repeat("the cart page lists every selected item ", 70) // ~2800 chars
	paths := writeCorpus(t, map[string]string{
		"spec.md":  long,
		"note.txt": "a single short note",
	})

	store := &fakeStore{}
	embedder := &fakeEmbedder{}
	svc := newTestService(store, embedder)

	n, err := svc.IngestFiles(context.Background(), paths)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n < 4 {
		t.Fatalf("chunks = %d, want >= 4", n)
	}

	stored := 0
	for _, batch := range store.upserts {
		stored += len(batch)
	}
	if stored != n {
		t.Fatalf("stored %d records, reported %d", stored, n)
	}
}

func TestIngestFilesEmptyPaths(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, &fakeEmbedder{})

	n, err := svc.IngestFiles(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("got (%d, %v)", n, err)
	}
	if store.resets != 0 {
		t.Fatal("empty corpus should not reset the store")
	}
}

func TestIngestFilesResetsBeforeWriting(t *testing.T) {
	paths := writeCorpus(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	store := &fakeStore{}
	svc := newTestService(store, &fakeEmbedder{})

	if _, err := svc.IngestFiles(context.Background(), paths); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.resets != 1 {
		t.Fatalf("resets = %d", store.resets)
	}
	if len(store.order) == 0 || store.order[0] != "reset" {
		t.Fatalf("order = %v", store.order)
	}
}

func TestIngestFilesBatchSize(t *testing.T) {
	long := strings.Repeat("every batch holds at most five chunks of text ", 160) // ~7400 chars
	paths := writeCorpus(t, map[string]string{"big.md": long})

	store := &fakeStore{}
	embedder := &fakeEmbedder{}
	svc := newTestService(store, embedder)

	if _, err := svc.IngestFiles(context.Background(), paths); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.upserts) < 2 {
		t.Fatalf("expected multiple batches, got %d", len(store.upserts))
	}
	for i, batch := range store.upserts {
		if len(batch) > DefaultBatchSize {
			t.Fatalf("batch %d has %d records", i, len(batch))
		}
	}
	for i, call := range embedder.calls {
		if len(call) > DefaultBatchSize {
			t.Fatalf("embed call %d has %d texts", i, len(call))
		}
	}
}

func TestIngestFilesEmbedErrorAborts(t *testing.T) {
	paths := writeCorpus(t, map[string]string{"a.txt": "alpha"})
	store := &fakeStore{}
	svc := newTestService(store, &fakeEmbedder{err: errors.New("model offline")})

	_, err := svc.IngestFiles(context.Background(), paths)
	if err == nil || !strings.Contains(err.Error(), "embed batch") {
		t.Fatalf("err = %v", err)
	}
	if len(store.upserts) != 0 {
		t.Fatal("nothing should be stored after an embed failure")
	}
}

func TestIngestFilesResetErrorAborts(t *testing.T) {
	paths := writeCorpus(t, map[string]string{"a.txt": "alpha"})
	store := &fakeStore{resetErr: errors.New("qdrant down")}
	embedder := &fakeEmbedder{}
	svc := newTestService(store, embedder)

	if _, err := svc.IngestFiles(context.Background(), paths); err == nil {
		t.Fatal("expected error")
	}
	if len(embedder.calls) != 0 {
		t.Fatal("nothing should be embedded after a reset failure")
	}
}

func TestIngestFilesRecordPayload(t *testing.T) {
	paths := writeCorpus(t, map[string]string{"login.md": "The login button has id 'login-btn'"})
	store := &fakeStore{}
	svc := newTestService(store, &fakeEmbedder{})

	if _, err := svc.IngestFiles(context.Background(), paths); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.upserts) != 1 || len(store.upserts[0]) != 1 {
		t.Fatalf("upserts = %v", store.upserts)
	}

	rec := store.upserts[0][0]
	if rec.Payload["chunk_id"] != "doc_login.md_0" {
		t.Fatalf("chunk_id = %v", rec.Payload["chunk_id"])
	}
	if rec.Payload["source"] != paths[0] {
		t.Fatalf("source = %v", rec.Payload["source"])
	}
	if rec.Payload["content"] != "The login button has id 'login-btn'" {
		t.Fatalf("content = %v", rec.Payload["content"])
	}
	if rec.Payload["chunk_index"] != 0 {
		t.Fatalf("chunk_index = %v", rec.Payload["chunk_index"])
	}
}

func TestIngestFilesDeterministicIDs(t *testing.T) {
	paths := writeCorpus(t, map[string]string{
		"a.txt": "first document",
		"b.txt": "second document",
	})
	store := &fakeStore{}
	svc := newTestService(store, &fakeEmbedder{})

	ids := func() map[string]bool {
		out := map[string]bool{}
		for _, batch := range store.upserts {
			for _, rec := range batch {
				out[rec.ID] = true
			}
		}
		return out
	}

	if _, err := svc.IngestFiles(context.Background(), paths); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := ids()

	store.upserts = nil
	if _, err := svc.IngestFiles(context.Background(), paths); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := ids()

	if len(first) != 2 || fmt.Sprint(first) != fmt.Sprint(second) {
		t.Fatalf("ids changed between runs: %v vs %v", first, second)
	}
}

func TestIngestFilesSkipsUnreadable(t *testing.T) {
	paths := writeCorpus(t, map[string]string{"ok.txt": "readable"})
	paths = append(paths, filepath.Join(t.TempDir(), "missing.txt"))

	store := &fakeStore{}
	svc := newTestService(store, &fakeEmbedder{})

	n, err := svc.IngestFiles(context.Background(), paths)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("chunks = %d, want 1", n)
	}
}
