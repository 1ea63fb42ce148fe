package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logagent "github.com/httprunner/LogAgent"
)

func openTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	path, err := ResolveDatabasePath(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("resolve path: %v", err)
	}
	store, err := OpenHistoryStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHistoryRecordAndQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.RecordBatch(ctx, "Store-A", "2024-01-15", []logagent.RetrievalResult{
		{LogType: "client", Status: logagent.StatusSuccess, FileName: "c.zip", FileSize: 500, LocalPath: "/tmp/c.zip"},
		{LogType: "backend", Status: logagent.StatusSkipped, Message: "path does not exist"},
	})
	if err != nil {
		t.Fatalf("record batch: %v", err)
	}

	rows, err := store.RecentForDevice(ctx, "Store-A", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	byType := map[string]HistoryRow{}
	for _, row := range rows {
		byType[row.LogType] = row
	}
	if byType["client"].Status != "success" || byType["client"].FileSize != 500 {
		t.Fatalf("client row = %+v", byType["client"])
	}
	if byType["backend"].Status != "skipped" || byType["backend"].Message != "path does not exist" {
		t.Fatalf("backend row = %+v", byType["backend"])
	}
}

func TestHistoryRerunOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := []logagent.RetrievalResult{{LogType: "backend", Status: logagent.StatusSkipped, Message: "path does not exist"}}
	if err := store.RecordBatch(ctx, "Store-A", "2024-01-15", first); err != nil {
		t.Fatalf("first record: %v", err)
	}
	second := []logagent.RetrievalResult{{LogType: "backend", Status: logagent.StatusSuccess, FileName: "b.zip", FileSize: 2048, LocalPath: "/tmp/b.zip"}}
	if err := store.RecordBatch(ctx, "Store-A", "2024-01-15", second); err != nil {
		t.Fatalf("second record: %v", err)
	}

	rows, err := store.RecentForDevice(ctx, "Store-A", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rerun must not duplicate, got %d rows", len(rows))
	}
	if rows[0].Status != "success" || rows[0].FileSize != 2048 {
		t.Fatalf("row not overwritten: %+v", rows[0])
	}
}

func TestHistoryPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.RecordBatch(ctx, "Store-A", "2024-01-15", []logagent.RetrievalResult{
		{LogType: "client", Status: logagent.StatusSuccess},
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Retention in the future prunes nothing; a negative retention moves the
	// cutoff past "now" and removes the fresh row.
	removed, err := store.PruneOlderThan(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 0 {
		t.Fatalf("fresh row pruned: %d", removed)
	}
	removed, err = store.PruneOlderThan(ctx, -time.Minute)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned row, got %d", removed)
	}
}

func TestHistoryRecordEmptyBatchIsNoop(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordBatch(context.Background(), "Store-A", "2024-01-15", nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}
