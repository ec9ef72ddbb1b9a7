package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ptbridge/internal/database"
	"ptbridge/models"
)

func testService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "ptbridge.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceRequiresDatabase(t *testing.T) {
	if _, err := NewService(nil); !errors.Is(err, ErrDatabaseRequired) {
		t.Fatalf("expected ErrDatabaseRequired, got %v", err)
	}
}

func TestRecordAndList(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := svc.Record(ctx, models.DownloadHistoryItem{
			URL:       "https://pt.example.com/download.php?id=" + string(rune('1'+i)),
			Title:     "release",
			SiteHost:  "pt.example.com",
			ClientID:  "tr-main",
			SavePath:  "/data/pt",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	items, err := svc.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if !items[0].CreatedAt.After(items[2].CreatedAt) {
		t.Error("items should be ordered newest first")
	}
	if items[0].ID == "" {
		t.Error("record should assign an id")
	}

	limited, err := svc.List(ctx, 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 items with limit, got %d", len(limited))
	}
}

func TestRecordRequiresURL(t *testing.T) {
	svc := testService(t)
	if err := svc.Record(context.Background(), models.DownloadHistoryItem{}); err == nil {
		t.Fatal("expected an error for a missing url")
	}
}

func TestRemoveAndClear(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	for _, id := range []string{"one", "two", "three"} {
		err := svc.Record(ctx, models.DownloadHistoryItem{
			ID:  id,
			URL: "https://pt.example.com/download.php?id=" + id,
		})
		if err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	if err := svc.Remove(ctx, []string{"one", "three"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	items, err := svc.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != "two" {
		t.Fatalf("expected only %q to remain, got %+v", "two", items)
	}

	// Removing nothing is a no-op.
	if err := svc.Remove(ctx, nil); err != nil {
		t.Fatalf("remove empty: %v", err)
	}

	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	items, err = svc.List(ctx, 0)
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty history, got %d items", len(items))
	}
}
