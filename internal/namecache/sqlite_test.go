package namecache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/brightsync/internal/infrastructure/config"
	"github.com/nerrad567/brightsync/internal/infrastructure/database"
	"github.com/nerrad567/brightsync/migrations"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "names.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteStore(db)
}

func TestSQLiteStore_SaveLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	written := time.Date(2026, 10, 16, 12, 30, 0, 123456789, time.UTC)
	records := []Record{
		{DeviceInstanceID: `DISPLAY\DEL4321\1`, Name: "Left", LastWriteTime: written},
		{DeviceInstanceID: "backlight:intel_backlight", Name: "Laptop", LastWriteTime: written.Add(time.Hour)},
	}

	if err := store.Save(ctx, records); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load() = %d records, want 2", len(got))
	}
	byID := map[string]Record{}
	for _, r := range got {
		byID[r.DeviceInstanceID] = r
	}
	left := byID[`DISPLAY\DEL4321\1`]
	if left.Name != "Left" || !left.LastWriteTime.Equal(written) {
		t.Errorf("Left = %+v, want name Left at %v", left, written)
	}
}

func TestSQLiteStore_SaveReplacesTable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Save(ctx, []Record{{"A", "A", now}, {"B", "B", now}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, []Record{{"C", "C", now}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 || got[0].DeviceInstanceID != "C" {
		t.Errorf("Load() = %+v, want only C", got)
	}
}

func TestSQLiteStore_InvalidRecordRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Save(ctx, []Record{{"A", "A", now}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	err := store.Save(ctx, []Record{{"B", "B", now}, {"", "broken", now}})
	if !errors.Is(err, ErrInvalidRecord) || !errors.Is(err, ErrStoreFailed) {
		t.Fatalf("Save() error = %v, want ErrInvalidRecord wrapped in ErrStoreFailed", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 || got[0].DeviceInstanceID != "A" {
		t.Errorf("Load() = %+v, want previous table intact", got)
	}
}

func TestOpen_OverSQLite(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, []Record{
		{"A", "A", base},
		{"B", "B", base.Add(time.Minute)},
		{"C", "C", base.Add(2 * time.Minute)},
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	c, err := Open(ctx, store, 2)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := c.Lookup("A"); ok {
		t.Error("oldest record A survived truncation")
	}

	stored, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("stored %d records after Open, want 2", len(stored))
	}
}
