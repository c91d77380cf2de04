package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/iamwavecut/ngmod/internal/moderation"
)

func newTestClient(t *testing.T) *sqliteClient {
	t.Helper()
	client, err := NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestModerationTablesExistAfterMigrations(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	for _, table := range []string{"chat_moderation", "chat_mutes", "chat_warnings"} {
		var name string
		err := client.db.GetContext(context.Background(), &name, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		if err != nil {
			t.Fatalf("table %q not found: %v", table, err)
		}
	}
}

func TestLoadUnknownChat(t *testing.T) {
	t.Parallel()

	snap, err := newTestClient(t).LoadChatSnapshot(context.Background(), 42)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected no snapshot, got %+v", snap)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	expiry := time.Date(2024, 7, 1, 10, 30, 0, 123, time.UTC)

	first := moderation.Snapshot{
		ChatID:    -100,
		URLLock:   true,
		WarnLimit: 5,
		Mutes: map[int64]moderation.MuteRecord{
			1: {Expiry: &expiry, DisplayName: "Timed"},
			2: {DisplayName: "Forever"},
		},
		Warnings: map[int64]int{3: 2, 4: 0},
	}
	if err := client.SaveChatSnapshot(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := client.LoadChatSnapshot(ctx, -100)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.URLLock || got.WarnLimit != 5 {
		t.Fatalf("unexpected chat row %+v", got)
	}
	if len(got.Mutes) != 2 {
		t.Fatalf("expected 2 mutes, got %d", len(got.Mutes))
	}
	if timed := got.Mutes[1]; timed.Expiry == nil || !timed.Expiry.Equal(expiry) || timed.DisplayName != "Timed" {
		t.Fatalf("unexpected timed mute %+v", timed)
	}
	if !got.Mutes[2].Permanent() {
		t.Fatalf("expected permanent mute, got %+v", got.Mutes[2])
	}
	if len(got.Warnings) != 1 || got.Warnings[3] != 2 {
		t.Fatalf("unexpected warnings %v", got.Warnings)
	}

	second := moderation.Snapshot{ChatID: -100, WarnLimit: 3, Mutes: map[int64]moderation.MuteRecord{}, Warnings: map[int64]int{}}
	if err := client.SaveChatSnapshot(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = client.LoadChatSnapshot(ctx, -100)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.URLLock || len(got.Mutes) != 0 || len(got.Warnings) != 0 {
		t.Fatalf("expected snapshot to be replaced, got %+v", got)
	}
}

func TestSnapshotsAreIsolatedPerChat(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()
	for _, chatID := range []int64{1, 2} {
		snap := moderation.Snapshot{
			ChatID:    chatID,
			WarnLimit: 3,
			Mutes:     map[int64]moderation.MuteRecord{chatID * 10: {DisplayName: "m"}},
			Warnings:  map[int64]int{},
		}
		if err := client.SaveChatSnapshot(ctx, snap); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := client.LoadChatSnapshot(ctx, 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := got.Mutes[20]; !ok || len(got.Mutes) != 1 {
		t.Fatalf("unexpected mutes %v", got.Mutes)
	}
}
