package job

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewItem(t *testing.T) {
	item := NewItem(KindTrack, "Test Track", "/music/a.mp3")

	if item.ItemID == "" {
		t.Error("Expected generated item ID, got empty string")
	}
	if item.Kind != KindTrack {
		t.Errorf("Expected kind track, got %s", item.Kind)
	}
	if item.Name != "Test Track" {
		t.Errorf("Expected name Test Track, got %s", item.Name)
	}
	if item.SourceIdentity != "/music/a.mp3" {
		t.Errorf("Expected source identity /music/a.mp3, got %s", item.SourceIdentity)
	}
	if item.Status != StatusPending {
		t.Errorf("Expected status pending, got %s", item.Status)
	}
	if item.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestItem_MarkLifecycle(t *testing.T) {
	item := NewItem(KindTrack, "Test Track", "/music/a.mp3")

	item.MarkStarted()
	if item.GetStatus() != StatusInProgress {
		t.Errorf("Expected status in_progress, got %s", item.GetStatus())
	}
	if item.StartedAt == nil {
		t.Fatal("Expected StartedAt to be set")
	}
	first := *item.StartedAt

	item.MarkStarted()
	if !item.StartedAt.Equal(first) {
		t.Error("Expected StartedAt to keep its first value")
	}

	item.MarkCompleted("/located/a.mp3")
	if item.GetStatus() != StatusCompleted {
		t.Errorf("Expected status completed, got %s", item.GetStatus())
	}
	if item.Progress != 1.0 {
		t.Errorf("Expected progress 1.0, got %f", item.Progress)
	}
	if item.FilePath != "/located/a.mp3" {
		t.Errorf("Expected file path /located/a.mp3, got %s", item.FilePath)
	}
	if item.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}
}

func TestItem_MarkFailed(t *testing.T) {
	item := NewItem(KindTrack, "Test Track", "/music/a.mp3")
	item.MarkStarted()
	item.MarkFailed("file not found: /music/a.mp3")

	if item.GetStatus() != StatusFailed {
		t.Errorf("Expected status failed, got %s", item.GetStatus())
	}
	if item.Error != "file not found: /music/a.mp3" {
		t.Errorf("Expected error message, got %q", item.Error)
	}
	if item.Progress != 0.0 {
		t.Errorf("Expected progress 0.0, got %f", item.Progress)
	}
}

func TestItem_MarkSkipped(t *testing.T) {
	item := NewItem(KindTrack, "Test Track", "/music/a.mp3")
	item.MarkSkipped("missing file dropped by policy")

	if item.GetStatus() != StatusSkipped {
		t.Errorf("Expected status skipped, got %s", item.GetStatus())
	}
	if item.Error != "missing file dropped by policy" {
		t.Errorf("Expected skip reason in Error, got %q", item.Error)
	}
	if item.Progress != 1.0 {
		t.Errorf("Expected progress 1.0, got %f", item.Progress)
	}
}

func TestMigration_ExecutionStatistics(t *testing.T) {
	m := NewMigration("nml", "rekordbox", "in.nml", "out.xml")

	completed := NewItem(KindTrack, "A", "a")
	completed.MarkStarted()
	completed.MarkCompleted("")
	failed := NewItem(KindTrack, "B", "b")
	failed.MarkFailed("boom")
	skipped := NewItem(KindTrack, "C", "c")
	skipped.MarkSkipped("missing")
	pending := NewItem(KindTrack, "D", "d")
	playlist := NewItem(KindPlaylist, "Warmup", "")
	playlist.MarkCompleted("")

	for _, item := range []*Item{completed, failed, skipped, pending, playlist} {
		m.AddItem(item)
	}

	stats := m.ExecutionStatistics()
	if stats["completed"] != 1 {
		t.Errorf("Expected 1 completed, got %d", stats["completed"])
	}
	if stats["failed"] != 1 {
		t.Errorf("Expected 1 failed, got %d", stats["failed"])
	}
	if stats["pending"] != 1 {
		t.Errorf("Expected 1 pending, got %d", stats["pending"])
	}
	if stats["in_progress"] != 0 {
		t.Errorf("Expected 0 in_progress, got %d", stats["in_progress"])
	}
	if stats["total"] != 3 {
		t.Errorf("Expected total 3 excluding skipped and playlists, got %d", stats["total"])
	}
	if m.SkippedCount() != 1 {
		t.Errorf("Expected 1 skipped, got %d", m.SkippedCount())
	}
}

func TestMigration_GetItem(t *testing.T) {
	m := NewMigration("csv", "m3u", "in.csv", "out.m3u")
	item := NewItem(KindTrack, "A", "a")
	m.AddItem(item)

	if got := m.GetItem(item.ItemID); got != item {
		t.Errorf("Expected item %s, got %v", item.ItemID, got)
	}
	if got := m.GetItem("nope"); got != nil {
		t.Errorf("Expected nil for unknown ID, got %v", got)
	}
}

func TestMigration_SaveLoad(t *testing.T) {
	m := NewMigration("nml", "csv", "/in/library.nml", "/out/library.csv")
	done := NewItem(KindTrack, "Alpha", "/music/a.mp3")
	done.MarkStarted()
	done.MarkCompleted("/music/a.mp3")
	bad := NewItem(KindTrack, "Beta", "/music/b.mp3")
	bad.MarkFailed("file not found: /music/b.mp3")
	m.AddItem(done)
	m.AddItem(bad)

	path := filepath.Join(t.TempDir(), "migration_job_abc.json")
	if err := m.Save(path); err != nil {
		t.Fatalf("Failed to save migration: %v", err)
	}

	loaded, err := LoadMigration(path)
	if err != nil {
		t.Fatalf("Failed to load migration: %v", err)
	}
	if loaded.JobID != m.JobID {
		t.Errorf("Expected job ID %s, got %s", m.JobID, loaded.JobID)
	}
	if loaded.SourceFormat != "nml" || loaded.TargetFormat != "csv" {
		t.Errorf("Expected formats nml/csv, got %s/%s", loaded.SourceFormat, loaded.TargetFormat)
	}
	if len(loaded.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(loaded.Items))
	}
	if loaded.Items[0].GetStatus() != StatusCompleted {
		t.Errorf("Expected first item completed, got %s", loaded.Items[0].GetStatus())
	}
	if loaded.Items[1].Error != "file not found: /music/b.mp3" {
		t.Errorf("Expected failure message to survive, got %q", loaded.Items[1].Error)
	}
	if !loaded.CreatedAt.Equal(m.CreatedAt) {
		t.Errorf("Expected CreatedAt %v, got %v", m.CreatedAt, loaded.CreatedAt)
	}
}

func TestLoadMigration_MissingFile(t *testing.T) {
	if _, err := LoadMigration(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestLoadMigration_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if _, err := LoadMigration(path); err == nil {
		t.Error("Expected error for corrupt file, got nil")
	}
}
