package job

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewExecutor_DefaultWorkers(t *testing.T) {
	executor := NewExecutor(ProcessorFunc(func(ctx context.Context, item *Item) error {
		return nil
	}), 0)
	if executor.maxWorkers != 4 {
		t.Errorf("Expected default maxWorkers 4, got %d", executor.maxWorkers)
	}
}

func TestExecutor_Execute_Empty(t *testing.T) {
	executor := NewExecutor(ProcessorFunc(func(ctx context.Context, item *Item) error {
		return nil
	}), 2)
	m := NewMigration("nml", "csv", "in", "out")

	stats, err := executor.Execute(context.Background(), m, nil)
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if stats["total"] != 0 {
		t.Errorf("Expected total 0, got %d", stats["total"])
	}
}

func TestExecutor_Execute_CompletesItems(t *testing.T) {
	var processed int64
	executor := NewExecutor(ProcessorFunc(func(ctx context.Context, item *Item) error {
		atomic.AddInt64(&processed, 1)
		return nil
	}), 2)

	m := NewMigration("nml", "csv", "in", "out")
	for i := 0; i < 3; i++ {
		m.AddItem(NewItem(KindTrack, fmt.Sprintf("Track %d", i), fmt.Sprintf("id-%d", i)))
	}
	playlist := NewItem(KindPlaylist, "Warmup", "")
	m.AddItem(playlist)

	stats, err := executor.Execute(context.Background(), m, nil)
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if atomic.LoadInt64(&processed) != 3 {
		t.Errorf("Expected processor called 3 times, got %d", processed)
	}
	if stats["completed"] != 3 {
		t.Errorf("Expected 3 completed, got %d", stats["completed"])
	}
	if playlist.GetStatus() != StatusPending {
		t.Errorf("Expected playlist item untouched, got %s", playlist.GetStatus())
	}
}

func TestExecutor_Execute_Failure(t *testing.T) {
	executor := NewExecutor(ProcessorFunc(func(ctx context.Context, item *Item) error {
		if item.Name == "Bad" {
			return errors.New("file not found: /music/bad.mp3")
		}
		return nil
	}), 2)

	m := NewMigration("nml", "csv", "in", "out")
	good := NewItem(KindTrack, "Good", "g")
	bad := NewItem(KindTrack, "Bad", "b")
	m.AddItem(good)
	m.AddItem(bad)

	stats, err := executor.Execute(context.Background(), m, nil)
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if stats["completed"] != 1 || stats["failed"] != 1 {
		t.Errorf("Expected 1 completed and 1 failed, got %d and %d", stats["completed"], stats["failed"])
	}
	if bad.Error != "file not found: /music/bad.mp3" {
		t.Errorf("Expected failure message on item, got %q", bad.Error)
	}
}

func TestExecutor_Execute_ProcessorSkips(t *testing.T) {
	executor := NewExecutor(ProcessorFunc(func(ctx context.Context, item *Item) error {
		if item.Name == "Ghost" {
			item.MarkSkipped("missing file dropped by policy")
		}
		return nil
	}), 2)

	m := NewMigration("nml", "csv", "in", "out")
	m.AddItem(NewItem(KindTrack, "Ghost", "g"))
	m.AddItem(NewItem(KindTrack, "Solid", "s"))

	stats, err := executor.Execute(context.Background(), m, nil)
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if stats["completed"] != 1 {
		t.Errorf("Expected 1 completed, got %d", stats["completed"])
	}
	if stats["total"] != 1 {
		t.Errorf("Expected skipped item excluded from total, got %d", stats["total"])
	}
	if m.SkippedCount() != 1 {
		t.Errorf("Expected 1 skipped, got %d", m.SkippedCount())
	}
}

// Canceling mid-run must leave exactly the dispatched items completed and
// everything after the cancellation point pending.
func TestExecutor_Execute_Cancel(t *testing.T) {
	executor := NewExecutor(ProcessorFunc(func(ctx context.Context, item *Item) error {
		return nil
	}), 1)

	m := NewMigration("nml", "csv", "in", "out")
	for i := 0; i < 20; i++ {
		m.AddItem(NewItem(KindTrack, fmt.Sprintf("Track %02d", i), fmt.Sprintf("id-%d", i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processed := 0
	progress := func(item *Item) {
		processed++
		if processed == 5 {
			cancel()
		}
	}

	stats, err := executor.Execute(ctx, m, progress)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if stats["completed"] != 5 {
		t.Errorf("Expected exactly 5 completed after cancel, got %d", stats["completed"])
	}
	if stats["pending"] != 15 {
		t.Errorf("Expected 15 pending after cancel, got %d", stats["pending"])
	}
	if stats["in_progress"] != 0 {
		t.Errorf("Expected nothing left in_progress, got %d", stats["in_progress"])
	}
}

func TestExecutor_RequestShutdown(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	executor := NewExecutor(ProcessorFunc(func(ctx context.Context, item *Item) error {
		close(started)
		<-release
		return nil
	}), 1)

	m := NewMigration("nml", "csv", "in", "out")
	for i := 0; i < 3; i++ {
		m.AddItem(NewItem(KindTrack, fmt.Sprintf("Track %d", i), fmt.Sprintf("id-%d", i)))
	}

	done := make(chan map[string]int, 1)
	go func() {
		stats, _ := executor.Execute(context.Background(), m, nil)
		done <- stats
	}()

	<-started
	executor.RequestShutdown()

	if executor.WaitForShutdown(50 * time.Millisecond) {
		t.Error("Expected WaitForShutdown to time out while an item is in flight")
	}

	close(release)
	stats := <-done
	if !executor.WaitForShutdown(2 * time.Second) {
		t.Error("Expected WaitForShutdown to succeed after the pool drained")
	}
	if stats["completed"] != 1 {
		t.Errorf("Expected 1 completed before shutdown, got %d", stats["completed"])
	}
	if stats["pending"] != 2 {
		t.Errorf("Expected 2 pending after shutdown, got %d", stats["pending"])
	}
}

func TestExecutor_WaitForShutdown_NoExecution(t *testing.T) {
	executor := NewExecutor(ProcessorFunc(func(ctx context.Context, item *Item) error {
		return nil
	}), 1)
	if !executor.WaitForShutdown(time.Millisecond) {
		t.Error("Expected immediate success when nothing ran")
	}
}
