package job

import (
	"context"
	"log"
	"sync"
	"time"
)

// Processor performs the work for one migration item. Skipping is the
// processor's call: marking the item skipped and returning nil keeps it out
// of the failure counts.
type Processor interface {
	Process(ctx context.Context, item *Item) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, item *Item) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, item *Item) error {
	return f(ctx, item)
}

// Executor runs pending track items through a processor with a bounded
// worker pool. The semaphore is taken before each goroutine is spawned, so
// cancellation stops dispatch in item order and at most maxWorkers items are
// ever in flight.
type Executor struct {
	processor        Processor
	maxWorkers       int
	progressCallback func(*Item)

	shutdownRequested bool
	shutdownMu        sync.RWMutex

	executionWg *sync.WaitGroup
	wgMu        sync.RWMutex
}

// NewExecutor creates an executor with the given worker count.
func NewExecutor(processor Processor, maxWorkers int) *Executor {
	if maxWorkers <= 0 {
		maxWorkers = 4 // Default
	}
	return &Executor{
		processor:  processor,
		maxWorkers: maxWorkers,
	}
}

// Execute runs every pending track item in the migration and returns the
// execution statistics. Items dispatched before a cancellation finish; items
// never dispatched stay pending, so the completed count equals exactly the
// items processed.
func (e *Executor) Execute(ctx context.Context, m *Migration, progressCallback func(*Item)) (map[string]int, error) {
	e.progressCallback = progressCallback
	e.setShutdownRequested(false)

	pending := make([]*Item, 0)
	for _, item := range m.ItemsByKind(KindTrack) {
		if item.GetStatus() == StatusPending {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		return m.ExecutionStatistics(), ctx.Err()
	}

	log.Printf("INFO: migration_execution_started items=%d workers=%d", len(pending), e.maxWorkers)

	wg := &sync.WaitGroup{}
	e.wgMu.Lock()
	e.executionWg = wg
	e.wgMu.Unlock()

	sem := make(chan struct{}, e.maxWorkers)
	for _, item := range pending {
		if ctx.Err() != nil || e.isShutdownRequested() {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(it *Item) {
			defer wg.Done()
			defer func() { <-sem }()
			if ctx.Err() != nil || e.isShutdownRequested() {
				return
			}
			e.processItem(ctx, it)
			e.notifyProgress(it)
		}(item)
	}
	wg.Wait()

	stats := m.ExecutionStatistics()
	if err := ctx.Err(); err != nil {
		log.Printf("INFO: migration_execution_canceled completed=%d pending=%d", stats["completed"], stats["pending"])
		return stats, err
	}
	log.Printf("INFO: migration_execution_finished completed=%d failed=%d skipped=%d",
		stats["completed"], stats["failed"], m.SkippedCount())
	return stats, nil
}

func (e *Executor) processItem(ctx context.Context, item *Item) {
	item.MarkStarted()
	if err := e.processor.Process(ctx, item); err != nil {
		item.MarkFailed(err.Error())
		log.Printf("WARN: migration_item_failed name=%s error=%v", item.Name, err)
		return
	}
	// A processor that skipped the item already set its status.
	if item.GetStatus() == StatusInProgress {
		item.MarkCompleted("")
	}
}

func (e *Executor) notifyProgress(item *Item) {
	if e.progressCallback != nil {
		e.progressCallback(item)
	}
}

func (e *Executor) setShutdownRequested(value bool) {
	e.shutdownMu.Lock()
	defer e.shutdownMu.Unlock()
	e.shutdownRequested = value
}

func (e *Executor) isShutdownRequested() bool {
	e.shutdownMu.RLock()
	defer e.shutdownMu.RUnlock()
	return e.shutdownRequested
}

// RequestShutdown asks the executor to stop dispatching new items. Items
// already in flight run to completion.
func (e *Executor) RequestShutdown() {
	log.Printf("INFO: migration_shutdown_requested")
	e.setShutdownRequested(true)
}

// WaitForShutdown blocks until in-flight items finish or the timeout
// elapses. It returns true when the pool drained in time.
func (e *Executor) WaitForShutdown(timeout time.Duration) bool {
	e.wgMu.RLock()
	wg := e.executionWg
	e.wgMu.RUnlock()

	if wg == nil {
		return true
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
