// Package scan walks registered music folders and resolves every supported
// audio file into a track. Discovery and resolution are separate phases so
// progress can report a real total, and the candidate list is sorted so scan
// output is reproducible.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ethiapath/djmusicorganizer/library/metadata"
	"github.com/ethiapath/djmusicorganizer/library/track"
)

// Resolver turns one audio file into a track. *metadata.Resolver satisfies
// it; tests substitute their own.
type Resolver interface {
	Resolve(path string) *track.Track
}

// ProgressFunc receives scan progress. percent never decreases within one
// scan; current and total count candidate files during the resolve phase. A
// nil callback means headless operation.
type ProgressFunc func(percent int, message string, current, total int)

// Scanner discovers audio files under registered folders and resolves them
// with a bounded worker pool.
type Scanner struct {
	resolver Resolver
	workers  int

	mu      sync.RWMutex
	folders []string
}

// NewScanner creates a scanner resolving through resolver with up to workers
// concurrent resolutions.
func NewScanner(resolver Resolver, workers int) *Scanner {
	if workers <= 0 {
		workers = 4 // Default
	}
	return &Scanner{resolver: resolver, workers: workers}
}

// AddFolder registers a folder for scanning. A folder that does not exist is
// rejected immediately; registering the same folder twice is a no-op.
func (s *Scanner) AddFolder(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("folder does not exist: %s", path)
		}
		return fmt.Errorf("folder not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a folder: %s", path)
	}

	clean := filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.folders {
		if existing == clean {
			return nil
		}
	}
	s.folders = append(s.folders, clean)
	return nil
}

// RemoveFolder unregisters a folder. Unknown folders are ignored.
func (s *Scanner) RemoveFolder(path string) {
	clean := filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.folders {
		if existing == clean {
			s.folders = append(s.folders[:i], s.folders[i+1:]...)
			return
		}
	}
}

// Folders returns the registered folders in registration order.
func (s *Scanner) Folders() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.folders))
	copy(out, s.folders)
	return out
}

// Scan walks every registered folder and resolves each candidate file.
// Cancellation is polled per folder, per directory and per file; a canceled
// scan returns the tracks that finished resolving together with ctx.Err() so
// callers can tell it apart from an empty library.
func (s *Scanner) Scan(ctx context.Context, progress ProgressFunc) ([]*track.Track, error) {
	report := func(percent int, message string, current, total int) {
		if progress != nil {
			progress(percent, message, current, total)
		}
	}

	folders := s.Folders()
	sort.Strings(folders)

	report(0, "Discovering audio files", 0, 0)

	candidates, err := s.discover(ctx, folders)
	if err != nil {
		return nil, err
	}
	sort.Strings(candidates)
	total := len(candidates)
	report(10, fmt.Sprintf("Found %d audio files", total), 0, total)

	if total == 0 {
		report(100, "Scan complete: 0 tracks", 0, 0)
		return nil, nil
	}

	// Bounded dispatch: the semaphore is taken before the goroutine is
	// spawned, so at most `workers` files are in flight and cancellation
	// cuts off dispatch in candidate order.
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	results := make([]*track.Track, total)

	var progressMu sync.Mutex
	completed := 0

	for i, path := range candidates {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, p string) {
			defer wg.Done()
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			t := s.resolver.Resolve(p)
			results[idx] = t

			progressMu.Lock()
			completed++
			report(10+90*completed/total, filepath.Base(p), completed, total)
			progressMu.Unlock()
		}(i, path)
	}
	wg.Wait()

	out := make([]*track.Track, 0, total)
	for _, t := range results {
		if t != nil {
			out = append(out, t)
		}
	}

	if err := ctx.Err(); err != nil {
		log.Printf("INFO: scan_canceled processed=%d total=%d", len(out), total)
		return out, err
	}
	report(100, fmt.Sprintf("Scan complete: %d tracks", len(out)), len(out), total)
	return out, nil
}

// discover collects candidate audio files from folders. Unreadable subtrees
// are logged and skipped; only cancellation aborts discovery.
func (s *Scanner) discover(ctx context.Context, folders []string) ([]string, error) {
	var candidates []string
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		walkErr := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Printf("WARN: scan_walk_failed path=%s error=%v", path, err)
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if s.isCandidate(path, d) {
				candidates = append(candidates, path)
			}
			return nil
		})
		if walkErr != nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("failed to scan folder %s: %w", folder, walkErr)
		}
	}
	return candidates, nil
}

// isCandidate applies the cheap pre-filters: supported extension and the
// minimum size. Files failing either are silently excluded, not errors.
func (s *Scanner) isCandidate(path string, d fs.DirEntry) bool {
	if !metadata.IsSupported(path) {
		return false
	}
	info, err := d.Info()
	if err != nil {
		log.Printf("WARN: scan_stat_failed path=%s error=%v", path, err)
		return false
	}
	return info.Size() >= metadata.MinFileSize
}
