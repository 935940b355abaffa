package library

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// locateCacheMax bounds both locator caches.
const locateCacheMax = 10000

// Locator finds audio files for library entries whose recorded path no
// longer exists. Lookups walk the registered scan folders in order and stop
// at the first file whose name matches. Existence checks and search results
// are cached because a migration probes the same folders for every missing
// track.
type Locator struct {
	folders []string

	mu        sync.RWMutex
	existence map[string]bool
	located   map[string]string // filename -> path, "" when the search found nothing
}

// NewLocator creates a locator searching the given folders in order.
func NewLocator(folders []string) *Locator {
	out := make([]string, len(folders))
	copy(out, folders)
	return &Locator{
		folders:   out,
		existence: make(map[string]bool),
		located:   make(map[string]string),
	}
}

// FileExists reports whether path exists, caching the answer.
func (l *Locator) FileExists(path string) bool {
	l.mu.RLock()
	exists, ok := l.existence[path]
	l.mu.RUnlock()
	if ok {
		return exists
	}

	exists = false
	if _, err := os.Stat(path); err == nil {
		exists = true
	}

	l.mu.Lock()
	evictIfFull(l.existence)
	l.existence[path] = exists
	l.mu.Unlock()
	return exists
}

// Locate searches the folders for a file named filename. The first match in
// folder order wins; a failed search is cached too.
func (l *Locator) Locate(filename string) (string, bool) {
	if filename == "" {
		return "", false
	}

	l.mu.RLock()
	path, ok := l.located[filename]
	l.mu.RUnlock()
	if ok {
		return path, path != ""
	}

	found := l.search(filename)

	l.mu.Lock()
	evictIfFull(l.located)
	l.located[filename] = found
	l.mu.Unlock()

	return found, found != ""
}

func (l *Locator) search(filename string) string {
	for _, folder := range l.folders {
		var found string
		err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if filepath.Base(path) == filename {
				found = path
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			log.Printf("WARN: locate_walk_failed folder=%s error=%v", folder, err)
		}
		if found != "" {
			return found
		}
	}
	return ""
}

// evictIfFull removes a tenth of the entries once a cache hits its bound.
func evictIfFull[V any](m map[string]V) {
	if len(m) < locateCacheMax {
		return
	}
	evict := locateCacheMax / 10
	for k := range m {
		if evict == 0 {
			break
		}
		delete(m, k)
		evict--
	}
}
