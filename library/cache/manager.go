// Package cache persists analysis results between runs so unchanged files
// are never re-decoded.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AnalysisCacheFile is the cache file name under the cache dir.
const AnalysisCacheFile = "analysis_cache.json"

// AnalysisEntry is one analysis cache entry keyed by file path. Instead of a
// TTL, entries pin the file size and mtime observed at analysis time; a file
// that changed on disk simply stops matching.
type AnalysisEntry struct {
	FileSizeBytes int64     `json:"file_size_bytes"`
	ModifiedAt    time.Time `json:"modified_at"`
	BPM           *float64  `json:"bpm,omitempty"`
	Key           *string   `json:"key,omitempty"`
	Energy        *int      `json:"energy,omitempty"`
	AnalyzedAt    string    `json:"analyzed_at"`
}

// Valid reports whether the entry still matches the file's current size and
// modification time.
func (e AnalysisEntry) Valid(info os.FileInfo) bool {
	return e.FileSizeBytes == info.Size() && e.ModifiedAt.Equal(info.ModTime())
}

// NewAnalysisEntry builds an entry pinned to the given file info.
func NewAnalysisEntry(info os.FileInfo) AnalysisEntry {
	return AnalysisEntry{
		FileSizeBytes: info.Size(),
		ModifiedAt:    info.ModTime(),
		AnalyzedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// Manager loads and saves the analysis cache JSON file under a cache
// directory. It is thread-safe.
type Manager struct {
	cacheDir string
	mu       sync.RWMutex
}

// NewManager returns a cache manager for the given cache directory.
func NewManager(cacheDir string) *Manager {
	return &Manager{cacheDir: cacheDir}
}

// path returns the full path for a cache file name.
func (m *Manager) path(filename string) string {
	return filepath.Join(m.cacheDir, filename)
}

// LoadAnalysis loads the analysis cache from disk. A missing file is an
// empty cache, not an error.
func (m *Manager) LoadAnalysis() (map[string]AnalysisEntry, error) {
	m.mu.RLock()
	path := m.path(AnalysisCacheFile)
	m.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]AnalysisEntry), nil
		}
		return nil, err
	}

	var out map[string]AnalysisEntry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string]AnalysisEntry)
	}
	return out, nil
}

// SaveAnalysis writes the analysis cache to disk. Creates cache dir if needed.
func (m *Manager) SaveAnalysis(entries map[string]AnalysisEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.cacheDir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path(AnalysisCacheFile), data, 0644)
}

// CacheDir returns the cache directory.
func (m *Manager) CacheDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cacheDir
}
