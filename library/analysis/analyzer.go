// Package analysis estimates BPM, musical key and energy from bounded
// excerpts of decoded audio. Every estimator is fallible by design; callers
// downgrade the field on error rather than failing the file.
package analysis

import (
	"log"
	"os"
	"time"

	"github.com/ethiapath/djmusicorganizer/library/cache"
)

// Options controls the excerpt windows the estimators work on.
type Options struct {
	BPMWindowSeconds    int
	BPMOffsetSeconds    int
	KeyWindowSeconds    int
	EnergyWindowSeconds int
	CacheMaxSize        int
}

// DefaultOptions returns the standard excerpt windows: tempo from 30s
// starting at 30s in (past most intros), key from the first 20s, energy from
// the first 15s.
func DefaultOptions() Options {
	return Options{
		BPMWindowSeconds:    30,
		BPMOffsetSeconds:    30,
		KeyWindowSeconds:    20,
		EnergyWindowSeconds: 15,
		CacheMaxSize:        1000,
	}
}

// Analyzer runs the estimators with per-file result caching. The optional
// store persists results across runs.
type Analyzer struct {
	opts  Options
	mem   *resultCache
	store *cache.Manager
}

// NewAnalyzer creates an analyzer. store may be nil for purely in-memory
// caching. A persisted cache that fails to load starts empty.
func NewAnalyzer(opts Options, store *cache.Manager) *Analyzer {
	if opts.CacheMaxSize < 1 {
		opts.CacheMaxSize = DefaultOptions().CacheMaxSize
	}
	a := &Analyzer{
		opts:  opts,
		mem:   newResultCache(opts.CacheMaxSize),
		store: store,
	}
	if store != nil {
		entries, err := store.LoadAnalysis()
		if err != nil {
			log.Printf("WARN: analysis_cache_load_failed dir=%s error=%v", store.CacheDir(), err)
		} else {
			for path, e := range entries {
				a.mem.Set(path, &cachedResult{
					size:    e.FileSizeBytes,
					modTime: e.ModifiedAt,
					bpm:     e.BPM,
					key:     e.Key,
					energy:  e.Energy,
				})
			}
		}
	}
	return a
}

// lookup returns the valid cached result for path, if any, plus the file
// info used for pinning new results.
func (a *Analyzer) lookup(path string) (*cachedResult, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, &AnalysisError{
			Message:  "file not accessible",
			Original: err,
		}
	}
	if res := a.mem.Get(path); res != nil {
		if res.size == info.Size() && res.modTime.Equal(info.ModTime()) {
			return res, info, nil
		}
	}
	return nil, info, nil
}

// remember merges one computed field into the cached result for path.
func (a *Analyzer) remember(path string, info os.FileInfo, update func(*cachedResult)) {
	res := a.mem.Get(path)
	if res == nil || res.size != info.Size() || !res.modTime.Equal(info.ModTime()) {
		res = &cachedResult{size: info.Size(), modTime: info.ModTime()}
	}
	update(res)
	a.mem.Set(path, res)
}

// BPM estimates tempo from the configured excerpt.
func (a *Analyzer) BPM(path string) (float64, error) {
	res, info, err := a.lookup(path)
	if err != nil {
		return 0, err
	}
	if res != nil && res.bpm != nil {
		return *res.bpm, nil
	}

	exc, err := decodeExcerpt(path,
		time.Duration(a.opts.BPMOffsetSeconds)*time.Second,
		time.Duration(a.opts.BPMWindowSeconds)*time.Second)
	if err != nil {
		return 0, err
	}
	bpm, err := estimateBPM(exc.samples, exc.sampleRate)
	if err != nil {
		return 0, err
	}

	a.remember(path, info, func(r *cachedResult) { r.bpm = &bpm })
	return bpm, nil
}

// Key estimates the dominant pitch class from the start of the file.
func (a *Analyzer) Key(path string) (string, error) {
	res, info, err := a.lookup(path)
	if err != nil {
		return "", err
	}
	if res != nil && res.key != nil {
		return *res.key, nil
	}

	exc, err := decodeExcerpt(path, 0, time.Duration(a.opts.KeyWindowSeconds)*time.Second)
	if err != nil {
		return "", err
	}
	key, err := estimateKey(exc.samples, exc.sampleRate)
	if err != nil {
		return "", err
	}

	a.remember(path, info, func(r *cachedResult) { r.key = &key })
	return key, nil
}

// Energy estimates perceived intensity from the start of the file.
func (a *Analyzer) Energy(path string) (int, error) {
	res, info, err := a.lookup(path)
	if err != nil {
		return 0, err
	}
	if res != nil && res.energy != nil {
		return *res.energy, nil
	}

	exc, err := decodeExcerpt(path, 0, time.Duration(a.opts.EnergyWindowSeconds)*time.Second)
	if err != nil {
		return 0, err
	}
	energy, err := estimateEnergy(exc.samples)
	if err != nil {
		return 0, err
	}

	a.remember(path, info, func(r *cachedResult) { r.energy = &energy })
	return energy, nil
}

// Stats returns result cache statistics.
func (a *Analyzer) Stats() CacheStats {
	return a.mem.Stats()
}

// Flush persists the result cache through the store, if one is configured.
func (a *Analyzer) Flush() error {
	if a.store == nil {
		return nil
	}

	snapshot := a.mem.Snapshot()
	entries := make(map[string]cache.AnalysisEntry, len(snapshot))
	for path, res := range snapshot {
		entries[path] = cache.AnalysisEntry{
			FileSizeBytes: res.size,
			ModifiedAt:    res.modTime,
			BPM:           res.bpm,
			Key:           res.key,
			Energy:        res.energy,
			AnalyzedAt:    time.Now().UTC().Format(time.RFC3339),
		}
	}
	return a.store.SaveAnalysis(entries)
}
