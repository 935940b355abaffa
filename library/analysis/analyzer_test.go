package analysis

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethiapath/djmusicorganizer/library/cache"
)

func testOptions() Options {
	return Options{
		BPMWindowSeconds:    10,
		BPMOffsetSeconds:    0,
		KeyWindowSeconds:    2,
		EnergyWindowSeconds: 2,
		CacheMaxSize:        100,
	}
}

func TestAnalyzer_BPMFromClickTrack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clicks.wav")
	writeWAVFromSamples(t, path, 8000, clickTrack(8000, 10, 120))

	a := NewAnalyzer(testOptions(), nil)
	bpm, err := a.BPM(path)
	if err != nil {
		t.Fatalf("Expected tempo estimate, got error: %v", err)
	}
	if bpm < 118 || bpm > 122 {
		t.Errorf("Expected BPM near 120, got %f", bpm)
	}
}

func TestAnalyzer_KeyAndEnergyFromSine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAVFromSamples(t, path, 8000, sineWave(8000, 2, 440, 0.5))

	a := NewAnalyzer(testOptions(), nil)

	key, err := a.Key(path)
	if err != nil {
		t.Fatalf("Expected key estimate, got error: %v", err)
	}
	if key != "A" {
		t.Errorf("Expected key 'A', got '%s'", key)
	}

	energy, err := a.Energy(path)
	if err != nil {
		t.Fatalf("Expected energy estimate, got error: %v", err)
	}
	if energy < 33 || energy > 37 {
		t.Errorf("Expected energy near 35, got %d", energy)
	}
}

func TestAnalyzer_CacheHitOnSecondCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clicks.wav")
	writeWAVFromSamples(t, path, 8000, clickTrack(8000, 10, 120))

	a := NewAnalyzer(testOptions(), nil)
	first, err := a.BPM(path)
	if err != nil {
		t.Fatalf("Expected tempo estimate, got error: %v", err)
	}
	second, err := a.BPM(path)
	if err != nil {
		t.Fatalf("Expected cached tempo, got error: %v", err)
	}

	if first != second {
		t.Errorf("Expected cached BPM %f, got %f", first, second)
	}
	if stats := a.Stats(); stats.Hits < 1 {
		t.Errorf("Expected at least one cache hit, got %d", stats.Hits)
	}
}

func TestAnalyzer_PersistedCacheSurvivesRestart(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "clicks.wav")
	writeWAVFromSamples(t, path, 8000, clickTrack(8000, 10, 120))

	store := cache.NewManager(filepath.Join(tmpDir, ".cache"))

	first := NewAnalyzer(testOptions(), store)
	bpm, err := first.BPM(path)
	if err != nil {
		t.Fatalf("Expected tempo estimate, got error: %v", err)
	}
	if err := first.Flush(); err != nil {
		t.Fatalf("Failed to flush analysis cache: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, ".cache", cache.AnalysisCacheFile)); err != nil {
		t.Fatalf("Expected persisted cache file: %v", err)
	}

	second := NewAnalyzer(testOptions(), store)
	again, err := second.BPM(path)
	if err != nil {
		t.Fatalf("Expected cached tempo after restart, got error: %v", err)
	}
	if again != bpm {
		t.Errorf("Expected persisted BPM %f, got %f", bpm, again)
	}
	if stats := second.Stats(); stats.Hits != 1 || stats.Misses != 0 {
		t.Errorf("Expected pure cache hit after restart, got hits=%d misses=%d", stats.Hits, stats.Misses)
	}
}

func TestAnalyzer_StaleCacheEntryRecomputed(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "tone.wav")
	writeWAVFromSamples(t, path, 8000, sineWave(8000, 2, 440, 0.5))

	a := NewAnalyzer(testOptions(), nil)
	if _, err := a.Key(path); err != nil {
		t.Fatalf("Expected key estimate, got error: %v", err)
	}

	// Rewrite the file with a different tone; size changes with it.
	writeWAVFromSamples(t, path, 8000, sineWave(8000, 3, 261.63, 0.5))

	key, err := a.Key(path)
	if err != nil {
		t.Fatalf("Expected re-analysis, got error: %v", err)
	}
	if key != "C" {
		t.Errorf("Expected recomputed key 'C' after file change, got '%s'", key)
	}
}

func TestAnalyzer_MissingFile(t *testing.T) {
	a := NewAnalyzer(testOptions(), nil)
	if _, err := a.BPM(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestAnalyzer_NoDecoderDowngrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.m4a")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0}, 2048), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	a := NewAnalyzer(testOptions(), nil)
	if _, err := a.BPM(path); err == nil {
		t.Error("Expected error for container without a decoder")
	}
	if _, err := a.Energy(path); err == nil {
		t.Error("Expected energy error for container without a decoder")
	}
}
