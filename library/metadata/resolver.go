// Package metadata resolves audio files into tracks: staged corruption
// checks, per-container tag readers, and analysis fallbacks for the fields
// tags cannot supply.
package metadata

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

// MinFileSize is the smallest file accepted as playable audio. Anything
// below this is header fragments, not music.
const MinFileSize = 1024

// SupportedExtensions lists the extensions the resolver and scanner accept.
var SupportedExtensions = []string{".mp3", ".wav", ".flac", ".m4a", ".aac"}

// IsSupported reports whether path has a supported audio extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Analyzer estimates the fields tags cannot supply. Implementations work on
// bounded excerpts so resolution stays cheap on long files.
type Analyzer interface {
	BPM(path string) (float64, error)
	Key(path string) (string, error)
	Energy(path string) (int, error)
}

// Resolver turns file paths into tracks. A nil analyzer downgrades every
// estimated field instead of failing.
type Resolver struct {
	analyzer Analyzer
}

// NewResolver creates a resolver backed by the given analyzer.
func NewResolver(analyzer Analyzer) *Resolver {
	return &Resolver{analyzer: analyzer}
}

// Resolve reads path into a track. It never returns an error: unusable files
// come back with IsCorrupt set and the reason in ErrorMessage, and failed
// estimates downgrade their field to its unknown value.
func (r *Resolver) Resolve(path string) *track.Track {
	t := track.NewTrack(path)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.MarkCorrupt("file not found")
		} else {
			t.MarkCorrupt(fmt.Sprintf("file not accessible: %v", err))
		}
		return t
	}
	if info.IsDir() {
		t.MarkCorrupt("path is a directory")
		return t
	}
	if info.Size() < MinFileSize {
		t.MarkCorrupt(fmt.Sprintf("file too small: %d bytes", info.Size()))
		return t
	}

	if err := sniffAudio(path); err != nil {
		t.MarkCorrupt(err.Error())
		return t
	}

	ft, err := readTags(path)
	if err != nil {
		var merr *MetadataError
		if errors.As(err, &merr) {
			t.MarkCorrupt(merr.Message)
		} else {
			t.MarkCorrupt(err.Error())
		}
		return t
	}

	r.apply(t, ft)
	return t
}

// apply folds tag values into the track and fills the remaining fields from
// the analyzer. Failed estimates downgrade: BPM 0, key Unknown, energy 0.
func (r *Resolver) apply(t *track.Track, ft *fileTags) {
	if ft.title != "" {
		t.Title = ft.title
	}
	if ft.artist != "" {
		t.Artist = ft.artist
	}
	if ft.album != "" {
		t.Album = ft.album
	}
	if ft.genre != "" {
		t.Genre = ft.genre
	}
	t.Year = ft.year
	t.Comment = ft.comment
	t.Duration = ft.duration

	// Tagged BPM wins over estimation.
	if ft.bpm > 0 {
		t.BPM = ft.bpm
	} else if r.analyzer != nil {
		bpm, err := r.analyzer.BPM(t.FilePath)
		if err != nil {
			log.Printf("WARN: bpm_analysis_failed file=%s error=%v", t.FilePath, err)
		} else if bpm > 0 {
			t.BPM = bpm
		}
	}

	if key := track.NormalizeKey(ft.key); key != "" {
		t.Key = key
	} else if r.analyzer != nil {
		key, err := r.analyzer.Key(t.FilePath)
		if err != nil {
			log.Printf("WARN: key_analysis_failed file=%s error=%v", t.FilePath, err)
		} else if key != "" {
			t.Key = key
		}
	}

	// Energy has no tag convention; always estimate.
	if r.analyzer != nil {
		energy, err := r.analyzer.Energy(t.FilePath)
		if err != nil {
			log.Printf("WARN: energy_analysis_failed file=%s error=%v", t.FilePath, err)
		} else {
			t.Energy = energy
		}
	}
}

// readTags dispatches to the container's tag reader by extension.
func readTags(path string) (*fileTags, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return readMP3Tags(path)
	case ".flac":
		return readFLACTags(path)
	case ".m4a", ".aac":
		return readMP4Tags(path)
	case ".wav":
		return readWAVTags(path)
	default:
		return nil, &MetadataError{
			Message: fmt.Sprintf("unsupported extension: %s", filepath.Ext(path)),
		}
	}
}

// sniffAudio classifies the leading bytes and rejects files that are not a
// recognizable audio container. filetype needs at most 261 bytes.
func sniffAudio(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file not readable: %v", err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 261)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("file not readable: %v", err)
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return errors.New("unrecognized audio container")
	}
	// m4a files frequently sniff as plain MP4.
	if kind.MIME.Type != "audio" && kind.MIME.Value != "video/mp4" {
		return fmt.Errorf("not an audio container: %s", kind.MIME.Value)
	}
	return nil
}
