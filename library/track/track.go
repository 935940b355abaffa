// Package track defines the canonical library model shared by every format
// codec: tracks, cue markers, and playlists.
package track

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Placeholder values for descriptive fields that are absent from a file's
// tags. Corrupt tracks keep these so they stay serializable.
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
	UnknownGenre  = "Unknown Genre"
	UnknownKey    = "Unknown"
)

// CueType identifies the kind of a stored cue marker.
type CueType string

const (
	CueHotCue CueType = "hot-cue"
	CueLoop   CueType = "loop"
	CueGrid   CueType = "grid"
	CueBeat   CueType = "beat"
)

// CuePoint is a positional marker on a track.
type CuePoint struct {
	Type         CueType `json:"type"`
	StartSeconds float64 `json:"start_time_seconds"`
	Label        string  `json:"label,omitempty"`
}

// Track is the in-memory representation of one audio file. ID is the
// format-specific identity assigned when a document was read; writers mint
// fresh identities and report them instead of mutating this struct.
type Track struct {
	FilePath     string     `json:"file_path"`
	ID           string     `json:"id,omitempty"`
	Title        string     `json:"title"`
	Artist       string     `json:"artist"`
	Album        string     `json:"album"`
	Genre        string     `json:"genre"`
	Year         string     `json:"year,omitempty"`
	Comment      string     `json:"comment,omitempty"`
	BPM          float64    `json:"bpm"`
	Key          string     `json:"key"`
	Energy       int        `json:"energy"`
	Duration     float64    `json:"duration"`
	IsCorrupt    bool       `json:"is_corrupt,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CuePoints    []CuePoint `json:"cue_points,omitempty"`
}

// NewTrack returns a track for path with every descriptive field set to its
// placeholder default. BPM 0 and energy 0 mean unknown.
func NewTrack(path string) *Track {
	return &Track{
		FilePath: path,
		Title:    TitleFromPath(path),
		Artist:   UnknownArtist,
		Album:    UnknownAlbum,
		Genre:    UnknownGenre,
		Key:      UnknownKey,
	}
}

// TitleFromPath derives the default title: the base filename without its
// extension.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// MarkCorrupt flags the track as unusable and records the reason.
func (t *Track) MarkCorrupt(message string) {
	t.IsCorrupt = true
	t.ErrorMessage = message
}

// Identity returns the reference playlists use to point at this track: the
// format-assigned ID when one exists, the file path otherwise.
func (t *Track) Identity() string {
	if t.ID != "" {
		return t.ID
	}
	return t.FilePath
}

// ToRecord flattens the descriptive fields into strings keyed by their
// tabular column names.
func (t *Track) ToRecord() map[string]string {
	return map[string]string{
		"name":    t.Title,
		"artist":  t.Artist,
		"album":   t.Album,
		"genre":   t.Genre,
		"year":    t.Year,
		"comment": t.Comment,
		"bpm":     strconv.FormatFloat(t.BPM, 'f', -1, 64),
		"key":     t.Key,
		"energy":  strconv.Itoa(t.Energy),
		"path":    t.FilePath,
	}
}

// Playlist is a named ordered list of track references. References carry the
// identity of the target track within one document, never positions, so
// reordering tracks cannot silently retarget a playlist.
type Playlist struct {
	Name      string   `json:"name"`
	TrackKeys []string `json:"track_keys"`
}

// Library is one full interchange document: all tracks plus the playlists
// that reference them. Tracks always come first in any serialization.
type Library struct {
	Tracks    []*Track   `json:"tracks"`
	Playlists []Playlist `json:"playlists,omitempty"`
}

// TrackByIdentity returns the track whose identity matches key, or nil when
// the reference is dangling.
func (l *Library) TrackByIdentity(key string) *Track {
	for _, t := range l.Tracks {
		if t.Identity() == key {
			return t
		}
	}
	return nil
}
