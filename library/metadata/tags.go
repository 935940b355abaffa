package metadata

import (
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// fileTags is the normalized result of one container's tag reader. Empty
// strings and zero values mean the tag was absent; the resolver fills
// placeholder defaults afterwards.
type fileTags struct {
	title    string
	artist   string
	album    string
	genre    string
	year     string
	comment  string
	bpm      float64
	key      string // raw spelling, normalized later
	duration float64
}

// bpmFrameNames lists the raw frame and atom names that carry a tempo value
// across ID3, Vorbis and MP4 tagging conventions.
var bpmFrameNames = []string{"TBPM", "BPM", "bpm", "tempo", "TEMPO", "tmpo", "fBPM"}

// keyFrameNames lists the raw frame and atom names that carry a musical key.
var keyFrameNames = []string{"TKEY", "initialkey", "INITIALKEY", "initial_key", "key", "KEY"}

// rawBPM digs a tempo value out of the raw tag map, trying each known frame
// name and coercing whatever representation the tagger used.
func rawBPM(m tag.Metadata) float64 {
	raw := m.Raw()
	for _, name := range bpmFrameNames {
		v, ok := raw[name]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil && f > 0 {
				return f
			}
		case int:
			if val > 0 {
				return float64(val)
			}
		case int16:
			if val > 0 {
				return float64(val)
			}
		case uint16:
			if val > 0 {
				return float64(val)
			}
		case uint32:
			if val > 0 {
				return float64(val)
			}
		case float32:
			if val > 0 {
				return float64(val)
			}
		case float64:
			if val > 0 {
				return val
			}
		}
	}
	return 0
}

// rawKey digs a musical key string out of the raw tag map.
func rawKey(m tag.Metadata) string {
	raw := m.Raw()
	for _, name := range keyFrameNames {
		if v, ok := raw[name]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// applyCommonTags copies the generic dhowden fields into ft, leaving fields
// untouched when the tagger had nothing.
func applyCommonTags(ft *fileTags, m tag.Metadata) {
	ft.title = strings.TrimSpace(m.Title())
	ft.artist = strings.TrimSpace(m.Artist())
	ft.album = strings.TrimSpace(m.Album())
	ft.genre = strings.TrimSpace(m.Genre())
	if y := m.Year(); y > 0 {
		ft.year = strconv.Itoa(y)
	}
	ft.comment = strings.TrimSpace(m.Comment())
	ft.bpm = rawBPM(m)
	ft.key = rawKey(m)
}
