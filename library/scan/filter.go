package scan

import (
	"strings"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

// FilterOptions narrows a track list. Zero values leave the corresponding
// dimension unfiltered; BPM bounds are inclusive.
type FilterOptions struct {
	Genre  string
	MinBPM float64
	MaxBPM float64
	Key    string
}

// Filter returns the tracks matching every set criterion. Genre matching
// ignores case, key matching compares the normalized musical key.
func Filter(tracks []*track.Track, opts FilterOptions) []*track.Track {
	wantKey := track.NormalizeKey(opts.Key)
	out := make([]*track.Track, 0, len(tracks))
	for _, t := range tracks {
		if opts.Genre != "" && !strings.EqualFold(t.Genre, opts.Genre) {
			continue
		}
		if opts.MinBPM > 0 && t.BPM < opts.MinBPM {
			continue
		}
		if opts.MaxBPM > 0 && t.BPM > opts.MaxBPM {
			continue
		}
		if opts.Key != "" {
			if wantKey == "" || t.Key != wantKey {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// RemoveCorrupt returns the tracks whose files parsed cleanly.
func RemoveCorrupt(tracks []*track.Track) []*track.Track {
	out := make([]*track.Track, 0, len(tracks))
	for _, t := range tracks {
		if !t.IsCorrupt {
			out = append(out, t)
		}
	}
	return out
}
