package metadata

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-audio/wav"
)

// readWAVTags reads RIFF format info and the LIST/INFO metadata chunk from a
// WAV file. WAV has no tempo or key convention, so those always come from
// analysis.
func readWAVTags(path string) (*fileTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MetadataError{
			Message:  fmt.Sprintf("Failed to open WAV file: %s", path),
			Original: err,
		}
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, &MetadataError{
			Message: fmt.Sprintf("Malformed RIFF container: %s", path),
		}
	}

	ft := &fileTags{}
	if dur, err := decoder.Duration(); err == nil {
		ft.duration = dur.Seconds()
	}

	decoder.ReadMetadata()
	if meta := decoder.Metadata; meta != nil {
		ft.title = strings.TrimSpace(meta.Title)
		ft.artist = strings.TrimSpace(meta.Artist)
		ft.album = strings.TrimSpace(meta.Product)
		ft.genre = strings.TrimSpace(meta.Genre)
		ft.year = strings.TrimSpace(meta.CreationDate)
		ft.comment = strings.TrimSpace(meta.Comments)
	}

	return ft, nil
}
