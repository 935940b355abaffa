package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abema/go-mp4"
	"github.com/dhowden/tag"
)

// readMP4Tags reads metadata from MPEG-4 audio. Both .m4a and raw ADTS .aac
// route here; ADTS carries no standard tag atoms and no cheap duration, so
// those files resolve with defaults instead of failing.
func readMP4Tags(path string) (*fileTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MetadataError{
			Message:  fmt.Sprintf("Failed to open MP4 file: %s", path),
			Original: err,
		}
	}
	defer func() { _ = f.Close() }()

	ft := &fileTags{}
	if m, err := tag.ReadFrom(f); err == nil {
		applyCommonTags(ft, m)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return nil, &MetadataError{
			Message:  fmt.Sprintf("Failed to rewind MP4 file: %s", path),
			Original: err,
		}
	}

	info, err := mp4.Probe(f)
	if err != nil {
		if strings.ToLower(filepath.Ext(path)) == ".aac" {
			// Raw ADTS stream, not an MP4 container.
			return ft, nil
		}
		return nil, &MetadataError{
			Message:  fmt.Sprintf("Malformed MP4 container: %s", path),
			Original: err,
		}
	}
	if info.Timescale > 0 {
		ft.duration = float64(info.Duration) / float64(info.Timescale)
	}

	return ft, nil
}
