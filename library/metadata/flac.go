package metadata

import (
	"fmt"
	"os"

	"github.com/dhowden/tag"
	"github.com/mewkiz/flac"
)

// readFLACTags reads Vorbis comments and stream info from a FLAC file. The
// mewkiz stream parse decides corruption; missing comments are not an error.
func readFLACTags(path string) (*fileTags, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, &MetadataError{
			Message:  fmt.Sprintf("Malformed FLAC stream: %s", path),
			Original: err,
		}
	}
	defer func() { _ = stream.Close() }()

	ft := &fileTags{}
	if stream.Info != nil && stream.Info.SampleRate > 0 {
		ft.duration = float64(stream.Info.NSamples) / float64(stream.Info.SampleRate)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &MetadataError{
			Message:  fmt.Sprintf("Failed to open FLAC file: %s", path),
			Original: err,
		}
	}
	defer func() { _ = f.Close() }()

	if m, err := tag.ReadFrom(f); err == nil {
		applyCommonTags(ft, m)
	}

	return ft, nil
}
