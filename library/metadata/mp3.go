package metadata

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	gomp3 "github.com/hajimehoshi/go-mp3"
)

// readMP3Tags reads ID3v2 frames and stream duration from an MP3 file.
func readMP3Tags(path string) (*fileTags, error) {
	id3, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, &MetadataError{
			Message:  fmt.Sprintf("Failed to parse ID3 tag: %s", path),
			Original: err,
		}
	}
	defer id3.Close()

	ft := &fileTags{
		title:  strings.TrimSpace(id3.Title()),
		artist: strings.TrimSpace(id3.Artist()),
		album:  strings.TrimSpace(id3.Album()),
		genre:  strings.TrimSpace(id3.Genre()),
		year:   strings.TrimSpace(id3.Year()),
	}

	if text := id3.GetTextFrame("TBPM").Text; text != "" {
		if bpm, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil && bpm > 0 {
			ft.bpm = bpm
		}
	}
	if text := id3.GetTextFrame("TKEY").Text; text != "" {
		ft.key = strings.TrimSpace(text)
	}
	for _, frame := range id3.GetFrames(id3.CommonID("Comments")) {
		if comment, ok := frame.(id3v2.CommentFrame); ok {
			ft.comment = strings.TrimSpace(comment.Text)
			break
		}
	}

	duration, err := mp3Duration(path)
	if err != nil {
		return nil, err
	}
	ft.duration = duration

	return ft, nil
}

// mp3Duration decodes the stream header to compute playback time. go-mp3
// always emits 16-bit stereo, so 4 bytes per output sample.
func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &MetadataError{
			Message:  fmt.Sprintf("Failed to open MP3 file: %s", path),
			Original: err,
		}
	}
	defer func() { _ = f.Close() }()

	decoder, err := gomp3.NewDecoder(f)
	if err != nil {
		return 0, &MetadataError{
			Message:  fmt.Sprintf("Malformed MP3 stream: %s", path),
			Original: err,
		}
	}

	length := decoder.Length()
	if length <= 0 {
		return 0, nil
	}
	return float64(length) / 4.0 / float64(decoder.SampleRate()), nil
}
