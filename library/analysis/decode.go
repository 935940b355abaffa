package analysis

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// excerpt is a bounded mono slice of decoded audio.
type excerpt struct {
	samples    []float64
	sampleRate int
}

// decodeExcerpt decodes up to window seconds of mono audio starting at
// offset. A file shorter than offset+window yields whatever samples exist
// past the offset; estimators decide whether that is enough.
func decodeExcerpt(path string, offset, window time.Duration) (*excerpt, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return decodeMP3Excerpt(path, offset, window)
	case ".flac":
		return decodeFLACExcerpt(path, offset, window)
	case ".wav":
		return decodeWAVExcerpt(path, offset, window)
	case ".m4a", ".aac":
		return nil, &AnalysisError{
			Message: "no decoder for MPEG-4 audio",
		}
	default:
		return nil, &AnalysisError{
			Message: fmt.Sprintf("no decoder for %s", filepath.Ext(path)),
		}
	}
}

// decodeMP3Excerpt reads PCM from the go-mp3 decoder, which always emits
// 16-bit little-endian stereo at 4 bytes per sample frame.
func decodeMP3Excerpt(path string, offset, window time.Duration) (*excerpt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &AnalysisError{
			Message:  fmt.Sprintf("failed to open %s", path),
			Original: err,
		}
	}
	defer func() { _ = f.Close() }()

	decoder, err := gomp3.NewDecoder(f)
	if err != nil {
		return nil, &AnalysisError{
			Message:  "malformed MP3 stream",
			Original: err,
		}
	}

	sr := decoder.SampleRate()
	skipBytes := int64(offset.Seconds()*float64(sr)) * 4
	if skipBytes > 0 {
		if _, err := io.CopyN(io.Discard, decoder, skipBytes); err != nil && err != io.EOF {
			return nil, &AnalysisError{
				Message:  "failed to seek within MP3 stream",
				Original: err,
			}
		}
	}

	want := int(window.Seconds() * float64(sr))
	samples := make([]float64, 0, want)
	buf := make([]byte, 8192)
	for len(samples) < want {
		n, err := decoder.Read(buf)
		for i := 0; i+3 < n && len(samples) < want; i += 4 {
			left := int16(binary.LittleEndian.Uint16(buf[i:]))
			right := int16(binary.LittleEndian.Uint16(buf[i+2:]))
			samples = append(samples, (float64(left)+float64(right))/2/32768)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &AnalysisError{
				Message:  "failed to decode MP3 stream",
				Original: err,
			}
		}
	}

	return &excerpt{samples: samples, sampleRate: sr}, nil
}

// decodeFLACExcerpt walks FLAC frames, mixing subframe channels down to mono.
func decodeFLACExcerpt(path string, offset, window time.Duration) (*excerpt, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, &AnalysisError{
			Message:  "malformed FLAC stream",
			Original: err,
		}
	}
	defer func() { _ = stream.Close() }()

	sr := int(stream.Info.SampleRate)
	channels := int(stream.Info.NChannels)
	scale := float64(int64(1) << (stream.Info.BitsPerSample - 1))

	skip := int64(offset.Seconds() * float64(sr))
	want := int(window.Seconds() * float64(sr))
	samples := make([]float64, 0, want)

	var pos int64
	for len(samples) < want {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &AnalysisError{
				Message:  "failed to decode FLAC frame",
				Original: err,
			}
		}
		if len(frame.Subframes) == 0 {
			continue
		}
		blockLen := int64(len(frame.Subframes[0].Samples))
		if pos+blockLen <= skip {
			pos += blockLen
			continue
		}
		start := int64(0)
		if skip > pos {
			start = skip - pos
		}
		for i := start; i < blockLen && len(samples) < want; i++ {
			var sum float64
			for ch := 0; ch < channels && ch < len(frame.Subframes); ch++ {
				sum += float64(frame.Subframes[ch].Samples[i])
			}
			samples = append(samples, sum/float64(channels)/scale)
		}
		pos += blockLen
	}

	return &excerpt{samples: samples, sampleRate: sr}, nil
}

// decodeWAVExcerpt streams PCM buffers from the go-audio decoder.
func decodeWAVExcerpt(path string, offset, window time.Duration) (*excerpt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &AnalysisError{
			Message:  fmt.Sprintf("failed to open %s", path),
			Original: err,
		}
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, &AnalysisError{
			Message: "malformed RIFF container",
		}
	}

	sr := int(decoder.SampleRate)
	channels := int(decoder.NumChans)
	if channels == 0 {
		channels = 1
	}
	scale := float64(int64(1) << (decoder.BitDepth - 1))

	skipFrames := int64(offset.Seconds() * float64(sr))
	want := int(window.Seconds() * float64(sr))
	samples := make([]float64, 0, want)

	format := &audio.Format{NumChannels: channels, SampleRate: sr}
	buf := &audio.IntBuffer{Format: format, Data: make([]int, 8192*channels)}
	for len(samples) < want {
		n, err := decoder.PCMBuffer(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &AnalysisError{
				Message:  "failed to decode WAV data",
				Original: err,
			}
		}
		if n == 0 {
			break
		}
		for i := 0; i+channels <= n; i += channels {
			if skipFrames > 0 {
				skipFrames--
				continue
			}
			var sum float64
			for ch := 0; ch < channels; ch++ {
				sum += float64(buf.Data[i+ch])
			}
			samples = append(samples, sum/float64(channels)/scale)
			if len(samples) == want {
				break
			}
		}
	}

	return &excerpt{samples: samples, sampleRate: sr}, nil
}
