package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

type mockAnalyzer struct {
	bpmFunc    func(path string) (float64, error)
	keyFunc    func(path string) (string, error)
	energyFunc func(path string) (int, error)
}

func (m *mockAnalyzer) BPM(path string) (float64, error) {
	if m.bpmFunc != nil {
		return m.bpmFunc(path)
	}
	return 0, errors.New("bpm unavailable")
}

func (m *mockAnalyzer) Key(path string) (string, error) {
	if m.keyFunc != nil {
		return m.keyFunc(path)
	}
	return "", errors.New("key unavailable")
}

func (m *mockAnalyzer) Energy(path string) (int, error) {
	if m.energyFunc != nil {
		return m.energyFunc(path)
	}
	return 0, errors.New("energy unavailable")
}

// writeTestWAV writes a silent 16-bit mono PCM WAV file. With info set, a
// LIST/INFO chunk with descriptive tags follows the audio data.
func writeTestWAV(t *testing.T, path string, seconds float64, info bool) {
	t.Helper()

	sampleRate := 8000
	numSamples := int(float64(sampleRate) * seconds)
	data := make([]byte, numSamples*2)

	var infoChunk bytes.Buffer
	if info {
		var sub bytes.Buffer
		writeInfoSub := func(id, value string) {
			sub.WriteString(id)
			payload := append([]byte(value), 0)
			if len(payload)%2 == 1 {
				payload = append(payload, 0)
			}
			_ = binary.Write(&sub, binary.LittleEndian, uint32(len(payload)))
			sub.Write(payload)
		}
		writeInfoSub("INAM", "Sunset Drive")
		writeInfoSub("IART", "Night Runner")
		writeInfoSub("IPRD", "City Lights EP")
		writeInfoSub("IGNR", "House")
		writeInfoSub("ICRD", "2021")
		writeInfoSub("ICMT", "opening set")

		infoChunk.WriteString("LIST")
		_ = binary.Write(&infoChunk, binary.LittleEndian, uint32(4+sub.Len()))
		infoChunk.WriteString("INFO")
		infoChunk.Write(sub.Bytes())
	}

	var buf bytes.Buffer
	riffSize := 4 + (8 + 16) + (8 + len(data)) + infoChunk.Len()
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(riffSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	buf.Write(infoChunk.Bytes())

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write WAV fixture: %v", err)
	}
}

func TestResolver_NonexistentFile(t *testing.T) {
	r := NewResolver(nil)

	tr := r.Resolve("/nonexistent/dir/Sunset Drive.mp3")

	if !tr.IsCorrupt {
		t.Fatal("Expected nonexistent file to resolve as corrupt")
	}
	if tr.ErrorMessage != "file not found" {
		t.Errorf("Expected error message 'file not found', got '%s'", tr.ErrorMessage)
	}
	if tr.Title != "Sunset Drive" {
		t.Errorf("Expected filename-derived title, got '%s'", tr.Title)
	}
	if tr.Artist != track.UnknownArtist {
		t.Errorf("Expected placeholder artist, got '%s'", tr.Artist)
	}
	if tr.Key != track.UnknownKey {
		t.Errorf("Expected unknown key, got '%s'", tr.Key)
	}
	if tr.BPM != 0 || tr.Energy != 0 {
		t.Errorf("Expected zero BPM and energy, got %f and %d", tr.BPM, tr.Energy)
	}
}

func TestResolver_TooSmallFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	tr := NewResolver(nil).Resolve(path)

	if !tr.IsCorrupt {
		t.Fatal("Expected undersized file to resolve as corrupt")
	}
	if tr.ErrorMessage != "file too small: 3 bytes" {
		t.Errorf("Expected size in error message, got '%s'", tr.ErrorMessage)
	}
}

func TestResolver_UnrecognizedContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.mp3")
	if err := os.WriteFile(path, bytes.Repeat([]byte{'x'}, 2048), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	tr := NewResolver(nil).Resolve(path)

	if !tr.IsCorrupt {
		t.Fatal("Expected unrecognizable bytes to resolve as corrupt")
	}
	if tr.ErrorMessage != "unrecognized audio container" {
		t.Errorf("Expected container error message, got '%s'", tr.ErrorMessage)
	}
}

func TestResolver_MalformedMP3Stream(t *testing.T) {
	// Valid empty ID3v2 header followed by bytes with no MPEG frame sync.
	header := []byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0, 0}
	body := make([]byte, 2048)
	path := filepath.Join(t.TempDir(), "tagged-noise.mp3")
	if err := os.WriteFile(path, append(header, body...), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	tr := NewResolver(nil).Resolve(path)

	if !tr.IsCorrupt {
		t.Fatal("Expected MP3 without decodable frames to resolve as corrupt")
	}
}

func TestResolver_WAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Sunset Drive.wav")
	writeTestWAV(t, path, 2.0, true)

	analyzer := &mockAnalyzer{
		bpmFunc:    func(string) (float64, error) { return 126.5, nil },
		keyFunc:    func(string) (string, error) { return "A", nil },
		energyFunc: func(string) (int, error) { return 42, nil },
	}
	tr := NewResolver(analyzer).Resolve(path)

	if tr.IsCorrupt {
		t.Fatalf("Expected valid WAV, got corrupt: %s", tr.ErrorMessage)
	}
	if tr.Title != "Sunset Drive" {
		t.Errorf("Expected title 'Sunset Drive', got '%s'", tr.Title)
	}
	if tr.Artist != "Night Runner" {
		t.Errorf("Expected artist 'Night Runner', got '%s'", tr.Artist)
	}
	if tr.Album != "City Lights EP" {
		t.Errorf("Expected album 'City Lights EP', got '%s'", tr.Album)
	}
	if tr.Genre != "House" {
		t.Errorf("Expected genre 'House', got '%s'", tr.Genre)
	}
	if tr.Year != "2021" {
		t.Errorf("Expected year '2021', got '%s'", tr.Year)
	}
	if tr.Comment != "opening set" {
		t.Errorf("Expected comment 'opening set', got '%s'", tr.Comment)
	}
	if tr.Duration < 1.9 || tr.Duration > 2.1 {
		t.Errorf("Expected duration near 2s, got %f", tr.Duration)
	}
	if tr.BPM != 126.5 {
		t.Errorf("Expected analyzed BPM 126.5, got %f", tr.BPM)
	}
	if tr.Key != "A" {
		t.Errorf("Expected analyzed key 'A', got '%s'", tr.Key)
	}
	if tr.Energy != 42 {
		t.Errorf("Expected analyzed energy 42, got %d", tr.Energy)
	}
}

func TestResolver_WAVWithoutMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "untitled.wav")
	writeTestWAV(t, path, 1.0, false)

	tr := NewResolver(nil).Resolve(path)

	if tr.IsCorrupt {
		t.Fatalf("Expected valid WAV, got corrupt: %s", tr.ErrorMessage)
	}
	if tr.Title != "untitled" {
		t.Errorf("Expected filename title, got '%s'", tr.Title)
	}
	if tr.Artist != track.UnknownArtist {
		t.Errorf("Expected placeholder artist, got '%s'", tr.Artist)
	}
}

func TestResolver_Apply_TagBPMPrecedence(t *testing.T) {
	analyzer := &mockAnalyzer{
		bpmFunc: func(string) (float64, error) { return 95, nil },
	}
	r := NewResolver(analyzer)

	tr := track.NewTrack("/music/a.mp3")
	r.apply(tr, &fileTags{bpm: 128})

	if tr.BPM != 128 {
		t.Errorf("Expected tagged BPM 128 to win over analysis, got %f", tr.BPM)
	}
}

func TestResolver_Apply_BPMFallbackToAnalysis(t *testing.T) {
	analyzer := &mockAnalyzer{
		bpmFunc: func(string) (float64, error) { return 95, nil },
	}
	r := NewResolver(analyzer)

	tr := track.NewTrack("/music/a.mp3")
	r.apply(tr, &fileTags{})

	if tr.BPM != 95 {
		t.Errorf("Expected analyzed BPM 95, got %f", tr.BPM)
	}
}

func TestResolver_Apply_AnalysisFailureDowngrades(t *testing.T) {
	r := NewResolver(&mockAnalyzer{})

	tr := track.NewTrack("/music/a.mp3")
	r.apply(tr, &fileTags{})

	if tr.BPM != 0 {
		t.Errorf("Expected BPM downgrade to 0, got %f", tr.BPM)
	}
	if tr.Key != track.UnknownKey {
		t.Errorf("Expected key downgrade to Unknown, got '%s'", tr.Key)
	}
	if tr.Energy != 0 {
		t.Errorf("Expected energy downgrade to 0, got %d", tr.Energy)
	}
	if tr.IsCorrupt {
		t.Error("Analysis failure must not mark the track corrupt")
	}
}

func TestResolver_Apply_TagKeyNormalized(t *testing.T) {
	r := NewResolver(nil)

	tr := track.NewTrack("/music/a.mp3")
	r.apply(tr, &fileTags{key: "Bbm"})

	if tr.Key != "A#" {
		t.Errorf("Expected normalized key 'A#', got '%s'", tr.Key)
	}
}

func TestResolver_Apply_UnusableTagKeyFallsBack(t *testing.T) {
	analyzer := &mockAnalyzer{
		keyFunc: func(string) (string, error) { return "F#", nil },
	}
	r := NewResolver(analyzer)

	tr := track.NewTrack("/music/a.mp3")
	r.apply(tr, &fileTags{key: "8A"})

	if tr.Key != "F#" {
		t.Errorf("Expected analyzed key for unusable tag, got '%s'", tr.Key)
	}
}

func TestIsSupported(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/music/a.mp3", true},
		{"/music/a.MP3", true},
		{"/music/a.flac", true},
		{"/music/a.m4a", true},
		{"/music/a.aac", true},
		{"/music/a.wav", true},
		{"/music/a.ogg", false},
		{"/music/a.txt", false},
		{"/music/noext", false},
	}

	for _, tc := range cases {
		if got := IsSupported(tc.path); got != tc.want {
			t.Errorf("IsSupported(%q): expected %v, got %v", tc.path, tc.want, got)
		}
	}
}
