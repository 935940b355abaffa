package formats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

const sampleNML = `<?xml version="1.0" encoding="UTF-8"?>
<NML VERSION="25">
  <HEAD>
    <COMPANY>DJ Music Organizer</COMPANY>
    <PRODUCT>DJ Music Organizer</PRODUCT>
    <VERSION>1.0</VERSION>
  </HEAD>
  <MUSICFOLDERS></MUSICFOLDERS>
  <COLLECTION ENTRIES="3">
    <ENTRY ID="aaa-1">
      <PRIMARYKEY>aaa-1</PRIMARYKEY>
      <TITLE>Sunset Drive</TITLE>
      <ARTIST>Night Runner</ARTIST>
      <TEMPO BPM="126.5" BPM_QUALITY="100"></TEMPO>
      <KEY VALUE="Am"></KEY>
      <LOCATION FILE="/music/sunset.mp3" VOLUME="volume" DIR="/music"></LOCATION>
      <INFO BITRATE="320" GENRE="House" PLAYTIME="245"></INFO>
      <CUE_V2 TYPE="0" START="31.250" NAME="Cue 1"></CUE_V2>
      <CUE_V2 TYPE="1" START="64.000" NAME="Main Loop"></CUE_V2>
      <CUE_V2 TYPE="9" START="0.500" NAME="Beat"></CUE_V2>
      <CUE_V2 TYPE="7" START="1.000" NAME="Mystery"></CUE_V2>
    </ENTRY>
    <ENTRY>
      <TITLE>No Identity</TITLE>
      <ARTIST>Ghost</ARTIST>
    </ENTRY>
    <ENTRY ID="ccc-3">
      <ARTIST>Untitled Artist</ARTIST>
    </ENTRY>
  </COLLECTION>
  <SETS>
    <NODE TYPE="PLAYLIST" NAME="Warmup">
      <NODE TYPE="TRACK" KEY="aaa-1"></NODE>
      <NODE TYPE="TRACK" KEY="zzz-404"></NODE>
    </NODE>
  </SETS>
</NML>`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

func TestReadNML(t *testing.T) {
	path := writeFixture(t, "collection.nml", sampleNML)

	lib, report, err := readNML(path)
	if err != nil {
		t.Fatalf("Failed to read NML: %v", err)
	}
	if len(lib.Tracks) != 1 {
		t.Fatalf("Expected 1 track, got %d", len(lib.Tracks))
	}
	if report.Len() != 2 {
		t.Fatalf("Expected 2 skipped entries, got %d", report.Len())
	}
	if report.Entries[0].Reason != "entry has no ID attribute" {
		t.Errorf("Expected missing-ID reason, got %q", report.Entries[0].Reason)
	}
	if report.Entries[1].Reason != "entry has no title" {
		t.Errorf("Expected missing-title reason, got %q", report.Entries[1].Reason)
	}

	tr := lib.Tracks[0]
	if tr.ID != "aaa-1" {
		t.Errorf("Expected ID 'aaa-1', got %q", tr.ID)
	}
	if tr.Title != "Sunset Drive" || tr.Artist != "Night Runner" {
		t.Errorf("Unexpected title/artist: %q / %q", tr.Title, tr.Artist)
	}
	if tr.BPM != 126.5 {
		t.Errorf("Expected BPM 126.5, got %v", tr.BPM)
	}
	if tr.Key != "A" {
		t.Errorf("Expected key 'A' from 'Am', got %q", tr.Key)
	}
	if tr.Genre != "House" {
		t.Errorf("Expected genre 'House', got %q", tr.Genre)
	}
	if tr.Duration != 245 {
		t.Errorf("Expected duration 245, got %v", tr.Duration)
	}
	if tr.FilePath != "/music/sunset.mp3" {
		t.Errorf("Expected file path '/music/sunset.mp3', got %q", tr.FilePath)
	}
	if len(tr.CuePoints) != 3 {
		t.Fatalf("Expected 3 cue points (unknown type dropped), got %d", len(tr.CuePoints))
	}
	if tr.CuePoints[0].Type != track.CueHotCue || tr.CuePoints[0].StartSeconds != 31.25 {
		t.Errorf("Unexpected first cue: %+v", tr.CuePoints[0])
	}
	if tr.CuePoints[2].Type != track.CueBeat {
		t.Errorf("Expected beat cue, got %q", tr.CuePoints[2].Type)
	}

	if len(lib.Playlists) != 1 || lib.Playlists[0].Name != "Warmup" {
		t.Fatalf("Expected playlist 'Warmup', got %+v", lib.Playlists)
	}
	if len(lib.Playlists[0].TrackKeys) != 2 {
		t.Errorf("Expected playlist to keep both references as read, got %d", len(lib.Playlists[0].TrackKeys))
	}
}

func TestReadNML_MalformedDocument(t *testing.T) {
	path := writeFixture(t, "broken.nml", "this is not xml")
	if _, _, err := readNML(path); err == nil {
		t.Error("Expected error for malformed document")
	}
}

func TestReadNML_MissingFile(t *testing.T) {
	if _, _, err := readNML(filepath.Join(t.TempDir(), "absent.nml")); err == nil {
		t.Error("Expected error for missing document")
	}
}

func TestNML_RoundTrip(t *testing.T) {
	lib := &track.Library{
		Tracks: []*track.Track{
			{
				FilePath: "/music/a.mp3",
				Title:    "Alpha",
				Artist:   "Artist A",
				Genre:    "Techno",
				BPM:      128,
				Key:      "A",
				Duration: 301.4,
				CuePoints: []track.CuePoint{
					{Type: track.CueHotCue, StartSeconds: 10.5, Label: "Cue 1"},
					{Type: track.CueGrid, StartSeconds: 0.25, Label: "Grid"},
				},
			},
			{
				FilePath: "/music/b.flac",
				Title:    "Beta",
				Artist:   "Artist B",
				Genre:    "House",
				BPM:      122.3,
				Key:      "F#",
				Duration: 188,
			},
		},
		Playlists: []track.Playlist{
			{Name: "Set", TrackKeys: []string{"/music/b.flac", "/music/a.mp3"}},
		},
	}

	path := filepath.Join(t.TempDir(), "out.nml")
	result, err := Write(FormatNML, path, lib, WriteOptions{})
	if err != nil {
		t.Fatalf("Failed to write NML: %v", err)
	}
	if len(result.Identities) != 2 {
		t.Fatalf("Expected 2 assigned identities, got %d", len(result.Identities))
	}
	if result.DroppedRefs != 0 {
		t.Errorf("Expected 0 dropped refs, got %d", result.DroppedRefs)
	}
	for _, src := range []string{"/music/a.mp3", "/music/b.flac"} {
		if result.Identities[src] == "" {
			t.Errorf("Expected identity assigned for %s", src)
		}
	}
	// Writers must not touch the source tracks.
	if lib.Tracks[0].ID != "" {
		t.Errorf("Expected source track to stay unmutated, got ID %q", lib.Tracks[0].ID)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read written document: %v", err)
	}
	for _, want := range []string{`<NML VERSION="25">`, `BPM_QUALITY="100"`, `VOLUME="volume"`, `ENTRIES="2"`, `<PRODUCT>DJ Music Organizer</PRODUCT>`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("Expected document to contain %s", want)
		}
	}

	got, report, err := Read(FormatNML, path, ReadOptions{})
	if err != nil {
		t.Fatalf("Failed to read NML back: %v", err)
	}
	if report.Len() != 0 {
		t.Errorf("Expected clean read, got %d skips", report.Len())
	}
	if len(got.Tracks) != len(lib.Tracks) {
		t.Fatalf("Expected %d tracks, got %d", len(lib.Tracks), len(got.Tracks))
	}
	for i, want := range lib.Tracks {
		g := got.Tracks[i]
		if g.Title != want.Title || g.Artist != want.Artist || g.Key != want.Key {
			t.Errorf("Track %d changed: %q/%q/%q", i, g.Title, g.Artist, g.Key)
		}
		if g.BPM != want.BPM {
			t.Errorf("Track %d BPM changed: want %v, got %v", i, want.BPM, g.BPM)
		}
		if len(g.CuePoints) != len(want.CuePoints) {
			t.Errorf("Track %d cue count changed: want %d, got %d", i, len(want.CuePoints), len(g.CuePoints))
		}
	}

	if len(got.Playlists) != 1 {
		t.Fatalf("Expected 1 playlist, got %d", len(got.Playlists))
	}
	keys := got.Playlists[0].TrackKeys
	if len(keys) != 2 {
		t.Fatalf("Expected 2 playlist references, got %d", len(keys))
	}
	// References were rewritten to the minted UUIDs, order preserved.
	if got.TrackByIdentity(keys[0]).Title != "Beta" || got.TrackByIdentity(keys[1]).Title != "Alpha" {
		t.Error("Expected playlist order Beta, Alpha after round trip")
	}
}

func TestWriteNML_DropsDanglingPlaylistRefs(t *testing.T) {
	lib := &track.Library{
		Tracks: []*track.Track{
			{FilePath: "/music/a.mp3", Title: "Alpha", Artist: "A", Genre: "House", Key: "C"},
		},
		Playlists: []track.Playlist{
			{Name: "Set", TrackKeys: []string{"/music/a.mp3", "/music/gone.mp3"}},
		},
	}

	path := filepath.Join(t.TempDir(), "out.nml")
	result, err := writeNML(path, lib)
	if err != nil {
		t.Fatalf("Failed to write NML: %v", err)
	}
	if result.DroppedRefs != 1 {
		t.Errorf("Expected 1 dropped ref, got %d", result.DroppedRefs)
	}

	got, _, err := readNML(path)
	if err != nil {
		t.Fatalf("Failed to read NML back: %v", err)
	}
	if len(got.Playlists[0].TrackKeys) != 1 {
		t.Errorf("Expected dangling reference to be dropped, got %d refs", len(got.Playlists[0].TrackKeys))
	}
}

func TestWriteNML_OverwritesExistingDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.nml")
	if err := os.WriteFile(path, []byte("stale content"), 0644); err != nil {
		t.Fatalf("Failed to seed target: %v", err)
	}

	lib := &track.Library{Tracks: []*track.Track{
		{FilePath: "/music/a.mp3", Title: "Alpha", Artist: "A", Genre: "House", Key: "C"},
	}}
	if _, err := writeNML(path, lib); err != nil {
		t.Fatalf("Failed to write NML: %v", err)
	}

	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "stale content") {
		t.Error("Expected target document to be fully regenerated")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to list output dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected no temp files left behind, found %d entries", len(entries))
	}
}
