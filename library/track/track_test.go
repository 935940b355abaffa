package track

import (
	"testing"
)

func TestNewTrack_Defaults(t *testing.T) {
	tr := NewTrack("/music/house/Deep Groove.mp3")

	if tr.Title != "Deep Groove" {
		t.Errorf("Expected title 'Deep Groove', got '%s'", tr.Title)
	}
	if tr.Artist != UnknownArtist {
		t.Errorf("Expected artist '%s', got '%s'", UnknownArtist, tr.Artist)
	}
	if tr.Album != UnknownAlbum {
		t.Errorf("Expected album '%s', got '%s'", UnknownAlbum, tr.Album)
	}
	if tr.Genre != UnknownGenre {
		t.Errorf("Expected genre '%s', got '%s'", UnknownGenre, tr.Genre)
	}
	if tr.Key != UnknownKey {
		t.Errorf("Expected key '%s', got '%s'", UnknownKey, tr.Key)
	}
	if tr.BPM != 0 {
		t.Errorf("Expected BPM 0, got %f", tr.BPM)
	}
	if tr.Energy != 0 {
		t.Errorf("Expected energy 0, got %d", tr.Energy)
	}
	if tr.IsCorrupt {
		t.Error("Expected new track to not be corrupt")
	}
}

func TestTrack_MarkCorrupt(t *testing.T) {
	tr := NewTrack("/music/broken.mp3")
	tr.MarkCorrupt("file too small")

	if !tr.IsCorrupt {
		t.Error("Expected track to be corrupt")
	}
	if tr.ErrorMessage != "file too small" {
		t.Errorf("Expected error message 'file too small', got '%s'", tr.ErrorMessage)
	}
	if tr.Title != "broken" {
		t.Errorf("Expected title default to survive corruption, got '%s'", tr.Title)
	}
}

func TestTrack_Identity(t *testing.T) {
	tr := NewTrack("/music/a.mp3")
	if tr.Identity() != "/music/a.mp3" {
		t.Errorf("Expected path identity, got '%s'", tr.Identity())
	}

	tr.ID = "42"
	if tr.Identity() != "42" {
		t.Errorf("Expected ID identity '42', got '%s'", tr.Identity())
	}
}

func TestTitleFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/music/Deep Groove.mp3", "Deep Groove"},
		{"relative/track.flac", "track"},
		{"noext", "noext"},
		{"/music/archive.tar.gz", "archive.tar"},
	}

	for _, tc := range cases {
		got := TitleFromPath(tc.path)
		if got != tc.want {
			t.Errorf("TitleFromPath(%q): expected %q, got %q", tc.path, tc.want, got)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"C", "C"},
		{"c", "C"},
		{"F#", "F#"},
		{"f#m", "F#"},
		{"Am", "A"},
		{"Amin", "A"},
		{"Bb", "A#"},
		{"Bbm", "A#"},
		{"Db", "C#"},
		{"Cmaj", "C"},
		{" G ", "G"},
		{"8A", ""},
		{"Unknown", ""},
		{"", ""},
	}

	for _, tc := range cases {
		got := NormalizeKey(tc.raw)
		if got != tc.want {
			t.Errorf("NormalizeKey(%q): expected %q, got %q", tc.raw, tc.want, got)
		}
	}
}

func TestLibrary_TrackByIdentity(t *testing.T) {
	a := NewTrack("/music/a.mp3")
	b := NewTrack("/music/b.mp3")
	b.ID = "7"
	lib := &Library{Tracks: []*Track{a, b}}

	if found := lib.TrackByIdentity("/music/a.mp3"); found != a {
		t.Error("Expected to find track a by path identity")
	}
	if found := lib.TrackByIdentity("7"); found != b {
		t.Error("Expected to find track b by ID identity")
	}
	if found := lib.TrackByIdentity("missing"); found != nil {
		t.Error("Expected nil for dangling reference")
	}
}
