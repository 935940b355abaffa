package formats

import (
	"path/filepath"
	"testing"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

func TestParseFormat(t *testing.T) {
	cases := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{"nml", FormatNML, false},
		{"Traktor", FormatNML, false},
		{"rekordbox", FormatRekordbox, false},
		{"XML", FormatRekordbox, false},
		{"csv", FormatCSV, false},
		{"m3u", FormatM3U, false},
		{"m3u8", FormatM3U, false},
		{" nml ", FormatNML, false},
		{"serato", "", true},
		{"", "", true},
	}

	for _, c := range cases {
		got, err := ParseFormat(c.input)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q): expected error", c.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q): unexpected error: %v", c.input, err)
			continue
		}
		if got != c.expected {
			t.Errorf("ParseFormat(%q): expected %q, got %q", c.input, c.expected, got)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		path     string
		expected Format
		wantErr  bool
	}{
		{"/library/collection.nml", FormatNML, false},
		{"/library/collection.XML", FormatRekordbox, false},
		{"/library/export.csv", FormatCSV, false},
		{"/library/set.m3u", FormatM3U, false},
		{"/library/set.m3u8", FormatM3U, false},
		{"/library/set.txt", "", true},
		{"/library/noext", "", true},
	}

	for _, c := range cases {
		got, err := DetectFormat(c.path)
		if c.wantErr {
			if err == nil {
				t.Errorf("DetectFormat(%q): expected error", c.path)
			}
			continue
		}
		if err != nil {
			t.Errorf("DetectFormat(%q): unexpected error: %v", c.path, err)
			continue
		}
		if got != c.expected {
			t.Errorf("DetectFormat(%q): expected %q, got %q", c.path, c.expected, got)
		}
	}
}

func TestReadWrite_UnsupportedFormat(t *testing.T) {
	if _, _, err := Read(Format("serato"), "x", ReadOptions{}); err == nil {
		t.Error("Expected error for unsupported read format")
	}
	if _, err := Write(Format("serato"), "x", &track.Library{}, WriteOptions{}); err == nil {
		t.Error("Expected error for unsupported write format")
	}
}

func TestWrite_NilLibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	result, err := Write(FormatCSV, path, nil, WriteOptions{})
	if err != nil {
		t.Fatalf("Expected empty document for nil library, got error: %v", err)
	}
	if len(result.Identities) != 0 {
		t.Errorf("Expected no identities, got %d", len(result.Identities))
	}
}

func TestSkipReport_Summary(t *testing.T) {
	r := &SkipReport{}
	if r.Summary() != "no entries skipped" {
		t.Errorf("Unexpected empty summary: %q", r.Summary())
	}
	r.add(0, "entry has no title", "")
	r.add(3, "entry has no artist", "")
	if r.Summary() != "2 entries skipped" {
		t.Errorf("Unexpected summary: %q", r.Summary())
	}
	if r.Len() != 2 {
		t.Errorf("Expected length 2, got %d", r.Len())
	}

	var nilReport *SkipReport
	if nilReport.Len() != 0 {
		t.Error("Expected nil report to count 0")
	}
}
