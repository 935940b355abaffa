// Package formats reads and writes the four supported library document
// formats: Traktor NML, Rekordbox XML, CSV and M3U. Every codec shares the
// same contract: reads tolerate bad entries (they land in the skip report
// instead of aborting the document), writes regenerate the whole document and
// only replace the target file once the full document has been produced.
package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

// Format names one of the supported document formats. The set is closed;
// adding a format means adding a constant plus a read and a write arm below.
type Format string

const (
	FormatNML       Format = "nml"
	FormatRekordbox Format = "rekordbox"
	FormatCSV       Format = "csv"
	FormatM3U       Format = "m3u"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nml", "traktor":
		return FormatNML, nil
	case "rekordbox", "xml":
		return FormatRekordbox, nil
	case "csv":
		return FormatCSV, nil
	case "m3u", "m3u8":
		return FormatM3U, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected nml, rekordbox, csv or m3u)", name)
	}
}

// DetectFormat picks a format from the file extension of path.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nml":
		return FormatNML, nil
	case ".xml":
		return FormatRekordbox, nil
	case ".csv":
		return FormatCSV, nil
	case ".m3u", ".m3u8":
		return FormatM3U, nil
	default:
		return "", fmt.Errorf("cannot detect format of %q: unknown extension", path)
	}
}

// ReadOptions adjusts format-specific read behavior.
type ReadOptions struct {
	// MapMemoryToHotCues converts Rekordbox memory cues into hot cues
	// instead of dropping them. Other formats ignore it.
	MapMemoryToHotCues bool
}

// WriteOptions adjusts format-specific write behavior.
type WriteOptions struct {
	// MapHotCuesToMemory additionally emits a Rekordbox memory cue for the
	// first hot cue of each track. Other formats ignore it.
	MapHotCuesToMemory bool
}

// Read parses the document at path. Entries that cannot be used are recorded
// in the skip report; only a root-level failure (unreadable file, malformed
// document) returns an error.
func Read(format Format, path string, opts ReadOptions) (*track.Library, *SkipReport, error) {
	switch format {
	case FormatNML:
		return readNML(path)
	case FormatRekordbox:
		return readRekordbox(path, opts)
	case FormatCSV:
		return readCSV(path)
	case FormatM3U:
		return readM3U(path)
	default:
		return nil, nil, fmt.Errorf("unsupported format %q", format)
	}
}

// Write serializes lib to path, regenerating the document from scratch. The
// result reports the identity assigned to every written track and how many
// playlist references had to be dropped. On error no partial file is left
// behind and the previous content of path, if any, is untouched.
func Write(format Format, path string, lib *track.Library, opts WriteOptions) (*WriteResult, error) {
	if lib == nil {
		lib = &track.Library{}
	}
	switch format {
	case FormatNML:
		return writeNML(path, lib)
	case FormatRekordbox:
		return writeRekordbox(path, lib, opts)
	case FormatCSV:
		return writeCSV(path, lib)
	case FormatM3U:
		return writeM3U(path, lib)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// writeDocument lands data at path through a temporary file in the same
// directory so a failed write never truncates an existing document.
func writeDocument(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
