package formats

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

// csvColumns is the fixed header the writer emits. The reader is
// header-driven and additionally accepts "location" as an alias for "path".
var csvColumns = []string{"name", "artist", "album", "genre", "bpm", "key", "path"}

func readCSV(path string) (*track.Library, *SkipReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV document: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	lib := &track.Library{}
	report := &SkipReport{}

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return lib, report, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, cell := range header {
		columns[strings.ToLower(strings.TrimSpace(cell))] = i
	}
	pathCol, ok := columns["path"]
	if !ok {
		pathCol, ok = columns["location"]
	}
	if !ok {
		// Without a file reference column no row can become a track; the
		// document is skipped as a whole rather than failed.
		report.add(-1, "document has no path column", strings.Join(header, ","))
		log.Printf("WARN: csv_document_skipped document=%s reason=no_path_column", path)
		return lib, report, nil
	}

	for i := 0; ; i++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			report.add(i, "unparsable row", err.Error())
			log.Printf("WARN: csv_row_skipped document=%s index=%d error=%v", path, i, err)
			continue
		}

		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		filePath := ""
		if pathCol < len(row) {
			filePath = strings.TrimSpace(row[pathCol])
		}
		if filePath == "" {
			report.add(i, "row has no file path", strings.Join(row, ","))
			log.Printf("WARN: csv_row_skipped document=%s index=%d reason=empty_path", path, i)
			continue
		}

		t := track.NewTrack(filePath)
		if name := cell("name"); name != "" {
			t.Title = name
		}
		if artist := cell("artist"); artist != "" {
			t.Artist = artist
		}
		if album := cell("album"); album != "" {
			t.Album = album
		}
		if genre := cell("genre"); genre != "" {
			t.Genre = genre
		}
		if bpm, err := strconv.ParseFloat(cell("bpm"), 64); err == nil && bpm > 0 {
			t.BPM = bpm
		}
		if key := track.NormalizeKey(cell("key")); key != "" {
			t.Key = key
		}

		lib.Tracks = append(lib.Tracks, t)
	}

	return lib, report, nil
}

func writeCSV(path string, lib *track.Library) (*WriteResult, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvColumns); err != nil {
		return nil, fmt.Errorf("failed to serialize CSV document: %w", err)
	}

	result := &WriteResult{Identities: make(map[string]string, len(lib.Tracks))}
	for _, t := range lib.Tracks {
		rec := t.ToRecord()
		row := make([]string, len(csvColumns))
		for i, col := range csvColumns {
			row[i] = rec[col]
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to serialize CSV document: %w", err)
		}
		result.Identities[t.Identity()] = t.FilePath
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to serialize CSV document: %w", err)
	}

	if len(lib.Playlists) > 0 {
		log.Printf("INFO: csv_playlists_not_written document=%s playlists=%d", path, len(lib.Playlists))
	}

	if err := writeDocument(path, buf.Bytes()); err != nil {
		return nil, err
	}
	return result, nil
}
