package formats

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

// M3U documents are line oriented: an optional #EXTM3U header, then one path
// per line with an optional #EXTINF directive before it. The .m3u8 extension
// means UTF-8; plain .m3u is the legacy Windows-1252 variant.

func isLegacyM3U(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".m3u"
}

func readM3U(path string) (*track.Library, *SkipReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read M3U document: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if isLegacyM3U(path) {
		r = transform.NewReader(f, charmap.Windows1252.NewDecoder())
	}

	lib := &track.Library{}
	report := &SkipReport{}
	dir := filepath.Dir(path)

	pendingTitle := ""
	pendingDuration := 0.0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			pendingTitle, pendingDuration = parseExtInf(line)
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}

		entryPath := strings.ReplaceAll(line, "\\", "/")
		if !filepath.IsAbs(entryPath) && !isWindowsDrivePath(entryPath) {
			entryPath = filepath.Clean(filepath.Join(dir, entryPath))
		}

		t := track.NewTrack(entryPath)
		if pendingTitle != "" {
			t.Title = pendingTitle
		}
		if pendingDuration > 0 {
			t.Duration = pendingDuration
		}
		pendingTitle, pendingDuration = "", 0
		lib.Tracks = append(lib.Tracks, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read M3U document: %w", err)
	}

	// The file itself is one playlist, named after its stem.
	pl := track.Playlist{Name: track.TitleFromPath(path)}
	for _, t := range lib.Tracks {
		pl.TrackKeys = append(pl.TrackKeys, t.Identity())
	}
	lib.Playlists = []track.Playlist{pl}

	return lib, report, nil
}

// parseExtInf splits "#EXTINF:<duration>,<title>". A duration of -1 or an
// unparsable one means unknown.
func parseExtInf(line string) (string, float64) {
	rest := strings.TrimPrefix(line, "#EXTINF:")
	durStr, title, _ := strings.Cut(rest, ",")
	var duration float64
	if d, err := strconv.ParseFloat(strings.TrimSpace(durStr), 64); err == nil && d > 0 {
		duration = d
	}
	return strings.TrimSpace(title), duration
}

func writeM3U(path string, lib *track.Library) (*WriteResult, error) {
	result := &WriteResult{Identities: make(map[string]string)}
	outDir := filepath.Dir(path)

	// One playlist per document: the first playlist when the library has
	// playlists, the full track list otherwise.
	tracks := lib.Tracks
	if len(lib.Playlists) > 0 {
		pl := lib.Playlists[0]
		if len(lib.Playlists) > 1 {
			log.Printf("INFO: m3u_extra_playlists_not_written document=%s playlists=%d", path, len(lib.Playlists)-1)
		}
		tracks = nil
		for _, key := range pl.TrackKeys {
			t := lib.TrackByIdentity(key)
			if t == nil {
				result.DroppedRefs++
				log.Printf("WARN: m3u_playlist_ref_dropped document=%s playlist=%s key=%s", path, pl.Name, key)
				continue
			}
			tracks = append(tracks, t)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")
	for _, t := range tracks {
		duration := -1
		if t.Duration > 0 {
			duration = int(math.Round(t.Duration))
		}
		fmt.Fprintf(&buf, "#EXTINF:%d,%s\n", duration, t.Title)
		buf.WriteString(m3uEntryPath(outDir, t.FilePath) + "\n")
		result.Identities[t.Identity()] = t.FilePath
	}

	data := buf.Bytes()
	if isLegacyM3U(path) {
		encoded, err := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode M3U document: %w", err)
		}
		data = encoded
	}
	if err := writeDocument(path, data); err != nil {
		return nil, err
	}
	return result, nil
}

// m3uEntryPath rewrites a track path relative to the playlist directory,
// keeping the absolute form when the relative one would climb through more
// than two parent directories.
func m3uEntryPath(outDir, trackPath string) string {
	rel, err := filepath.Rel(outDir, trackPath)
	if err != nil {
		return trackPath
	}
	hops := 0
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == ".." {
			hops++
		}
	}
	if hops > 2 {
		return trackPath
	}
	return rel
}
