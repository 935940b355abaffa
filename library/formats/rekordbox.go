package formats

import (
	"encoding/xml"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

// Rekordbox XML is a flat catalog: TRACK elements under COLLECTION keyed by
// a small integer TrackID that is reassigned on every export, plus a NODE
// tree under PLAYLISTS where Type="0" is a folder and Type="1" a playlist.

const (
	rbDocVersion     = "1.0.0"
	rbProductName    = "rekordbox"
	rbProductVersion = "6.6.3"
	rbLocationPrefix = "file://localhost/"
)

type rbDocument struct {
	XMLName    xml.Name     `xml:"DJ_PLAYLISTS"`
	Version    string       `xml:"Version,attr"`
	Product    rbProduct    `xml:"PRODUCT"`
	Collection rbCollection `xml:"COLLECTION"`
	Playlists  rbPlaylists  `xml:"PLAYLISTS"`
}

type rbProduct struct {
	Name    string `xml:"Name,attr"`
	Version string `xml:"Version,attr"`
}

type rbCollection struct {
	EntryCount string    `xml:"Entries,attr"`
	Tracks     []rbTrack `xml:"TRACK"`
}

type rbTrack struct {
	TrackID    string           `xml:"TrackID,attr"`
	Name       string           `xml:"Name,attr"`
	Artist     string           `xml:"Artist,attr"`
	Album      string           `xml:"Album,attr"`
	Genre      string           `xml:"Genre,attr"`
	Kind       string           `xml:"Kind,attr,omitempty"`
	Size       string           `xml:"Size,attr,omitempty"`
	TotalTime  string           `xml:"TotalTime,attr,omitempty"`
	AverageBpm string           `xml:"AverageBpm,attr,omitempty"`
	BitRate    string           `xml:"BitRate,attr,omitempty"`
	SampleRate string           `xml:"SampleRate,attr,omitempty"`
	Location   string           `xml:"Location,attr"`
	Tonality   string           `xml:"Tonality,attr,omitempty"`
	Rating     string           `xml:"Rating,attr,omitempty"`
	Tempo      *rbTempo         `xml:"TEMPO"`
	Marks      []rbPositionMark `xml:"POSITION_MARK"`
}

type rbTempo struct {
	Inizio  string `xml:"Inizio,attr"`
	Bpm     string `xml:"Bpm,attr"`
	Metro   string `xml:"Metro,attr"`
	Battito string `xml:"Battito,attr"`
}

type rbPositionMark struct {
	Start string `xml:"Start,attr"`
	Type  string `xml:"Type,attr"`
	Name  string `xml:"Name,attr,omitempty"`
	Num   string `xml:"Num,attr"`
	Red   string `xml:"Red,attr,omitempty"`
	Green string `xml:"Green,attr,omitempty"`
	Blue  string `xml:"Blue,attr,omitempty"`
}

type rbPlaylists struct {
	Nodes []rbNode `xml:"NODE"`
}

type rbNode struct {
	Type     string       `xml:"Type,attr"`
	Name     string       `xml:"Name,attr,omitempty"`
	Children []rbNode     `xml:"NODE"`
	Tracks   []rbTrackRef `xml:"TRACK"`
}

type rbTrackRef struct {
	TrackID string `xml:"TrackID,attr"`
}

// pathToLocation renders a file path as a Rekordbox Location URI: forward
// slashes behind a file://localhost/ prefix, without doubling the leading
// slash of an absolute POSIX path.
func pathToLocation(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	p = strings.TrimPrefix(p, "/")
	return rbLocationPrefix + p
}

// locationToPath reverses pathToLocation. The leading slash is restored
// unless the remainder starts with a Windows drive letter. Values without
// the prefix are taken as plain paths.
func locationToPath(location string) string {
	rest, ok := strings.CutPrefix(location, rbLocationPrefix)
	if !ok {
		return location
	}
	if isWindowsDrivePath(rest) {
		return rest
	}
	return "/" + rest
}

func isWindowsDrivePath(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func readRekordbox(path string, opts ReadOptions) (*track.Library, *SkipReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read Rekordbox document: %w", err)
	}

	var doc rbDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse Rekordbox document: %w", err)
	}

	lib := &track.Library{}
	report := &SkipReport{}

	for i, entry := range doc.Collection.Tracks {
		if strings.TrimSpace(entry.TrackID) == "" {
			report.add(i, "track has no TrackID attribute", entry.Name)
			log.Printf("WARN: rekordbox_track_skipped document=%s index=%d reason=no_track_id", path, i)
			continue
		}

		t := track.NewTrack(locationToPath(entry.Location))
		t.ID = entry.TrackID
		if name := strings.TrimSpace(entry.Name); name != "" {
			t.Title = name
		}
		if artist := strings.TrimSpace(entry.Artist); artist != "" {
			t.Artist = artist
		}
		if album := strings.TrimSpace(entry.Album); album != "" {
			t.Album = album
		}
		if genre := strings.TrimSpace(entry.Genre); genre != "" {
			t.Genre = genre
		}
		if bpm, err := strconv.ParseFloat(strings.TrimSpace(entry.AverageBpm), 64); err == nil && bpm > 0 {
			t.BPM = bpm
		}
		if key := track.NormalizeKey(entry.Tonality); key != "" {
			t.Key = key
		}
		if secs, err := strconv.ParseFloat(strings.TrimSpace(entry.TotalTime), 64); err == nil && secs > 0 {
			t.Duration = secs
		}
		t.CuePoints = cuesFromMarks(path, entry.Name, entry.Marks, opts.MapMemoryToHotCues)

		lib.Tracks = append(lib.Tracks, t)
	}

	for _, node := range doc.Playlists.Nodes {
		collectRekordboxPlaylists(node, lib)
	}

	return lib, report, nil
}

// collectRekordboxPlaylists flattens the playlist node tree: folders are
// descended into, playlists become Playlist values in document order.
func collectRekordboxPlaylists(node rbNode, lib *track.Library) {
	if node.Type == "1" {
		pl := track.Playlist{Name: node.Name}
		for _, ref := range node.Tracks {
			if ref.TrackID != "" {
				pl.TrackKeys = append(pl.TrackKeys, ref.TrackID)
			}
		}
		lib.Playlists = append(lib.Playlists, pl)
		return
	}
	for _, child := range node.Children {
		collectRekordboxPlaylists(child, lib)
	}
}

func writeRekordbox(path string, lib *track.Library, opts WriteOptions) (*WriteResult, error) {
	doc := rbDocument{
		Version: rbDocVersion,
		Product: rbProduct{Name: rbProductName, Version: rbProductVersion},
	}
	result := &WriteResult{Identities: make(map[string]string, len(lib.Tracks))}

	// TrackIDs are sequential from 1 and reassigned on every export; they
	// are only stable within one document.
	nextID := 1
	for _, t := range lib.Tracks {
		id := strconv.Itoa(nextID)
		nextID++
		result.Identities[t.Identity()] = id

		bpm := strconv.FormatFloat(t.BPM, 'f', -1, 64)
		entry := rbTrack{
			TrackID:    id,
			Name:       t.Title,
			Artist:     t.Artist,
			Album:      t.Album,
			Genre:      t.Genre,
			Kind:       "MP3 File",
			Size:       "0",
			TotalTime:  strconv.Itoa(int(math.Round(t.Duration))),
			AverageBpm: bpm,
			BitRate:    "320000",
			SampleRate: "44100",
			Location:   pathToLocation(t.FilePath),
			Tonality:   t.Key,
			Rating:     "0",
			Tempo: &rbTempo{
				Inizio:  "0.000",
				Bpm:     bpm,
				Metro:   "4/4",
				Battito: "1",
			},
			Marks: marksFromCues(t.CuePoints, opts.MapHotCuesToMemory),
		}
		doc.Collection.Tracks = append(doc.Collection.Tracks, entry)
	}
	doc.Collection.EntryCount = strconv.Itoa(len(doc.Collection.Tracks))

	root := rbNode{Type: "0", Name: "Root"}
	for _, pl := range lib.Playlists {
		node := rbNode{Type: "1", Name: pl.Name}
		for _, key := range pl.TrackKeys {
			target, ok := result.Identities[key]
			if !ok {
				result.DroppedRefs++
				log.Printf("WARN: rekordbox_playlist_ref_dropped document=%s playlist=%s key=%s", path, pl.Name, key)
				continue
			}
			node.Tracks = append(node.Tracks, rbTrackRef{TrackID: target})
		}
		root.Children = append(root.Children, node)
	}
	doc.Playlists.Nodes = []rbNode{root}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize Rekordbox document: %w", err)
	}
	if err := writeDocument(path, append([]byte(xml.Header), data...)); err != nil {
		return nil, err
	}
	return result, nil
}
