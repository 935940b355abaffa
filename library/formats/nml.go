package formats

import (
	"encoding/xml"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

// NML is the Traktor collection format: an XML document with HEAD,
// MUSICFOLDERS, COLLECTION and SETS sections in fixed order. Entries carry a
// UUID identity; playlists reference entries by that UUID through NODE
// elements under SETS.

const (
	nmlVersion     = "25"
	nmlProductName = "DJ Music Organizer"
	nmlProductVer  = "1.0"
)

type nmlDocument struct {
	XMLName      xml.Name        `xml:"NML"`
	Version      string          `xml:"VERSION,attr"`
	Head         nmlHead         `xml:"HEAD"`
	MusicFolders nmlMusicFolders `xml:"MUSICFOLDERS"`
	Collection   nmlCollection   `xml:"COLLECTION"`
	Sets         nmlSets         `xml:"SETS"`
}

type nmlHead struct {
	Company string `xml:"COMPANY"`
	Product string `xml:"PRODUCT"`
	Version string `xml:"VERSION"`
}

type nmlMusicFolders struct{}

type nmlCollection struct {
	EntryCount string     `xml:"ENTRIES,attr"`
	Entries    []nmlEntry `xml:"ENTRY"`
}

type nmlEntry struct {
	ID         string        `xml:"ID,attr"`
	PrimaryKey string        `xml:"PRIMARYKEY"`
	Title      string        `xml:"TITLE"`
	Artist     string        `xml:"ARTIST"`
	Tempo      nmlTempo      `xml:"TEMPO"`
	Key        nmlKey        `xml:"KEY"`
	Location   nmlLocation   `xml:"LOCATION"`
	Info       nmlInfo       `xml:"INFO"`
	Cues       []nmlCueEntry `xml:"CUE_V2"`
}

type nmlTempo struct {
	BPM     string `xml:"BPM,attr"`
	Quality string `xml:"BPM_QUALITY,attr,omitempty"`
}

type nmlKey struct {
	Value string `xml:"VALUE,attr"`
}

type nmlLocation struct {
	File   string `xml:"FILE,attr"`
	Volume string `xml:"VOLUME,attr,omitempty"`
	Dir    string `xml:"DIR,attr,omitempty"`
}

type nmlInfo struct {
	Bitrate  string `xml:"BITRATE,attr,omitempty"`
	Genre    string `xml:"GENRE,attr,omitempty"`
	Playtime string `xml:"PLAYTIME,attr,omitempty"`
}

type nmlCueEntry struct {
	Type  string `xml:"TYPE,attr"`
	Start string `xml:"START,attr"`
	Name  string `xml:"NAME,attr,omitempty"`
}

type nmlSets struct {
	Nodes []nmlNode `xml:"NODE"`
}

type nmlNode struct {
	Type     string    `xml:"TYPE,attr"`
	Name     string    `xml:"NAME,attr,omitempty"`
	Key      string    `xml:"KEY,attr,omitempty"`
	Children []nmlNode `xml:"NODE"`
}

// Cue type codes used inside CUE_V2 markers.
const (
	nmlCueHotCue = "0"
	nmlCueLoop   = "1"
	nmlCueGrid   = "4"
	nmlCueBeat   = "9"
)

func nmlCueCode(t track.CueType) (string, bool) {
	switch t {
	case track.CueHotCue:
		return nmlCueHotCue, true
	case track.CueLoop:
		return nmlCueLoop, true
	case track.CueGrid:
		return nmlCueGrid, true
	case track.CueBeat:
		return nmlCueBeat, true
	default:
		return "", false
	}
}

func cueTypeFromNMLCode(code string) (track.CueType, bool) {
	switch code {
	case nmlCueHotCue:
		return track.CueHotCue, true
	case nmlCueLoop:
		return track.CueLoop, true
	case nmlCueGrid:
		return track.CueGrid, true
	case nmlCueBeat:
		return track.CueBeat, true
	default:
		return "", false
	}
}

func readNML(path string) (*track.Library, *SkipReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read NML document: %w", err)
	}

	var doc nmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse NML document: %w", err)
	}

	lib := &track.Library{}
	report := &SkipReport{}

	for i, entry := range doc.Collection.Entries {
		if reason := nmlEntryProblem(entry); reason != "" {
			report.add(i, reason, entry.Location.File)
			log.Printf("WARN: nml_entry_skipped document=%s index=%d reason=%s", path, i, reason)
			continue
		}

		t := track.NewTrack(entry.Location.File)
		t.ID = entry.ID
		t.Title = strings.TrimSpace(entry.Title)
		t.Artist = strings.TrimSpace(entry.Artist)
		if genre := strings.TrimSpace(entry.Info.Genre); genre != "" {
			t.Genre = genre
		}
		if bpm, err := strconv.ParseFloat(strings.TrimSpace(entry.Tempo.BPM), 64); err == nil && bpm > 0 {
			t.BPM = bpm
		}
		if key := track.NormalizeKey(entry.Key.Value); key != "" {
			t.Key = key
		}
		if secs, err := strconv.ParseFloat(strings.TrimSpace(entry.Info.Playtime), 64); err == nil && secs > 0 {
			t.Duration = secs
		}
		t.CuePoints = cuesFromNMLEntry(path, entry)

		lib.Tracks = append(lib.Tracks, t)
	}

	for _, node := range doc.Sets.Nodes {
		if node.Type != "PLAYLIST" {
			continue
		}
		pl := track.Playlist{Name: node.Name}
		for _, child := range node.Children {
			if child.Type == "TRACK" && child.Key != "" {
				pl.TrackKeys = append(pl.TrackKeys, child.Key)
			}
		}
		lib.Playlists = append(lib.Playlists, pl)
	}

	return lib, report, nil
}

// nmlEntryProblem returns the reason an entry is unusable, or "" when the
// entry carries everything a track needs.
func nmlEntryProblem(entry nmlEntry) string {
	if strings.TrimSpace(entry.ID) == "" {
		return "entry has no ID attribute"
	}
	if strings.TrimSpace(entry.Title) == "" {
		return "entry has no title"
	}
	if strings.TrimSpace(entry.Artist) == "" {
		return "entry has no artist"
	}
	return ""
}

func cuesFromNMLEntry(path string, entry nmlEntry) []track.CuePoint {
	var cues []track.CuePoint
	for _, cue := range entry.Cues {
		cueType, ok := cueTypeFromNMLCode(strings.TrimSpace(cue.Type))
		if !ok {
			log.Printf("WARN: nml_cue_skipped document=%s entry=%s type=%q", path, entry.ID, cue.Type)
			continue
		}
		start, err := strconv.ParseFloat(strings.TrimSpace(cue.Start), 64)
		if err != nil {
			log.Printf("WARN: nml_cue_skipped document=%s entry=%s start=%q", path, entry.ID, cue.Start)
			continue
		}
		cues = append(cues, track.CuePoint{Type: cueType, StartSeconds: start, Label: cue.Name})
	}
	return cues
}

func writeNML(path string, lib *track.Library) (*WriteResult, error) {
	doc := nmlDocument{
		Version: nmlVersion,
		Head: nmlHead{
			Company: nmlProductName,
			Product: nmlProductName,
			Version: nmlProductVer,
		},
	}
	result := &WriteResult{Identities: make(map[string]string, len(lib.Tracks))}

	for _, t := range lib.Tracks {
		id := uuid.NewString()
		result.Identities[t.Identity()] = id

		entry := nmlEntry{
			ID:         id,
			PrimaryKey: id,
			Title:      t.Title,
			Artist:     t.Artist,
			Tempo: nmlTempo{
				BPM:     strconv.FormatFloat(t.BPM, 'f', -1, 64),
				Quality: "100",
			},
			Key: nmlKey{Value: t.Key},
			Location: nmlLocation{
				File:   t.FilePath,
				Volume: "volume",
				Dir:    filepath.Dir(t.FilePath),
			},
			Info: nmlInfo{
				Bitrate:  "320",
				Genre:    t.Genre,
				Playtime: strconv.Itoa(int(math.Round(t.Duration))),
			},
		}
		for _, cue := range t.CuePoints {
			code, ok := nmlCueCode(cue.Type)
			if !ok {
				log.Printf("WARN: nml_cue_unwritable document=%s track=%s type=%q", path, t.Title, cue.Type)
				continue
			}
			entry.Cues = append(entry.Cues, nmlCueEntry{
				Type:  code,
				Start: fmt.Sprintf("%.3f", cue.StartSeconds),
				Name:  cue.Label,
			})
		}
		doc.Collection.Entries = append(doc.Collection.Entries, entry)
	}
	doc.Collection.EntryCount = strconv.Itoa(len(doc.Collection.Entries))

	for _, pl := range lib.Playlists {
		node := nmlNode{Type: "PLAYLIST", Name: pl.Name}
		for _, key := range pl.TrackKeys {
			target, ok := result.Identities[key]
			if !ok {
				result.DroppedRefs++
				log.Printf("WARN: nml_playlist_ref_dropped document=%s playlist=%s key=%s", path, pl.Name, key)
				continue
			}
			node.Children = append(node.Children, nmlNode{Type: "TRACK", Key: target})
		}
		doc.Sets.Nodes = append(doc.Sets.Nodes, node)
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize NML document: %w", err)
	}
	if err := writeDocument(path, append([]byte(xml.Header), data...)); err != nil {
		return nil, err
	}
	return result, nil
}
