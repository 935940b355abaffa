package formats

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/ethiapath/djmusicorganizer/library/track"
)

// Rekordbox position-mark type codes.
const (
	rbMarkHotCue = "0"
	rbMarkLoop   = "1"
	rbMarkMemory = "2"
	rbMarkGrid   = "4"
)

// lastToken returns the final whitespace-separated token of s.
func lastToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// hotCueSuffix picks the number used when renaming a hot cue on export: the
// numeric last token of the source label plus one, or the cue's 1-based
// position among the track's hot cues when the label carries no number.
func hotCueSuffix(label string, ordinal int) int {
	if n, err := strconv.Atoi(lastToken(label)); err == nil {
		return n + 1
	}
	return ordinal
}

// marksFromCues converts cue points into Rekordbox position marks. Hot cues
// are renamed "Hot Cue <n>"; when mapFirstToMemory is set, the first hot cue
// of the track also emits a memory mark directly before it, mirroring the
// convention that the opening hot cue doubles as a memory cue. Grid and beat
// markers both collapse to the grid type, so the reverse direction cannot
// tell them apart again.
func marksFromCues(cues []track.CuePoint, mapFirstToMemory bool) []rbPositionMark {
	var marks []rbPositionMark
	firstHotCue := true
	hotCues := 0
	for _, cue := range cues {
		start := fmt.Sprintf("%.3f", cue.StartSeconds)
		switch cue.Type {
		case track.CueHotCue:
			hotCues++
			suffix := hotCueSuffix(cue.Label, hotCues)
			if firstHotCue && mapFirstToMemory {
				marks = append(marks, rbPositionMark{
					Start: start,
					Type:  rbMarkMemory,
					Name:  fmt.Sprintf("Memory %d", suffix),
					Num:   "-1",
					Red:   "0",
					Green: "0",
					Blue:  "255",
				})
			}
			firstHotCue = false
			marks = append(marks, rbPositionMark{
				Start: start,
				Type:  rbMarkHotCue,
				Name:  fmt.Sprintf("Hot Cue %d", suffix),
				Num:   "-1",
				Red:   "255",
				Green: "0",
				Blue:  "0",
			})
		case track.CueLoop:
			marks = append(marks, rbPositionMark{
				Start: start,
				Type:  rbMarkLoop,
				Name:  cue.Label,
				Num:   "-1",
				Red:   "0",
				Green: "255",
				Blue:  "0",
			})
		case track.CueGrid, track.CueBeat:
			marks = append(marks, rbPositionMark{
				Start: start,
				Type:  rbMarkGrid,
				Name:  "Grid",
				Num:   "-1",
				Red:   "0",
				Green: "0",
				Blue:  "0",
			})
		default:
			log.Printf("WARN: rekordbox_cue_unwritable type=%q", cue.Type)
		}
	}
	return marks
}

// cuesFromMarks converts Rekordbox position marks back into cue points.
// Memory marks have no native equivalent: they are dropped unless
// mapMemoryToHotCues is set, which relabels them as hot cues keeping the
// numeric suffix of the mark name. The forward direction can duplicate a
// marker and this direction can drop one; the two are not inverses.
func cuesFromMarks(document, trackName string, marks []rbPositionMark, mapMemoryToHotCues bool) []track.CuePoint {
	var cues []track.CuePoint
	for _, mark := range marks {
		start, err := strconv.ParseFloat(strings.TrimSpace(mark.Start), 64)
		if err != nil {
			log.Printf("WARN: rekordbox_mark_skipped document=%s track=%s start=%q", document, trackName, mark.Start)
			continue
		}
		switch strings.TrimSpace(mark.Type) {
		case rbMarkHotCue:
			cues = append(cues, track.CuePoint{Type: track.CueHotCue, StartSeconds: start, Label: mark.Name})
		case rbMarkLoop:
			cues = append(cues, track.CuePoint{Type: track.CueLoop, StartSeconds: start, Label: mark.Name})
		case rbMarkMemory:
			if !mapMemoryToHotCues {
				continue
			}
			label := "Hot Cue"
			if suffix := lastToken(mark.Name); suffix != "" {
				label = "Hot Cue " + suffix
			}
			cues = append(cues, track.CuePoint{Type: track.CueHotCue, StartSeconds: start, Label: label})
		case rbMarkGrid:
			cues = append(cues, track.CuePoint{Type: track.CueGrid, StartSeconds: start, Label: "Grid"})
		default:
			log.Printf("WARN: rekordbox_mark_skipped document=%s track=%s type=%q", document, trackName, mark.Type)
		}
	}
	return cues
}
