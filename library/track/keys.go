package track

import "strings"

// PitchClasses lists the twelve key names in chromatic order starting at C.
// Chroma analysis indexes into this table directly.
var PitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatToSharp = map[string]string{
	"CB": "B",
	"DB": "C#",
	"EB": "D#",
	"FB": "E",
	"GB": "F#",
	"AB": "G#",
	"BB": "A#",
}

// NormalizeKey maps a raw tag key spelling onto one of the twelve pitch-class
// names. Flats become their sharp equivalents and trailing mode markers
// ("m", "min", "maj") are dropped. Returns "" when the value does not name a
// pitch class; callers treat that as an unusable tag.
func NormalizeKey(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	for _, suffix := range []string{"MAJOR", "MINOR", "MAJ", "MIN", "M"} {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	if sharp, ok := flatToSharp[s]; ok {
		return sharp
	}
	for _, name := range PitchClasses {
		if name == s {
			return name
		}
	}
	return ""
}
