package formats

import "fmt"

// SkippedEntry records one entry a reader had to leave out of the result.
type SkippedEntry struct {
	// Index is the zero-based position of the entry within the source
	// document, or -1 when the skip applies to the document as a whole.
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// SkipReport collects everything a read left out, so callers and tests can
// see exactly what was dropped and why instead of digging through logs.
type SkipReport struct {
	Entries []SkippedEntry `json:"entries,omitempty"`
}

func (r *SkipReport) add(index int, reason, detail string) {
	r.Entries = append(r.Entries, SkippedEntry{Index: index, Reason: reason, Detail: detail})
}

// Len returns the number of skipped entries.
func (r *SkipReport) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Entries)
}

// Summary renders a short human-readable account of the report.
func (r *SkipReport) Summary() string {
	if r.Len() == 0 {
		return "no entries skipped"
	}
	return fmt.Sprintf("%d entries skipped", r.Len())
}

// WriteResult describes what a write produced. Identities maps each written
// track's source identity (file path when the source document assigned none)
// to the identity minted in the target document; tracks themselves are never
// mutated. DroppedRefs counts playlist references whose target track was not
// written and which were therefore left out of the target playlists.
type WriteResult struct {
	Identities  map[string]string
	DroppedRefs int
}
