// Package report defines the persisted daily report, the fields an extractor
// may infer, and the rules for combining typed and extracted values.
package report

import (
	"github.com/dcarowpilot/daily-report-ai/internal/normalize"
)

// StructuredReport is one persisted daily report. List fields are never nil
// once built by Assemble.
type StructuredReport struct {
	ID              string               `json:"id"`
	Date            string               `json:"date"`
	Project         string               `json:"project"`
	Author          string               `json:"author"`
	Weather         string               `json:"weather"`
	CrewCounts      []normalize.KeyCount `json:"crewCounts"`
	Equipment       []normalize.KeyCount `json:"equipment"`
	Activities      []normalize.Activity `json:"activities"`
	Quantities      []normalize.Quantity `json:"quantities"`
	SubsPresent     []string             `json:"subsPresent"`
	IssuesDelays    string               `json:"issuesDelays"`
	Safety          string               `json:"safety"`
	PhotoURLs       []string             `json:"photoUrls"`
	NotesRaw        string               `json:"notesRaw"`
	VoiceTranscript string               `json:"voiceTranscript"`
	AudioURL        string               `json:"audioUrl"`
}

// ExtractedFields is what an extractor infers from raw notes and transcript.
type ExtractedFields struct {
	CrewCounts   []normalize.KeyCount `json:"crewCounts"`
	Equipment    []normalize.KeyCount `json:"equipment"`
	Activities   []normalize.Activity `json:"activities"`
	Quantities   []normalize.Quantity `json:"quantities"`
	Safety       string               `json:"safety"`
	IssuesDelays string               `json:"issuesDelays"`
}

// EmptyExtraction returns ExtractedFields with every list present and empty.
// It stands in for a skipped or failed extraction.
func EmptyExtraction() ExtractedFields {
	return ExtractedFields{
		CrewCounts: []normalize.KeyCount{},
		Equipment:  []normalize.KeyCount{},
		Activities: []normalize.Activity{},
		Quantities: []normalize.Quantity{},
	}
}

// Complete fills nil lists with empty ones so a partially decoded response
// always has every key present.
func (e ExtractedFields) Complete() ExtractedFields {
	if e.CrewCounts == nil {
		e.CrewCounts = []normalize.KeyCount{}
	}
	if e.Equipment == nil {
		e.Equipment = []normalize.KeyCount{}
	}
	if e.Activities == nil {
		e.Activities = []normalize.Activity{}
	}
	if e.Quantities == nil {
		e.Quantities = []normalize.Quantity{}
	}
	return e
}

// IsEmpty reports whether nothing was extracted.
func (e ExtractedFields) IsEmpty() bool {
	return len(e.CrewCounts) == 0 && len(e.Equipment) == 0 &&
		len(e.Activities) == 0 && len(e.Quantities) == 0 &&
		isBlank(e.Safety) && isBlank(e.IssuesDelays)
}
