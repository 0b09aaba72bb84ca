package report

import (
	"strings"

	"github.com/dcarowpilot/daily-report-ai/internal/normalize"
)

// Manual holds the operator's typed values after normalization.
type Manual struct {
	CrewCounts   []normalize.KeyCount
	Equipment    []normalize.KeyCount
	Activities   []normalize.Activity
	Quantities   []normalize.Quantity
	Safety       string
	IssuesDelays string
}

// Merged is the per-field winner between Manual and ExtractedFields.
type Merged struct {
	CrewCounts   []normalize.KeyCount
	Equipment    []normalize.KeyCount
	Activities   []normalize.Activity
	Quantities   []normalize.Quantity
	Safety       string
	IssuesDelays string
}

// Merge picks, for each field independently, the manual value when it is
// non-empty and the extracted value otherwise. Values are never combined.
// Emptiness of list fields is judged on the parsed list, so text that parsed
// to nothing falls through to the extracted value.
func Merge(manual Manual, extracted ExtractedFields) Merged {
	return Merged{
		CrewCounts:   pickList(manual.CrewCounts, extracted.CrewCounts),
		Equipment:    pickList(manual.Equipment, extracted.Equipment),
		Activities:   pickList(manual.Activities, extracted.Activities),
		Quantities:   pickList(manual.Quantities, extracted.Quantities),
		Safety:       pickText(manual.Safety, extracted.Safety),
		IssuesDelays: pickText(manual.IssuesDelays, extracted.IssuesDelays),
	}
}

func pickList[T any](manual, extracted []T) []T {
	if len(manual) > 0 {
		return manual
	}
	if extracted == nil {
		return []T{}
	}
	return extracted
}

func pickText(manual, extracted string) string {
	if !isBlank(manual) {
		return manual
	}
	return extracted
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
