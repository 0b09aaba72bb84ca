package report

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/dcarowpilot/daily-report-ai/internal/normalize"
)

func crew(text string) []normalize.KeyCount {
	return normalize.ParseKeyCounts(text, normalize.Crew)
}

func TestMergeManualWinsWholeField(t *testing.T) {
	manual := Manual{CrewCounts: crew("Carpenters:6")}
	extracted := EmptyExtraction()
	extracted.CrewCounts = crew("Carpenters:5, Ironworkers:4")

	got := Merge(manual, extracted)
	if !reflect.DeepEqual(got.CrewCounts, manual.CrewCounts) {
		t.Errorf("expected manual crew counts %v, got %v", manual.CrewCounts, got.CrewCounts)
	}
}

func TestMergeFallsBackPerField(t *testing.T) {
	manual := Manual{
		Equipment: normalize.ParseKeyCounts("Excavator:1", normalize.Equipment),
		Safety:    "   ",
	}
	extracted := ExtractedFields{
		CrewCounts:   crew("Laborers:3"),
		Equipment:    normalize.ParseKeyCounts("Loader:2", normalize.Equipment),
		Activities:   []normalize.Activity{{Location: "Grid A", Description: "Formed footings"}},
		Quantities:   normalize.ParseQuantities("Concrete CY: 12"),
		Safety:       "Toolbox talk on ladders",
		IssuesDelays: "Rain delay 2h",
	}

	got := Merge(manual, extracted)
	if !reflect.DeepEqual(got.CrewCounts, extracted.CrewCounts) {
		t.Errorf("expected extracted crew counts, got %v", got.CrewCounts)
	}
	if got.Equipment[0].Key != "Excavator" || len(got.Equipment) != 1 {
		t.Errorf("expected manual equipment only, got %v", got.Equipment)
	}
	if got.Activities[0].Location != "Grid A" {
		t.Errorf("expected extracted activity location, got %v", got.Activities)
	}
	if got.Safety != "Toolbox talk on ladders" {
		t.Errorf("expected whitespace manual safety to fall through, got %q", got.Safety)
	}
	if got.IssuesDelays != "Rain delay 2h" {
		t.Errorf("expected extracted issues, got %q", got.IssuesDelays)
	}
}

func TestMergeEmptyMatchesSkippedExtraction(t *testing.T) {
	manual := Manual{}
	skipped := Merge(manual, EmptyExtraction())
	ranEmpty := Merge(manual, ExtractedFields{}.Complete())
	if !reflect.DeepEqual(skipped, ranEmpty) {
		t.Errorf("expected identical results, got %+v and %+v", skipped, ranEmpty)
	}
	if skipped.CrewCounts == nil || len(skipped.CrewCounts) != 0 {
		t.Errorf("expected empty crew counts, got %#v", skipped.CrewCounts)
	}
}

func TestMergeUnparseableManualTextFallsThrough(t *testing.T) {
	manual := Manual{CrewCounts: crew("nonsense")}
	extracted := EmptyExtraction()
	extracted.CrewCounts = crew("Masons:2")

	got := Merge(manual, extracted)
	if len(got.CrewCounts) != 1 || got.CrewCounts[0].Key != "Masons" {
		t.Errorf("expected extracted crew counts, got %v", got.CrewCounts)
	}
}

func TestAssembleAllEmpty(t *testing.T) {
	r := Assemble(Inputs{Date: "2026-10-18", Project: "Route 9 Bridge"})
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, field := range []string{
		`"crewCounts":[]`, `"equipment":[]`, `"activities":[]`, `"quantities":[]`,
		`"subsPresent":[]`, `"photoUrls":[]`, `"audioUrl":""`, `"voiceTranscript":""`,
		`"issuesDelays":""`, `"safety":""`, `"notesRaw":""`, `"author":""`, `"weather":""`,
	} {
		if !strings.Contains(string(data), field) {
			t.Errorf("expected %s in %s", field, data)
		}
	}
}

func TestAssembleKeepsSubsAsTyped(t *testing.T) {
	r := Assemble(Inputs{
		SubsPresent: normalize.ParseList("Acme; acme, Acme"),
		PhotoURLs:   []string{"u1", "u2"},
	})
	want := []string{"Acme", "acme", "Acme"}
	if !reflect.DeepEqual(r.SubsPresent, want) {
		t.Errorf("expected %v, got %v", want, r.SubsPresent)
	}
	if len(r.PhotoURLs) != 2 {
		t.Errorf("expected 2 photo URLs, got %d", len(r.PhotoURLs))
	}
}

func TestExtractedFieldsCompleteAndEmpty(t *testing.T) {
	var e ExtractedFields
	if err := json.Unmarshal([]byte(`{"safety": "Hard hats"}`), &e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e = e.Complete()
	if e.CrewCounts == nil || e.Quantities == nil {
		t.Error("expected lists to be filled")
	}
	if e.IsEmpty() {
		t.Error("expected non-empty extraction")
	}
	if !EmptyExtraction().IsEmpty() {
		t.Error("expected empty extraction")
	}
}
