package ingest

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dcarowpilot/daily-report-ai/internal/media"
	"github.com/dcarowpilot/daily-report-ai/internal/normalize"
	"github.com/dcarowpilot/daily-report-ai/internal/report"
)

const dateLayout = "2006-01-02"

var (
	ErrUnknownProject = errors.New("unknown project")
	ErrInvalidDate    = errors.New("invalid report date")
)

// Draft is the in-progress form state of one session. Its ID is fixed for
// the life of the draft and becomes the record ID and media path prefix.
type Draft struct {
	ID      string
	Date    string
	Project string
	Author  string
	Weather string

	// Free-text structured fields as typed on the form.
	CrewText       string
	EquipmentText  string
	ActivitiesText string
	QuantitiesText string
	SubsText       string
	Safety         string
	IssuesDelays   string

	Notes      string
	Transcript string
	Audio      media.File
	Photos     []media.File

	// AutoExtract runs the extractor over notes and transcript on submit.
	AutoExtract bool

	// Values written by prefill, reused while the field text is unchanged.
	filledCrew       filled[normalize.KeyCount]
	filledEquipment  filled[normalize.KeyCount]
	filledActivities filled[normalize.Activity]
	filledQuantities filled[normalize.Quantity]
}

// filled remembers the structured value behind a prefilled text field. The
// text formats are lossy for units with spaces or digits and for activity
// locations.
type filled[T any] struct {
	text  string
	items []T
	ok    bool
}

func fill[T any](items []T, text string) filled[T] {
	return filled[T]{text: text, items: slices.Clone(items), ok: true}
}

// resolve returns the prefilled items when text still matches what prefill
// wrote, ignoring line endings and surrounding space, and parses text
// otherwise.
func (f filled[T]) resolve(text string, parse func(string) []T) []T {
	if f.ok && sameText(f.text, text) {
		return slices.Clone(f.items)
	}
	return parse(text)
}

func sameText(a, b string) bool {
	clean := func(s string) string {
		return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	}
	return clean(a) == clean(b)
}

// NewDraft returns an empty draft with a fresh ID.
func NewDraft() Draft {
	return Draft{ID: ulid.Make().String(), AutoExtract: true}
}

// Clone returns a copy of d that shares no slices with it.
func (d Draft) Clone() Draft {
	d.Photos = slices.Clone(d.Photos)
	return d
}

// Manual parses the typed structured fields. Fields still holding the text
// prefill wrote yield the extracted values unchanged.
func (d Draft) Manual() report.Manual {
	parseCrew := func(s string) []normalize.KeyCount { return normalize.ParseKeyCounts(s, normalize.Crew) }
	parseEquipment := func(s string) []normalize.KeyCount { return normalize.ParseKeyCounts(s, normalize.Equipment) }
	return report.Manual{
		CrewCounts:   d.filledCrew.resolve(d.CrewText, parseCrew),
		Equipment:    d.filledEquipment.resolve(d.EquipmentText, parseEquipment),
		Activities:   d.filledActivities.resolve(d.ActivitiesText, normalize.ParseActivities),
		Quantities:   d.filledQuantities.resolve(d.QuantitiesText, normalize.ParseQuantities),
		Safety:       d.Safety,
		IssuesDelays: d.IssuesDelays,
	}
}

// ExtractionInput is the text handed to the extractor.
func (d Draft) ExtractionInput() string {
	var parts []string
	for _, s := range []string{d.Notes, d.Transcript} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// normalizeHeader fills in the date and checks the header fields. An empty
// project list accepts any project.
func (d *Draft) normalizeHeader(now time.Time, projects []string) error {
	d.Date = strings.TrimSpace(d.Date)
	d.Project = strings.TrimSpace(d.Project)
	if d.Date == "" {
		d.Date = now.Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, d.Date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, d.Date)
	}
	if len(projects) > 0 && !slices.Contains(projects, d.Project) {
		return fmt.Errorf("%w: %q", ErrUnknownProject, d.Project)
	}
	return nil
}

// prefill writes extracted values into the empty text fields of d.
func (d *Draft) prefill(e report.ExtractedFields) {
	setText := func(dst *string, v string) bool {
		if strings.TrimSpace(*dst) != "" || strings.TrimSpace(v) == "" {
			return false
		}
		*dst = v
		return true
	}
	if setText(&d.CrewText, normalize.FormatKeyCounts(e.CrewCounts)) {
		d.filledCrew = fill(e.CrewCounts, d.CrewText)
	}
	if setText(&d.EquipmentText, normalize.FormatKeyCounts(e.Equipment)) {
		d.filledEquipment = fill(e.Equipment, d.EquipmentText)
	}
	if setText(&d.ActivitiesText, normalize.FormatActivities(e.Activities)) {
		d.filledActivities = fill(e.Activities, d.ActivitiesText)
	}
	if setText(&d.QuantitiesText, normalize.FormatQuantities(e.Quantities)) {
		d.filledQuantities = fill(e.Quantities, d.QuantitiesText)
	}
	setText(&d.Safety, e.Safety)
	setText(&d.IssuesDelays, e.IssuesDelays)
}
