package ingest

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dcarowpilot/daily-report-ai/internal/media"
	"github.com/dcarowpilot/daily-report-ai/internal/normalize"
	"github.com/dcarowpilot/daily-report-ai/internal/report"
)

var testProjects = []string{"Harbor Point Tower", "Route 9 Bridge"}

func newTestSession(opts Options) *Session {
	s := NewSession(New(opts), testProjects)
	s.now = func() time.Time { return time.Date(2026, 10, 18, 7, 30, 0, 0, time.UTC) }
	return s
}

func fillDraft(d *Draft) {
	d.Project = "Route 9 Bridge"
	d.Author = "J. Rivera"
	d.CrewText = "Carpenters:6"
	d.Notes = "Poured deck section 3"
	d.Photos = []media.File{photo("a.jpg"), photo("b.jpg")}
}

func TestSubmitSuccessResetsDraft(t *testing.T) {
	store := &mockStore{}
	s := newTestSession(Options{Uploader: &mockUploader{}, Store: store})
	s.Update(fillDraft)
	before := s.Draft().ID

	r, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Record.Date != "2026-10-18" {
		t.Errorf("expected date to default to today, got %q", r.Record.Date)
	}
	if s.State() != Done {
		t.Errorf("expected state done, got %s", s.State())
	}

	d := s.Draft()
	if d.ID == before || d.ID == "" {
		t.Error("expected a fresh draft id")
	}
	if d.CrewText != "" || d.Notes != "" || len(d.Photos) != 0 || d.Project != "" {
		t.Errorf("expected empty draft, got %+v", d)
	}
	if s.LastResult() != r {
		t.Error("expected last result to be recorded")
	}
}

func TestSubmitPersistFailureKeepsDraft(t *testing.T) {
	store := &mockStore{err: errors.New("disk full")}
	s := newTestSession(Options{
		Transcriber: &mockTranscriber{text: "deck poured"},
		Uploader:    &mockUploader{},
		Store:       store,
	})
	s.Update(fillDraft)
	s.AttachAudio(audio())
	before := s.Draft()

	_, err := s.Submit(context.Background())
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected persist error, got %v", err)
	}
	if s.State() != Failed {
		t.Errorf("expected state failed, got %s", s.State())
	}
	if len(store.reports) != 0 {
		t.Error("expected no stored record")
	}

	after := s.Draft()
	if after.ID != before.ID || after.CrewText != "Carpenters:6" || len(after.Photos) != 2 {
		t.Errorf("expected draft to be retained, got %+v", after)
	}
	if after.Transcript != "deck poured" {
		t.Errorf("expected transcript to be kept for retry, got %q", after.Transcript)
	}
}

func TestSubmitRetryAfterFailure(t *testing.T) {
	tr := &mockTranscriber{text: "deck poured"}
	store := &mockStore{err: errors.New("timeout")}
	s := newTestSession(Options{Transcriber: tr, Uploader: &mockUploader{}, Store: store})
	s.Update(fillDraft)
	s.AttachAudio(audio())
	id := s.Draft().ID

	s.Submit(context.Background())
	store.err = nil
	r, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Record.ID != id {
		t.Errorf("expected record id %s, got %s", id, r.Record.ID)
	}
	if tr.calls != 1 {
		t.Errorf("expected one transcription across retries, got %d", tr.calls)
	}
}

func TestSubmitRejectsUnknownProject(t *testing.T) {
	s := newTestSession(Options{Uploader: &mockUploader{}, Store: &mockStore{}})
	s.Update(func(d *Draft) { d.Project = "Moon Base" })

	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrUnknownProject) {
		t.Errorf("expected unknown project error, got %v", err)
	}
	if s.Draft().Project != "Moon Base" {
		t.Error("expected draft to be kept")
	}
}

func TestSubmitRejectsInvalidDate(t *testing.T) {
	s := newTestSession(Options{Uploader: &mockUploader{}, Store: &mockStore{}})
	s.Update(func(d *Draft) {
		d.Project = "Route 9 Bridge"
		d.Date = "18/10/2026"
	})

	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected invalid date error, got %v", err)
	}
}

// blockingStore holds InsertReport until release is closed.
type blockingStore struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) InsertReport(ctx context.Context, r *report.StructuredReport) error {
	close(b.entered)
	<-b.release
	return nil
}

func TestSubmitWhileBusy(t *testing.T) {
	store := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	s := newTestSession(Options{Uploader: &mockUploader{}, Store: store})
	s.Update(fillDraft)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	<-store.entered

	if s.State() != Persisting {
		t.Errorf("expected state persisting, got %s", s.State())
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("expected busy error, got %v", err)
	}
	if err := s.Update(func(d *Draft) { d.Notes = "late edit" }); !errors.Is(err, ErrBusy) {
		t.Errorf("expected busy error on update, got %v", err)
	}

	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Draft().Notes != "" {
		t.Error("expected reset draft after success")
	}
}

func TestUpdateKeepsID(t *testing.T) {
	s := newTestSession(Options{})
	id := s.Draft().ID
	s.Update(func(d *Draft) { d.ID = "hijack" })
	if s.Draft().ID != id {
		t.Error("expected draft id to be immutable")
	}
}

func TestDraftCopyIsIsolated(t *testing.T) {
	s := newTestSession(Options{})
	s.Update(fillDraft)
	d := s.Draft()
	d.Photos[0] = photo("changed.jpg")
	if s.Draft().Photos[0].Name != "a.jpg" {
		t.Error("expected Draft to return a copy")
	}
}

func TestPrefillFillsOnlyEmptyFields(t *testing.T) {
	ext := &mockExtractor{fields: report.ExtractedFields{
		CrewCounts: normalize.ParseKeyCounts("Carpenters:5, Laborers:3", normalize.Crew),
		Equipment:  normalize.ParseKeyCounts("Crane:1", normalize.Equipment),
		Activities: []normalize.Activity{{Description: "Set girders"}},
		Quantities: normalize.ParseQuantities("Concrete CY: 35"),
		Safety:     "Toolbox talk",
	}}
	tr := &mockTranscriber{text: "set girders at pier two"}
	s := newTestSession(Options{Transcriber: tr, Extractor: ext})
	s.Update(fillDraft)
	s.AttachAudio(audio())

	notices, err := s.Prefill(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notices) != 0 {
		t.Errorf("expected no notices, got %v", notices)
	}

	d := s.Draft()
	if d.CrewText != "Carpenters:6" {
		t.Errorf("expected typed crew to be kept, got %q", d.CrewText)
	}
	if d.EquipmentText != "Crane:1" {
		t.Errorf("expected equipment prefill, got %q", d.EquipmentText)
	}
	if d.QuantitiesText != "Concrete CY: 35" {
		t.Errorf("expected quantities prefill, got %q", d.QuantitiesText)
	}
	if d.ActivitiesText != "Set girders" || d.Safety != "Toolbox talk" {
		t.Errorf("unexpected prefill %q, %q", d.ActivitiesText, d.Safety)
	}
	if d.Transcript != "set girders at pier two" {
		t.Errorf("expected transcript, got %q", d.Transcript)
	}
	if ext.inputs[0] != "Poured deck section 3\n\nset girders at pier two" {
		t.Errorf("unexpected extraction input %q", ext.inputs[0])
	}
	if s.State() != Idle {
		t.Errorf("expected state idle, got %s", s.State())
	}

	manual := d.Manual()
	if !normalizeRoundTrips(manual.Equipment, ext.fields.Equipment) {
		t.Errorf("expected prefilled text to parse back, got %v", manual.Equipment)
	}
}

func normalizeRoundTrips(got, want []normalize.KeyCount) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestPrefilledFieldsKeepExtractedValues(t *testing.T) {
	fields := report.ExtractedFields{
		Activities: []normalize.Activity{{Location: "Pier 2", Description: "Set girders"}},
		Quantities: []normalize.Quantity{
			{Item: "Concrete", Unit: "cubic yards", Value: normalize.Number(35)},
			{Item: "Excavation", Unit: "m3", Value: normalize.Number(120)},
		},
	}.Complete()
	store := &mockStore{}
	s := newTestSession(Options{Extractor: &mockExtractor{fields: fields}, Uploader: &mockUploader{}, Store: store})
	s.Update(func(d *Draft) {
		d.Project = "Route 9 Bridge"
		d.Notes = "35 cubic yards of concrete, girders set at pier 2"
	})
	if _, err := s.Prefill(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Browsers post textareas back with CRLF line endings.
	s.Update(func(d *Draft) {
		d.QuantitiesText = strings.ReplaceAll(d.QuantitiesText, "\n", "\r\n")
		d.AutoExtract = false
	})

	r, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(r.Record.Quantities, fields.Quantities) {
		t.Errorf("expected extracted quantities %v, got %v", fields.Quantities, r.Record.Quantities)
	}
	if !reflect.DeepEqual(r.Record.Activities, fields.Activities) {
		t.Errorf("expected extracted activities %v, got %v", fields.Activities, r.Record.Activities)
	}
}

func TestEditedPrefillIsParsed(t *testing.T) {
	fields := report.ExtractedFields{
		Quantities: []normalize.Quantity{{Item: "Concrete", Unit: "cubic yards", Value: normalize.Number(35)}},
	}.Complete()
	s := newTestSession(Options{Extractor: &mockExtractor{fields: fields}})
	s.Update(func(d *Draft) { d.Notes = "35 cubic yards of concrete" })
	s.Prefill(context.Background())
	s.Update(func(d *Draft) { d.QuantitiesText = "Concrete CY: 40" })

	got := s.Draft().Manual().Quantities
	want := []normalize.Quantity{{Item: "Concrete", Unit: "CY", Value: normalize.Number(40)}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPrefillExtractionFailure(t *testing.T) {
	s := newTestSession(Options{Extractor: &mockExtractor{err: errors.New("bad json")}})
	s.Update(fillDraft)

	notices, err := s.Prefill(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notices) != 1 || notices[0].Step != StepExtract {
		t.Errorf("expected extract notice, got %v", notices)
	}
	if s.Draft().EquipmentText != "" {
		t.Error("expected no prefill after failed extraction")
	}
}

func TestResetReplacesDraft(t *testing.T) {
	s := newTestSession(Options{})
	s.Update(fillDraft)
	id := s.Draft().ID
	if err := s.Reset(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := s.Draft(); d.ID == id || d.Notes != "" {
		t.Errorf("expected new empty draft, got %+v", d)
	}
}

func TestStateString(t *testing.T) {
	if Persisting.String() != "persisting" || State(99).String() != "unknown" {
		t.Error("unexpected state names")
	}
	if !Failed.Terminal() || Uploading.Terminal() {
		t.Error("unexpected terminal states")
	}
}
