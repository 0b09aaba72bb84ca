// Package ingest turns a submission draft into a persisted daily report.
//
// A Pipeline runs one submission through transcription, extraction,
// normalization, merging, media upload, assembly and persistence. Only the
// final store insert can fail a submission; every other collaborator
// failure is absorbed into an empty value plus a Notice.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dcarowpilot/daily-report-ai/internal/media"
	"github.com/dcarowpilot/daily-report-ai/internal/normalize"
	"github.com/dcarowpilot/daily-report-ai/internal/observe"
	"github.com/dcarowpilot/daily-report-ai/internal/report"
)

// Step names used in StepResult, Notice and metrics.
const (
	StepTranscribe = "transcribe"
	StepExtract    = "extract"
	StepUpload     = "upload"
	StepPersist    = "persist"
)

// ErrPersist wraps the store error of a failed submission.
var ErrPersist = errors.New("saving report failed")

// Transcriber converts recorded audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio media.File) (string, error)
}

// Extractor infers structured fields from free text. Implementations return
// every list present even when nothing was found.
type Extractor interface {
	Extract(ctx context.Context, text string) (report.ExtractedFields, error)
}

// Uploader stores bytes and returns their URL. Writing the same path twice
// replaces the first object.
type Uploader interface {
	Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error)
}

// Store appends a finished report.
type Store interface {
	InsertReport(ctx context.Context, r *report.StructuredReport) error
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Notice reports a non-fatal step failure.
type Notice struct {
	Step string
	Err  error
}

func (n Notice) String() string {
	return n.Step + ": " + n.Err.Error()
}

// Result holds the outcome of one submission.
type Result struct {
	DraftID string
	// Record is nil unless the submission was persisted.
	Record     *report.StructuredReport
	Transcript string
	Steps      []StepResult
	Notices    []Notice
	State      State
	Err        error
}

func (r *Result) notice(step string, err error) {
	log.Printf("ingest: %s degraded: %v", step, err)
	r.Notices = append(r.Notices, Notice{Step: step, Err: err})
}

// Options configures a Pipeline. Transcriber and Extractor may be nil.
type Options struct {
	Transcriber Transcriber
	Extractor   Extractor
	Uploader    Uploader
	Store       Store
	AudioBucket string
	PhotoBucket string
	// UploadConcurrency bounds parallel photo uploads. Default: 4.
	UploadConcurrency int
	Metrics           *observe.Metrics
}

// Pipeline runs submissions. It holds no per-submission state and is safe
// for concurrent use.
type Pipeline struct {
	transcriber Transcriber
	extractor   Extractor
	uploader    Uploader
	store       Store
	audioBucket string
	photoBucket string
	uploadLimit int
	metrics     *observe.Metrics
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		transcriber: opts.Transcriber,
		extractor:   opts.Extractor,
		uploader:    opts.Uploader,
		store:       opts.Store,
		audioBucket: opts.AudioBucket,
		photoBucket: opts.PhotoBucket,
		uploadLimit: opts.UploadConcurrency,
		metrics:     opts.Metrics,
	}
	if p.audioBucket == "" {
		p.audioBucket = "daily-audio"
	}
	if p.photoBucket == "" {
		p.photoBucket = "daily-photos"
	}
	if p.uploadLimit <= 0 {
		p.uploadLimit = 4
	}
	return p
}

// Run executes one submission of d. onState, if non-nil, is called on every
// state transition. The draft's date and project must already be validated.
func (p *Pipeline) Run(ctx context.Context, d Draft, onState func(State)) *Result {
	start := time.Now()
	r := &Result{DraftID: d.ID}
	enter := func(s State) {
		r.State = s
		if onState != nil {
			onState(s)
		}
	}

	// Step 1: Transcribe
	if !d.Audio.Empty() && strings.TrimSpace(d.Transcript) == "" && p.transcriber != nil {
		enter(Transcribing)
	}
	r.Transcript = p.transcribe(ctx, d, r)

	// Step 2: Extract
	d.Transcript = r.Transcript
	if d.AutoExtract && p.extractor != nil && d.ExtractionInput() != "" {
		enter(Extracting)
	}
	extracted := p.extract(ctx, d, r)

	// Step 3: Normalize
	enter(Normalizing)
	manual := d.Manual()
	subs := normalize.ParseList(d.SubsText)

	// Step 4: Merge
	enter(Merging)
	merged := report.Merge(manual, extracted)

	// Step 5: Upload media
	enter(Uploading)
	photoURLs, audioURL := p.uploadMedia(ctx, d, r)

	// Step 6: Assemble
	enter(Assembling)
	rec := report.Assemble(report.Inputs{
		ID:              d.ID,
		Date:            d.Date,
		Project:         d.Project,
		Author:          strings.TrimSpace(d.Author),
		Weather:         strings.TrimSpace(d.Weather),
		Merged:          merged,
		SubsPresent:     subs,
		PhotoURLs:       photoURLs,
		NotesRaw:        d.Notes,
		VoiceTranscript: r.Transcript,
		AudioURL:        audioURL,
	})

	// Step 7: Persist
	enter(Persisting)
	stepStart := time.Now()
	err := errors.New("no store configured")
	if p.store != nil {
		err = p.store.InsertReport(ctx, rec)
	}
	p.recordStep(ctx, StepPersist, stepStart, err != nil)
	if err != nil {
		r.Err = fmt.Errorf("%w: %w", ErrPersist, err)
		r.Steps = append(r.Steps, StepResult{Name: StepPersist, Err: err})
		log.Printf("ingest: saving report %s failed: %v", d.ID, err)
		enter(Failed)
		p.recordSubmission(ctx, "failed", start)
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    StepPersist,
		Summary: fmt.Sprintf("Saved report %s for %s on %s", rec.ID, rec.Project, rec.Date),
	})

	r.Record = rec
	enter(Done)
	p.recordSubmission(ctx, "ok", start)
	return r
}

// transcribe returns d's transcript, transcribing its audio when no
// transcript exists yet. Failures yield "".
func (p *Pipeline) transcribe(ctx context.Context, d Draft, r *Result) string {
	if t := strings.TrimSpace(d.Transcript); t != "" {
		r.Steps = append(r.Steps, StepResult{Name: StepTranscribe, Summary: "Using existing transcript"})
		return d.Transcript
	}
	if d.Audio.Empty() {
		r.Steps = append(r.Steps, StepResult{Name: StepTranscribe, Summary: "No audio"})
		return ""
	}
	if p.transcriber == nil {
		r.Steps = append(r.Steps, StepResult{Name: StepTranscribe, Summary: "Skipped: transcription not configured"})
		return ""
	}

	start := time.Now()
	text, err := p.transcriber.Transcribe(ctx, d.Audio)
	p.recordStep(ctx, StepTranscribe, start, err != nil)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: StepTranscribe, Err: err})
		r.notice(StepTranscribe, err)
		return ""
	}
	text = strings.TrimSpace(text)
	r.Steps = append(r.Steps, StepResult{
		Name:    StepTranscribe,
		Summary: fmt.Sprintf("Transcribed %d characters", len(text)),
	})
	return text
}

// extract runs the extractor when enabled. Skipped and failed extractions
// both yield report.EmptyExtraction.
func (p *Pipeline) extract(ctx context.Context, d Draft, r *Result) report.ExtractedFields {
	input := d.ExtractionInput()
	switch {
	case !d.AutoExtract:
		r.Steps = append(r.Steps, StepResult{Name: StepExtract, Summary: "Skipped: auto-fill off"})
		return report.EmptyExtraction()
	case p.extractor == nil:
		r.Steps = append(r.Steps, StepResult{Name: StepExtract, Summary: "Skipped: extraction not configured"})
		return report.EmptyExtraction()
	case input == "":
		r.Steps = append(r.Steps, StepResult{Name: StepExtract, Summary: "Skipped: no notes or transcript"})
		return report.EmptyExtraction()
	}

	start := time.Now()
	fields, err := p.extractor.Extract(ctx, input)
	p.recordStep(ctx, StepExtract, start, err != nil)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: StepExtract, Err: err})
		r.notice(StepExtract, err)
		return report.EmptyExtraction()
	}
	fields = fields.Complete()
	r.Steps = append(r.Steps, StepResult{
		Name: StepExtract,
		Summary: fmt.Sprintf("Extracted %d crew, %d equipment, %d activities, %d quantities",
			len(fields.CrewCounts), len(fields.Equipment), len(fields.Activities), len(fields.Quantities)),
	})
	return fields
}

// uploadMedia uploads photos in parallel and the audio alongside them.
// Failed photos are omitted; the rest keep their input order.
func (p *Pipeline) uploadMedia(ctx context.Context, d Draft, r *Result) ([]string, string) {
	if len(d.Photos) == 0 && d.Audio.Empty() {
		r.Steps = append(r.Steps, StepResult{Name: StepUpload, Summary: "No media"})
		return []string{}, ""
	}
	if p.uploader == nil {
		err := errors.New("no uploader configured")
		r.Steps = append(r.Steps, StepResult{Name: StepUpload, Err: err})
		r.notice(StepUpload, err)
		return []string{}, ""
	}

	start := time.Now()
	urls := make([]string, len(d.Photos))
	errs := make([]error, len(d.Photos))
	var audioURL string
	var audioErr error

	// Workers never return an error so one failure does not cancel the rest.
	var g errgroup.Group
	g.SetLimit(p.uploadLimit)
	for i, photo := range d.Photos {
		g.Go(func() error {
			objectPath := PhotoPath(d.Date, d.ID, i, photo)
			urls[i], errs[i] = p.put(ctx, p.photoBucket, objectPath, photo, "photo")
			return nil
		})
	}
	if !d.Audio.Empty() {
		g.Go(func() error {
			audioURL, audioErr = p.put(ctx, p.audioBucket, AudioPath(d.Date, d.ID, d.Audio), d.Audio, "audio")
			return nil
		})
	}
	_ = g.Wait()

	photoURLs := make([]string, 0, len(urls))
	failed := 0
	for i, u := range urls {
		if errs[i] != nil {
			failed++
			r.notice(StepUpload, fmt.Errorf("photo %d (%s): %w", i+1, d.Photos[i].FileName("photo"), errs[i]))
			continue
		}
		photoURLs = append(photoURLs, u)
	}
	if audioErr != nil {
		failed++
		r.notice(StepUpload, fmt.Errorf("audio: %w", audioErr))
		audioURL = ""
	}
	p.recordStep(ctx, StepUpload, start, failed > 0)

	summary := fmt.Sprintf("Uploaded %d/%d photos", len(photoURLs), len(d.Photos))
	if !d.Audio.Empty() {
		if audioURL != "" {
			summary += " and audio"
		} else {
			summary += "; audio failed"
		}
	}
	r.Steps = append(r.Steps, StepResult{Name: StepUpload, Summary: summary})
	return photoURLs, audioURL
}

func (p *Pipeline) put(ctx context.Context, bucket, objectPath string, f media.File, kind string) (string, error) {
	u, err := p.uploader.Put(ctx, bucket, objectPath, f.Data, f.ContentType)
	if err != nil {
		return "", err
	}
	if u == "" {
		return "", fmt.Errorf("upload of %s returned no URL", objectPath)
	}
	if p.metrics != nil {
		p.metrics.RecordMedia(ctx, kind, len(f.Data))
	}
	return u, nil
}

// PhotoPath is the object path of the i-th (zero-based) photo of a draft.
func PhotoPath(date, draftID string, i int, f media.File) string {
	return fmt.Sprintf("%s/%s/photo_%d%s", date, draftID, i+1, f.Extension())
}

// AudioPath is the object path of a draft's voice note.
func AudioPath(date, draftID string, f media.File) string {
	return fmt.Sprintf("%s/%s/audio%s", date, draftID, f.Extension())
}

func (p *Pipeline) recordStep(ctx context.Context, step string, start time.Time, failed bool) {
	if p.metrics != nil {
		p.metrics.RecordStep(ctx, step, time.Since(start), failed)
	}
}

func (p *Pipeline) recordSubmission(ctx context.Context, status string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordSubmission(ctx, status, time.Since(start))
	}
}
