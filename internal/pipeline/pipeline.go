// Package pipeline wires the configured collaborators into an ingestion
// pipeline.
package pipeline

import (
	"fmt"
	"log"

	"github.com/dcarowpilot/daily-report-ai/internal/compose"
	"github.com/dcarowpilot/daily-report-ai/internal/config"
	"github.com/dcarowpilot/daily-report-ai/internal/extract"
	"github.com/dcarowpilot/daily-report-ai/internal/ingest"
	"github.com/dcarowpilot/daily-report-ai/internal/llm"
	"github.com/dcarowpilot/daily-report-ai/internal/observe"
	"github.com/dcarowpilot/daily-report-ai/internal/transcribe"
	"github.com/dcarowpilot/daily-report-ai/internal/upload"
)

// MediaURLPrefix is where the server mounts the directory bucket.
const MediaURLPrefix = "/media"

// New builds a pipeline from cfg. Disabled or unavailable transcription and
// extraction are left out, which the pipeline treats as skipped steps.
func New(cfg *config.Config, store ingest.Store, metrics *observe.Metrics) (*ingest.Pipeline, error) {
	uploader, err := NewUploader(cfg)
	if err != nil {
		return nil, err
	}

	opts := ingest.Options{
		Uploader:    uploader,
		Store:       store,
		AudioBucket: cfg.Storage.AudioBucket,
		PhotoBucket: cfg.Storage.PhotoBucket,
		Metrics:     metrics,
	}

	if t := NewTranscriber(cfg); t != nil {
		opts.Transcriber = t
	}
	if e := NewExtractor(cfg); e != nil {
		opts.Extractor = e
	}

	return ingest.New(opts), nil
}

// NewTranscriber returns the configured transcriber, or nil when
// transcription is disabled or unavailable.
func NewTranscriber(cfg *config.Config) transcribe.Transcriber {
	tc := cfg.Transcription
	if !tc.Enabled {
		log.Println("Transcription disabled")
		return nil
	}
	return transcribe.CreateTranscriber(tc.Provider, tc.Model, tc.Language, tc.WhisperURL, tc.APIKeyEnv, tc.OpenAIURL)
}

// NewComposer returns a report composer that summarises with the extraction
// LLM when one is available.
func NewComposer(cfg *config.Config) *compose.Composer {
	ec := cfg.Extraction
	if !ec.Enabled {
		return compose.NewComposer(nil)
	}
	return compose.NewComposer(llm.CreateProvider(ec.Provider, ec.Model, ec.OllamaURL, ec.OpenAIModel, ec.APIKeyEnv, ec.OpenAIURL))
}

// NewExtractor returns the configured extractor, or nil when extraction is
// disabled or no LLM provider is available.
func NewExtractor(cfg *config.Config) *extract.Extractor {
	ec := cfg.Extraction
	if !ec.Enabled {
		log.Println("Extraction disabled")
		return nil
	}
	provider := llm.CreateProvider(ec.Provider, ec.Model, ec.OllamaURL, ec.OpenAIModel, ec.APIKeyEnv, ec.OpenAIURL)
	if provider == nil {
		return nil
	}
	return extract.NewExtractor(provider, ec.MaxTokens)
}

// NewUploader returns the configured media store.
func NewUploader(cfg *config.Config) (upload.Uploader, error) {
	switch cfg.Storage.Provider {
	case "", "dir":
		return upload.NewDirBucket(cfg.MediaDir(), MediaURLPrefix), nil
	case "http":
		return upload.NewHTTPBucket(cfg.Storage.BaseURL, cfg.Storage.APIKeyEnv), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}
