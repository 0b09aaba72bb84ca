// Package transcribe converts recorded audio to text.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/dcarowpilot/daily-report-ai/internal/media"
)

// ErrNoAudio is returned when there is nothing to transcribe.
var ErrNoAudio = errors.New("no audio to transcribe")

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio media.File) (string, error)
	IsConfigured() bool
}

// OpenAITranscriber uses the OpenAI audio transcription API.
type OpenAITranscriber struct {
	Model    string
	Language string
	APIKey   string
	client   oai.Client
}

// NewOpenAITranscriber creates a transcriber for the given model, reading the
// API key from apiKeyEnv. baseURL may be empty to use the public API.
func NewOpenAITranscriber(model, language, apiKeyEnv, baseURL string) *OpenAITranscriber {
	apiKey := os.Getenv(apiKeyEnv)
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 300 * time.Second}),
		option.WithMaxRetries(1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAITranscriber{
		Model:    model,
		Language: language,
		APIKey:   apiKey,
		client:   oai.NewClient(opts...),
	}
}

// IsConfigured checks if the API key is set.
func (o *OpenAITranscriber) IsConfigured() bool {
	return o.APIKey != ""
}

// Transcribe uploads audio and returns the recognized text.
func (o *OpenAITranscriber) Transcribe(ctx context.Context, audio media.File) (string, error) {
	if audio.Empty() {
		return "", ErrNoAudio
	}
	if o.APIKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audio.Data), audio.FileName("audio"), audio.ContentType),
		Model: oai.AudioModel(o.Model),
	}
	if o.Language != "" {
		params.Language = param.NewOpt(o.Language)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("OpenAI transcription error: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// WhisperServerTranscriber posts audio to a whisper.cpp server's /inference
// endpoint.
type WhisperServerTranscriber struct {
	BaseURL  string
	Language string
	client   *http.Client
}

// NewWhisperServerTranscriber creates a transcriber for a whisper.cpp server.
func NewWhisperServerTranscriber(baseURL, language string) *WhisperServerTranscriber {
	return &WhisperServerTranscriber{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Language: language,
		client:   &http.Client{Timeout: 300 * time.Second},
	}
}

// IsConfigured reports whether a server URL is set.
func (w *WhisperServerTranscriber) IsConfigured() bool {
	return w.BaseURL != ""
}

// Transcribe sends audio as multipart/form-data and returns the text.
func (w *WhisperServerTranscriber) Transcribe(ctx context.Context, audio media.File) (string, error) {
	if audio.Empty() {
		return "", ErrNoAudio
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", audio.FileName("audio"))
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio.Data); err != nil {
		return "", fmt.Errorf("whisper: write audio data: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisper: write format field: %w", err)
	}
	if w.Language != "" {
		if err := mw.WriteField("language", w.Language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.BaseURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("whisper: server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

// CreateTranscriber creates a transcriber based on configuration. It returns
// nil when the selected provider is not configured.
func CreateTranscriber(provider, model, language, whisperURL, apiKeyEnv, openaiBaseURL string) Transcriber {
	if strings.ToLower(provider) == "whisper" {
		t := NewWhisperServerTranscriber(whisperURL, language)
		if t.IsConfigured() {
			log.Printf("Using whisper server at %s", whisperURL)
			return t
		}
		log.Println("Whisper server URL not set, trying OpenAI fallback...")
	}

	t := NewOpenAITranscriber(model, language, apiKeyEnv, openaiBaseURL)
	if t.IsConfigured() {
		log.Printf("Using OpenAI transcription with model: %s", model)
		return t
	}

	log.Printf("No transcription provider available. Set %s or configure a whisper server.", apiKeyEnv)
	return nil
}
