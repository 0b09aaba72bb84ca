package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dcarowpilot/daily-report-ai/internal/media"
	"github.com/dcarowpilot/daily-report-ai/internal/report"
)

type mockTranscriber struct {
	text  string
	err   error
	calls int
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audio media.File) (string, error) {
	m.calls++
	return m.text, m.err
}

type mockExtractor struct {
	fields report.ExtractedFields
	err    error
	inputs []string
}

func (m *mockExtractor) Extract(ctx context.Context, text string) (report.ExtractedFields, error) {
	m.inputs = append(m.inputs, text)
	if m.err != nil {
		return report.EmptyExtraction(), m.err
	}
	return m.fields, nil
}

// mockUploader fails any path containing one of failOn.
type mockUploader struct {
	mu     sync.Mutex
	failOn []string
	puts   map[string]int
}

func (m *mockUploader) Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.failOn {
		if strings.Contains(objectPath, f) {
			return "", errors.New("bucket unavailable")
		}
	}
	if m.puts == nil {
		m.puts = map[string]int{}
	}
	m.puts[bucket+"/"+objectPath]++
	return "https://media.test/" + bucket + "/" + objectPath, nil
}

type mockStore struct {
	err     error
	reports []*report.StructuredReport
}

func (m *mockStore) InsertReport(ctx context.Context, r *report.StructuredReport) error {
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, r)
	return nil
}

func photo(name string) media.File {
	return media.File{Name: name, ContentType: "image/jpeg", Data: []byte("jpeg:" + name)}
}

func audio() media.File {
	return media.File{Name: "note.webm", ContentType: "audio/webm", Data: []byte("webm")}
}
