package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dcarowpilot/daily-report-ai/internal/ingest"
	"github.com/dcarowpilot/daily-report-ai/internal/media"
	"github.com/dcarowpilot/daily-report-ai/internal/report"
)

type blockingStore struct {
	release chan struct{}
}

func (s blockingStore) InsertReport(ctx context.Context, r *report.StructuredReport) error {
	<-s.release
	return nil
}

func TestLoadDraft(t *testing.T) {
	session := ingest.NewSession(ingest.New(ingest.Options{}), nil)
	id := session.Draft().ID

	fields := ingest.Draft{ID: "ignored", Project: "Route 9 Bridge", CrewText: "Carpenters:6"}
	photos := []media.File{{Name: "a.jpg", Data: []byte("a")}}
	voice := media.File{Name: "note.m4a", Data: []byte("audio")}
	if err := loadDraft(session, fields, photos, voice, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := session.Draft()
	if d.ID != id {
		t.Errorf("expected draft id %s to be kept, got %s", id, d.ID)
	}
	if d.CrewText != "Carpenters:6" || len(d.Photos) != 1 || d.AutoExtract {
		t.Errorf("unexpected draft %+v", d)
	}
	if d.Audio.Name != "note.m4a" || session.State() != ingest.Recording {
		t.Errorf("expected voice note to be attached, got %q in state %s", d.Audio.Name, session.State())
	}
}

func TestLoadDraftReportsBusySession(t *testing.T) {
	store := blockingStore{release: make(chan struct{})}
	session := ingest.NewSession(ingest.New(ingest.Options{Store: store}), nil)

	done := make(chan struct{})
	go func() {
		session.Submit(context.Background())
		close(done)
	}()
	defer func() {
		close(store.release)
		<-done
	}()

	deadline := time.Now().Add(5 * time.Second)
	for session.State() != ingest.Persisting {
		if time.Now().After(deadline) {
			t.Fatal("submission never reached persisting")
		}
		time.Sleep(time.Millisecond)
	}

	err := loadDraft(session, ingest.Draft{Project: "x"}, nil, media.File{}, true)
	if !errors.Is(err, ingest.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}
