package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirBucketPutAndOverwrite(t *testing.T) {
	root := t.TempDir()
	b := NewDirBucket(root, "/media/")

	url, err := b.Put(context.Background(), "daily-photos", "2026-10-18/01J/photo_0.jpg", []byte("first"), "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "/media/daily-photos/2026-10-18/01J/photo_0.jpg" {
		t.Errorf("unexpected URL %q", url)
	}

	if _, err := b.Put(context.Background(), "daily-photos", "2026-10-18/01J/photo_0.jpg", []byte("second"), "image/jpeg"); err != nil {
		t.Fatalf("unexpected error on overwrite: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "daily-photos", "2026-10-18", "01J", "photo_0.jpg"))
	if err != nil {
		t.Fatalf("reading object: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected overwritten content, got %q", data)
	}
}

func TestDirBucketRejectsEscapingPaths(t *testing.T) {
	b := NewDirBucket(t.TempDir(), "/media")
	for _, p := range []string{"../secret", "a/../../b", "", "/"} {
		if _, err := b.Put(context.Background(), "daily-audio", p, []byte("x"), "text/plain"); err == nil {
			t.Errorf("expected error for path %q", p)
		}
	}
	if _, err := b.Put(context.Background(), "../up", "a.txt", []byte("x"), "text/plain"); err == nil {
		t.Error("expected error for bucket with separator")
	}
}

func TestHTTPBucketPut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/storage/v1/object/daily-audio/2026-10-18/01J/audio.wav" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-upsert") != "true" {
			t.Error("expected upsert header")
		}
		if r.Header.Get("Authorization") != "Bearer svc-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "wav" {
			t.Errorf("unexpected body %q", body)
		}
		w.Write([]byte(`{"Key": "daily-audio/2026-10-18/01J/audio.wav"}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_STORAGE_KEY", "svc-key")
	b := NewHTTPBucket(srv.URL, "TEST_STORAGE_KEY")
	url, err := b.Put(context.Background(), "daily-audio", "2026-10-18/01J/audio.wav", []byte("wav"), "audio/wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := srv.URL + "/storage/v1/object/public/daily-audio/2026-10-18/01J/audio.wav"
	if url != want {
		t.Errorf("expected %q, got %q", want, url)
	}
}

func TestHTTPBucketErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "Bucket not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	b := NewHTTPBucket(srv.URL, "UNSET_STORAGE_KEY")
	url, err := b.Put(context.Background(), "missing", "a.txt", []byte("x"), "")
	if err == nil || !strings.Contains(err.Error(), "Bucket not found") {
		t.Errorf("expected bucket error, got %v", err)
	}
	if url != "" {
		t.Errorf("expected empty URL on failure, got %q", url)
	}
}
