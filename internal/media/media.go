// Package media holds uploaded audio and photo payloads.
package media

import (
	"path"
	"strings"
)

// File is an in-memory upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Empty reports whether f carries no bytes.
func (f File) Empty() bool {
	return len(f.Data) == 0
}

var extensions = map[string]string{
	"audio/wav":       ".wav",
	"audio/x-wav":     ".wav",
	"audio/wave":      ".wav",
	"audio/webm":      ".webm",
	"audio/ogg":       ".ogg",
	"audio/mpeg":      ".mp3",
	"audio/mp4":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/heic":      ".heic",
	"image/webp":      ".webp",
	"text/plain":      ".txt",
	"application/pdf": ".pdf",
}

// Extension returns the file extension for f, preferring its content type
// and falling back to the extension of its name.
func (f File) Extension() string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(f.ContentType, ";", 2)[0]))
	if ext, ok := extensions[ct]; ok {
		return ext
	}
	return strings.ToLower(path.Ext(f.Name))
}

// FileName returns f.Name, or base plus the extension when the name is empty.
func (f File) FileName(base string) string {
	if f.Name != "" {
		return path.Base(f.Name)
	}
	return base + f.Extension()
}
