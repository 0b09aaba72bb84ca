// Package upload stores report media in buckets and returns their URLs.
//
// Writes to an existing path replace its content, so re-uploading the same
// draft's media after a failed save does not leave duplicates behind.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Uploader stores bytes under bucket/path and returns a URL for them.
type Uploader interface {
	Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error)
}

// cleanObjectPath rejects absolute and escaping paths.
func cleanObjectPath(bucket, objectPath string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	p := path.Clean("/" + strings.ReplaceAll(objectPath, `\`, "/"))
	if p == "/" || strings.Contains(objectPath, "..") {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return strings.TrimPrefix(p, "/"), nil
}

// HTTPBucket talks to an object storage REST API that accepts
// POST /storage/v1/object/{bucket}/{path} with an upsert header and serves
// public objects under /storage/v1/object/public/{bucket}/{path}.
type HTTPBucket struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewHTTPBucket creates a bucket client, reading the service key from apiKeyEnv.
func NewHTTPBucket(baseURL, apiKeyEnv string) *HTTPBucket {
	return &HTTPBucket{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  os.Getenv(apiKeyEnv),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Put uploads data, replacing any existing object at the same path.
func (b *HTTPBucket) Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error) {
	p, err := cleanObjectPath(bucket, objectPath)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	endpoint := b.BaseURL + "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapePath(p)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
		req.Header.Set("apikey", b.APIKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("storage API returned %d: %s", resp.StatusCode, string(respBody))
	}

	return b.PublicURL(bucket, p), nil
}

// PublicURL returns the public URL of an object.
func (b *HTTPBucket) PublicURL(bucket, objectPath string) string {
	return b.BaseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapePath(objectPath)
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// DirBucket stores objects as files under Root/{bucket}/{path}. URLs are
// built from URLPrefix, which the web server mounts over Root.
type DirBucket struct {
	Root      string
	URLPrefix string
}

// NewDirBucket creates a directory-backed bucket store.
func NewDirBucket(root, urlPrefix string) *DirBucket {
	return &DirBucket{Root: root, URLPrefix: strings.TrimRight(urlPrefix, "/")}
}

// Put writes data atomically, replacing any existing file.
func (d *DirBucket) Put(ctx context.Context, bucket, objectPath string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := cleanObjectPath(bucket, objectPath)
	if err != nil {
		return "", err
	}

	target := filepath.Join(d.Root, bucket, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating bucket directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing object: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storing object: %w", err)
	}

	return d.URLPrefix + "/" + url.PathEscape(bucket) + "/" + escapePath(p), nil
}
