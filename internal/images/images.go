// Package images resolves image locators into inline bytes for the model
// gateway. A locator is a data URI, a local file path, or an http(s) URL
// pointing at already-stored image bytes; storage itself lives elsewhere.
package images

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PierreDenaes/deploy-sub002/internal/config"
	"github.com/PierreDenaes/deploy-sub002/internal/llm"
)

// Resolver turns an image locator into image data, capping the size of
// whatever it reads.
type Resolver struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewResolver builds a resolver from config, falling back to an 8 MiB cap
// and a 10s fetch timeout when unset.
func NewResolver(cfg config.Images) *Resolver {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 8 << 20
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &Resolver{
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		maxBytes:   cfg.MaxBytes,
	}
}

// Resolve fetches the bytes behind locator. The MIME type comes from the
// locator when it declares one, otherwise from sniffing the bytes.
func (r *Resolver) Resolve(ctx context.Context, locator string) (*llm.ImageData, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, fmt.Errorf("empty image locator")
	}

	switch {
	case strings.HasPrefix(locator, "data:"):
		return r.fromDataURI(locator)
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return r.fromURL(ctx, locator)
	default:
		return r.fromFile(locator)
	}
}

func (r *Resolver) fromDataURI(uri string) (*llm.ImageData, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data URI must be base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", r.maxBytes)
	}
	return imageData(data, strings.TrimSuffix(meta, ";base64"))
}

func (r *Resolver) fromFile(path string) (*llm.ImageData, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	if info.Size() > r.maxBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes", path, r.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return imageData(data, "")
}

func (r *Resolver) fromURL(ctx context.Context, url string) (*llm.ImageData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("image at %s exceeds %d bytes", url, r.maxBytes)
	}
	return imageData(data, resp.Header.Get("Content-Type"))
}

// imageData wraps the bytes, sniffing the MIME type when the hint is
// missing or not an image type.
func imageData(data []byte, mime string) (*llm.ImageData, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image is empty")
	}
	mime, _, _ = strings.Cut(mime, ";")
	mime = strings.TrimSpace(mime)
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return &llm.ImageData{MIME: mime, Bytes: data}, nil
}
