package images

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PierreDenaes/deploy-sub002/internal/config"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\nfakepixels")
	jpegBytes = []byte("\xff\xd8\xfffakepixels")
)

func TestResolve_DataURI(t *testing.T) {
	r := NewResolver(testConfig())
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)

	img, err := r.Resolve(context.Background(), uri)

	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, pngBytes, img.Bytes)
}

func TestResolve_DataURIWithoutMIME(t *testing.T) {
	r := NewResolver(testConfig())
	uri := "data:;base64," + base64.StdEncoding.EncodeToString(jpegBytes)

	img, err := r.Resolve(context.Background(), uri)

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIME)
}

func TestResolve_DataURIErrors(t *testing.T) {
	r := NewResolver(testConfig())

	tests := []struct {
		name    string
		locator string
	}{
		{"no comma", "data:image/png;base64"},
		{"not base64 encoded", "data:image/png,rawbytes"},
		{"invalid base64 payload", "data:image/png;base64,%%%%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.locator)
			assert.Error(t, err)
		})
	}
}

func TestResolve_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meal.jpg")
	require.NoError(t, os.WriteFile(path, jpegBytes, 0o644))

	r := NewResolver(testConfig())
	img, err := r.Resolve(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIME)
	assert.Equal(t, jpegBytes, img.Bytes)
}

func TestResolve_FileMissing(t *testing.T) {
	r := NewResolver(testConfig())

	_, err := r.Resolve(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))

	assert.ErrorContains(t, err, "failed to read image file")
}

func TestResolve_FileTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.png")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	cfg := testConfig()
	cfg.MaxBytes = 16
	r := NewResolver(cfg)

	_, err := r.Resolve(context.Background(), path)

	assert.ErrorContains(t, err, "exceeds 16 bytes")
}

func TestResolve_URL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		w.Write(pngBytes)
	}))
	defer server.Close()

	r := NewResolver(testConfig())
	img, err := r.Resolve(context.Background(), server.URL+"/meal.webp")

	require.NoError(t, err)
	// The server's declared type wins over sniffing.
	assert.Equal(t, "image/webp", img.MIME)
	assert.Equal(t, pngBytes, img.Bytes)
}

func TestResolve_URLSniffsNonImageContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(pngBytes)
	}))
	defer server.Close()

	r := NewResolver(testConfig())
	img, err := r.Resolve(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)
}

func TestResolve_URLTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(make([]byte, 64))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBytes = 16
	r := NewResolver(cfg)

	_, err := r.Resolve(context.Background(), server.URL)

	assert.ErrorContains(t, err, "exceeds 16 bytes")
}

func TestResolve_URLServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	r := NewResolver(testConfig())

	_, err := r.Resolve(context.Background(), server.URL)

	assert.ErrorContains(t, err, "404")
}

func TestResolve_EmptyLocator(t *testing.T) {
	r := NewResolver(testConfig())

	_, err := r.Resolve(context.Background(), "   ")

	assert.ErrorContains(t, err, "empty image locator")
}

func TestResolve_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	r := NewResolver(testConfig())

	_, err := r.Resolve(context.Background(), path)

	assert.ErrorContains(t, err, "image is empty")
}

func testConfig() config.Images {
	return config.Images{MaxBytes: 1 << 20, FetchTimeout: 2 * time.Second}
}
