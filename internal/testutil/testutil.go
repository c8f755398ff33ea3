// Package testutil provides shared test fixtures: encoded asset images,
// on-disk asset trees, landmark recordings and HTTP round trips.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/tryon/internal/tryon/landmarks"
)

// Gold is the fill colour of generated asset images.
var Gold = color.NRGBA{R: 212, G: 175, B: 55, A: 255}

// PNG returns a w x h PNG filled with Gold.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, Gold)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteAsset writes a w x h PNG asset at root/rel.
func WriteAsset(t testing.TB, root, rel string, w, h int) string {
	t.Helper()
	return WriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), PNG(t, w, h))
}

// WriteRecording encodes n frames from gen as JSON Lines at path.
func WriteRecording(t testing.TB, path string, gen *landmarks.SyntheticGenerator, n int) string {
	t.Helper()
	var buf bytes.Buffer
	enc := landmarks.NewEncoder(&buf)
	for i := 0; i < n; i++ {
		if err := enc.Encode(gen.NextFrame()); err != nil {
			t.Fatalf("encode frame %d: %v", i, err)
		}
	}
	return WriteFile(t, path, buf.Bytes())
}

// Serve runs one request through h and returns the recorded response.
func Serve(t testing.TB, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, r))
	return w
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}
