package testutil

import (
	"bytes"
	"errors"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/tryon/internal/tryon/landmarks"
)

func TestPNG(t *testing.T) {
	t.Parallel()

	img, err := png.Decode(bytes.NewReader(PNG(t, 6, 3)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 6 || b.Dy() != 3 {
		t.Errorf("bounds = %v, want 6x3", b)
	}
	if r, _, _, a := img.At(2, 1).RGBA(); r>>8 != uint32(Gold.R) || a>>8 != 255 {
		t.Errorf("pixel = %v, want gold", img.At(2, 1))
	}
}

func TestWriteAsset(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := WriteAsset(t, root, "gold_earrings/hoop.png", 4, 2)
	if want := filepath.Join(root, "gold_earrings", "hoop.png"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("stat: %v", err)
	}
}

func TestWriteRecording(t *testing.T) {
	t.Parallel()

	gen := landmarks.NewSyntheticGenerator(64, 48, 1)
	path := WriteRecording(t, filepath.Join(t.TempDir(), "rec.jsonl"), gen, 4)

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := landmarks.NewDecoder(f)
	for {
		if _, err := dec.Next(); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			t.Fatal(err)
		}
	}
	if dec.Count() != 4 {
		t.Errorf("frames = %d, want 4", dec.Count())
	}
}

func TestServe(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusTeapot)
		w.Write(b)
	})
	w := Serve(t, h, http.MethodPost, "/brew", []byte("chai"))
	AssertStatusCode(t, w.Code, http.StatusTeapot)
	if w.Body.String() != "chai" {
		t.Errorf("body = %q, want chai", w.Body.String())
	}

	w = Serve(t, h, http.MethodGet, "/", nil)
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}
