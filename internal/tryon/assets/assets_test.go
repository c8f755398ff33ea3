package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tryon/internal/httputil"
	"github.com/banshee-data/tryon/internal/security"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 212, G: 175, B: 55, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAsset_UsableAndAspect(t *testing.T) {
	t.Parallel()

	a := New("hoop", image.NewRGBA(image.Rect(0, 0, 40, 20)))
	assert.True(t, a.Usable())
	assert.Equal(t, 0.5, a.Aspect())

	var missing *Asset
	assert.False(t, missing.Usable())
	assert.False(t, Unavailable.Usable())
	assert.Equal(t, 0.0, Unavailable.Aspect())
	assert.False(t, (&Asset{ID: "empty", Image: image.NewRGBA(image.Rect(0, 0, 0, 5))}).Usable())
}

func TestSlot_TreatsUnavailableAsEmpty(t *testing.T) {
	t.Parallel()

	var s Slot
	assert.Nil(t, s.Load())

	a := New("stud", image.NewRGBA(image.Rect(0, 0, 8, 8)))
	s.Store(a)
	assert.Same(t, a, s.Load())

	prev := s.Swap(Unavailable)
	assert.Same(t, a, prev)
	assert.Nil(t, s.Load())

	s.Store(a)
	s.Store(nil)
	assert.Nil(t, s.Load())
}

func TestSlot_ConcurrentSwap(t *testing.T) {
	t.Parallel()

	var s Slot
	a := New("a", image.NewRGBA(image.Rect(0, 0, 4, 2)))
	b := New("b", image.NewRGBA(image.Rect(0, 0, 2, 4)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if (i+j)%2 == 0 {
					s.Store(a)
				} else {
					s.Store(b)
				}
				if got := s.Load(); got != nil {
					// Either asset in full, never a mix.
					assert.True(t, got == a || got == b)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestDecode(t *testing.T) {
	t.Parallel()

	a, err := Decode("pendant", bytes.NewReader(encodePNG(t, 30, 60)))
	require.NoError(t, err)
	assert.Equal(t, "pendant", a.ID)
	assert.Equal(t, 30, a.Width)
	assert.Equal(t, 60, a.Height)

	_, err = Decode("junk", strings.NewReader("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoader_HTTP(t *testing.T) {
	t.Parallel()

	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, "image/png", encodePNG(t, 20, 10)).
		AddResponse(http.StatusInternalServerError, "", nil)
	l := NewLoader(mock)

	a, err := l.Load(context.Background(), "https://cdn.example/trymygold/gold_earrings/jhumka.png")
	require.NoError(t, err)
	assert.Equal(t, "jhumka", a.ID)
	assert.Equal(t, 20, a.Width)

	assert.Same(t, Unavailable, l.LoadOrUnavailable(context.Background(), "https://cdn.example/broken.png"))
	assert.Equal(t, 2, mock.RequestCount())
}

func TestLoader_LocalFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "gold_necklace"), 0o755))
	file := filepath.Join(root, "gold_necklace", "choker.png")
	require.NoError(t, os.WriteFile(file, encodePNG(t, 12, 6), 0o644))

	l := NewLoader(nil)
	a, err := l.Load(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "choker", a.ID)

	a, err = l.Load(context.Background(), "file://"+file)
	require.NoError(t, err)
	assert.Equal(t, 12, a.Width)

	_, err = l.Load(context.Background(), filepath.Join(root, "missing.png"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Load(context.Background(), "https://cdn.example/x.png")
	assert.Error(t, err, "remote load without client must fail")

	_, err = l.Load(context.Background(), "ftp://cdn.example/x.png")
	assert.Error(t, err)
}

func TestLoader_RootConfinement(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "stud.png"), encodePNG(t, 4, 4), 0o644))

	l := NewLoader(nil)
	l.Root = root

	a, err := l.Load(context.Background(), "stud.png")
	require.NoError(t, err)
	assert.Equal(t, "stud", a.ID)

	_, err = l.Load(context.Background(), "../../etc/passwd")
	assert.ErrorContains(t, err, "outside asset root")

	_, err = l.Load(context.Background(), "/etc/passwd")
	assert.ErrorContains(t, err, "outside asset root")
}

func TestLoader_RootRejectsSymlinkEscape(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := filepath.Join(dir, "assets")
	private := filepath.Join(dir, "private")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(private, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(private, "secret.png"), encodePNG(t, 4, 4), 0o644))
	require.NoError(t, os.Symlink(private, filepath.Join(root, "linked")))

	l := NewLoader(nil)
	l.Root = root
	_, err := l.Load(context.Background(), "linked/secret.png")
	assert.ErrorIs(t, err, security.ErrOutsideRoot)
}

func TestLoader_PrefixMapsServedPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "gold_earrings"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "gold_earrings", "hoop.png"), encodePNG(t, 6, 3), 0o644))

	l := NewLoader(nil)
	l.Root = root
	l.Prefix = "/assets"

	a, err := l.Load(context.Background(), "/assets/gold_earrings/hoop.png")
	require.NoError(t, err)
	assert.Equal(t, "hoop", a.ID)
	assert.Equal(t, 6, a.Width)

	_, err = l.Load(context.Background(), "/assets/../../etc/passwd")
	assert.ErrorContains(t, err, "outside asset root")
}

func TestLoader_SizeLimit(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	file := filepath.Join(root, "big.png")
	require.NoError(t, os.WriteFile(file, encodePNG(t, 64, 64), 0o644))

	l := NewLoader(nil)
	l.MaxBytes = 16
	_, err := l.Load(context.Background(), file)
	assert.ErrorIs(t, err, httputil.ErrTooLarge)
}
