package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/banshee-data/tryon/internal/httputil"
	"github.com/banshee-data/tryon/internal/monitoring"
	"github.com/banshee-data/tryon/internal/security"
)

// DefaultMaxBytes bounds a single asset download.
const DefaultMaxBytes = 16 << 20

// ErrUnsupportedFormat is returned for bytes no registered decoder accepts.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrNotFound is returned when a local asset path does not exist.
var ErrNotFound = errors.New("asset not found")

// Decode reads one image from r and wraps it as an Asset.
func Decode(id string, r io.Reader) (*Asset, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%s: %w", id, ErrUnsupportedFormat)
		}
		return nil, fmt.Errorf("failed to decode %s: %w", id, err)
	}
	a := New(id, img)
	if !a.Usable() {
		return nil, fmt.Errorf("%s: decoded %s image has no pixels", id, format)
	}
	return a, nil
}

// Loader fetches and decodes assets from http(s) URLs, file:// URLs or
// plain filesystem paths.
type Loader struct {
	Client   httputil.HTTPClient
	MaxBytes int64
	// Root, when set, confines plain paths and file:// URLs to a directory.
	Root string
	// Prefix maps plain paths that start with it, such as the URL path
	// Root is served under, onto Root.
	Prefix string
}

// NewLoader returns a Loader using client for remote assets.
func NewLoader(client httputil.HTTPClient) *Loader {
	return &Loader{Client: client, MaxBytes: DefaultMaxBytes}
}

// Load resolves src to a decoded asset.
func (l *Loader) Load(ctx context.Context, src string) (*Asset, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid asset source %q: %w", src, err)
	}

	var data []byte
	switch u.Scheme {
	case "http", "https":
		if l.Client == nil {
			return nil, fmt.Errorf("no HTTP client configured for %s", src)
		}
		data, _, err = httputil.Fetch(ctx, l.Client, src, l.maxBytes())
	case "file":
		data, err = l.readFile(u.Path)
	case "":
		p := src
		if l.Prefix != "" && strings.HasPrefix(p, l.Prefix) {
			p = strings.TrimLeft(strings.TrimPrefix(p, l.Prefix), "/")
		}
		data, err = l.readFile(p)
	default:
		return nil, fmt.Errorf("unsupported asset scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	a, err := Decode(assetID(u), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	monitoring.Logf("[assets] loaded %s (%dx%d, %d bytes)", a.ID, a.Width, a.Height, len(data))
	return a, nil
}

// LoadOrUnavailable is Load for callers that only need a renderable value:
// failures are logged and reported as Unavailable.
func (l *Loader) LoadOrUnavailable(ctx context.Context, src string) *Asset {
	a, err := l.Load(ctx, src)
	if err != nil {
		monitoring.Logf("[assets] %v", err)
		return Unavailable
	}
	return a
}

func (l *Loader) maxBytes() int64 {
	if l.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return l.MaxBytes
}

func (l *Loader) readFile(p string) ([]byte, error) {
	clean := filepath.Clean(p)
	if l.Root != "" {
		rel := clean
		if filepath.IsAbs(clean) {
			r, err := filepath.Rel(l.Root, clean)
			if err != nil {
				return nil, fmt.Errorf("%s: outside asset root", p)
			}
			rel = r
		}
		if !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("%s: outside asset root", p)
		}
		clean = filepath.Join(l.Root, rel)
		if err := security.ValidatePathWithinDirectory(clean, l.Root); err != nil {
			return nil, fmt.Errorf("%s: outside asset root: %w", p, err)
		}
	}

	info, err := os.Stat(clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if info.Size() > l.maxBytes() {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", p, httputil.ErrTooLarge, l.maxBytes())
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// assetID names an asset after the last element of its source.
func assetID(u *url.URL) string {
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	id := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if id == "" || id == "." || id == "/" {
		return u.String()
	}
	return id
}
