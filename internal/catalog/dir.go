package catalog

import (
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/banshee-data/tryon/internal/monitoring"
)

// DirCatalog serves assets from Root/<folder>/*.{png,jpg,gif,webp}.
type DirCatalog struct {
	Root string
	// BaseURL, when set, prefixes item sources so browsers can fetch them
	// from a static file handler. Otherwise Src is the file path.
	BaseURL string
}

// NewDirCatalog returns a catalog rooted at root.
func NewDirCatalog(root, baseURL string) *DirCatalog {
	return &DirCatalog{Root: root, BaseURL: strings.TrimSuffix(baseURL, "/")}
}

func (c *DirCatalog) List(ctx context.Context, folder string) ([]Item, error) {
	if err := ValidateFolder(folder); err != nil {
		return nil, err
	}

	dir := filepath.Join(c.Root, filepath.FromSlash(folder))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		format := formatOf(e.Name())
		if format == "" {
			continue
		}

		key := path.Join(folder, e.Name())
		item := Item{PublicID: publicID(key), Src: c.src(key, dir, e.Name()), Format: format}
		if w, h, err := dimensions(filepath.Join(dir, e.Name())); err == nil {
			item.Width, item.Height = w, h
		} else {
			monitoring.Logf("[catalog] skipping dimensions for %s: %v", key, err)
		}
		items = append(items, item)
		if len(items) == MaxItems {
			break
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].PublicID < items[j].PublicID })
	return items, nil
}

func (c *DirCatalog) src(key, dir, name string) string {
	if c.BaseURL == "" {
		return filepath.Join(dir, name)
	}
	u := c.BaseURL
	for _, seg := range strings.Split(key, "/") {
		u += "/" + url.PathEscape(seg)
	}
	return u
}

func dimensions(file string) (int, int, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
