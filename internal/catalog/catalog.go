// Package catalog lists the overlay assets available under a folder key,
// either from a local directory tree or from an S3 bucket prefix.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// MaxItems caps a single listing.
const MaxItems = 500

// ErrInvalidFolder is returned for folder keys that could escape the
// catalog root or contain unexpected characters.
var ErrInvalidFolder = errors.New("invalid folder key")

// Item describes one listed asset.
type Item struct {
	PublicID string `json:"public_id"`
	Src      string `json:"src"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Catalog lists assets by folder key. An unknown folder yields an empty
// list, not an error.
type Catalog interface {
	List(ctx context.Context, folder string) ([]Item, error)
}

// FolderKey joins a metal subcategory and jewelry category into the folder
// naming used by the asset store, e.g. ("gold", "earrings") -> "gold_earrings".
func FolderKey(sub, category string) string {
	return strings.ToLower(sub) + "_" + strings.ToLower(category)
}

var segmentRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateFolder checks a slash-separated folder key.
func ValidateFolder(folder string) error {
	if folder == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFolder)
	}
	if path.Clean(folder) != folder || strings.HasPrefix(folder, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidFolder, folder)
	}
	for _, seg := range strings.Split(folder, "/") {
		if seg == ".." || !segmentRE.MatchString(seg) {
			return fmt.Errorf("%w: %q", ErrInvalidFolder, folder)
		}
	}
	return nil
}

var imageExts = map[string]string{
	".png":  "png",
	".jpg":  "jpg",
	".jpeg": "jpg",
	".gif":  "gif",
	".webp": "webp",
}

// formatOf returns the short format name for an image file name, or "".
func formatOf(name string) string {
	return imageExts[strings.ToLower(path.Ext(name))]
}

// publicID strips the extension from a slash-separated key.
func publicID(key string) string {
	return strings.TrimSuffix(key, path.Ext(key))
}
