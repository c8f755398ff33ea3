// Package assets holds decoded overlay images and the atomic slot through
// which a session sees the currently selected one.
//
// Loading and decoding happen out of band (user selection, HTTP handlers);
// the frame loop only ever calls Slot.Load.
package assets

import (
	"image"
	"sync/atomic"
)

// Asset is a decoded jewelry image with its intrinsic pixel size. Assets
// are immutable once built.
type Asset struct {
	ID     string
	Image  image.Image
	Width  int
	Height int
}

// Unavailable is the sentinel for "loading or decoding failed". Renderers
// treat it exactly like "no asset selected".
var Unavailable = &Asset{ID: "unavailable"}

// New wraps a decoded image.
func New(id string, img image.Image) *Asset {
	b := img.Bounds()
	return &Asset{ID: id, Image: img, Width: b.Dx(), Height: b.Dy()}
}

// Usable reports whether a can be drawn.
func (a *Asset) Usable() bool {
	return a != nil && a != Unavailable && a.Image != nil && a.Width > 0 && a.Height > 0
}

// Aspect returns height / width, the factor that derives a drawn height
// from a drawn width.
func (a *Asset) Aspect() float64 {
	if !a.Usable() {
		return 0
	}
	return float64(a.Height) / float64(a.Width)
}

// Slot publishes the selected asset to the frame loop. Store and Load are
// atomic, so a frame in flight sees either the old or the new asset in
// full.
type Slot struct {
	p atomic.Pointer[Asset]
}

// Store selects a. Nil or Unavailable clears the selection.
func (s *Slot) Store(a *Asset) {
	if !a.Usable() {
		s.p.Store(nil)
		return
	}
	s.p.Store(a)
}

// Swap selects a and returns the previous selection.
func (s *Slot) Swap(a *Asset) *Asset {
	if !a.Usable() {
		a = nil
	}
	return s.p.Swap(a)
}

// Load returns the current asset, or nil.
func (s *Slot) Load() *Asset {
	return s.p.Load()
}
