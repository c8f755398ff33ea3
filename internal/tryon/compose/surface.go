package compose

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// Surface is the imperative drawing target sized to the current video
// frame.
type Surface interface {
	Bounds() image.Rectangle
	Resize(width, height int)
	Clear()
	DrawImage(img image.Image, dst Rect)
}

// ImageSurface renders onto a transparent RGBA buffer, scaling pieces with
// an x/image interpolator and compositing them with alpha-over.
type ImageSurface struct {
	img          *image.RGBA
	Interpolator draw.Interpolator
}

// NewImageSurface allocates a width x height surface.
func NewImageSurface(width, height int) *ImageSurface {
	return &ImageSurface{
		img:          image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0))),
		Interpolator: draw.ApproxBiLinear,
	}
}

// Image exposes the backing buffer. It is overwritten by the next frame.
func (s *ImageSurface) Image() *image.RGBA { return s.img }

func (s *ImageSurface) Bounds() image.Rectangle { return s.img.Bounds() }

// Resize reallocates the buffer when the dimensions change.
func (s *ImageSurface) Resize(width, height int) {
	width, height = max(width, 0), max(height, 0)
	if s.img.Bounds().Dx() == width && s.img.Bounds().Dy() == height {
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Clear resets every pixel to transparent.
func (s *ImageSurface) Clear() {
	clear(s.img.Pix)
}

// DrawImage scales img into dst. Parts outside the surface are clipped.
func (s *ImageSurface) DrawImage(img image.Image, dst Rect) {
	r := dst.Image()
	if r.Empty() || !r.Overlaps(s.img.Bounds()) {
		return
	}
	interp := s.Interpolator
	if interp == nil {
		interp = draw.ApproxBiLinear
	}
	interp.Scale(s.img, r, img, img.Bounds(), draw.Over, nil)
}

// InterpolatorByName maps a config name to an x/image interpolator.
func InterpolatorByName(name string) (draw.Interpolator, error) {
	switch strings.ToLower(name) {
	case "", "approx-bilinear":
		return draw.ApproxBiLinear, nil
	case "nearest":
		return draw.NearestNeighbor, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "catmull-rom":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown interpolator %q", name)
	}
}

// Op is one call recorded by a RecordingSurface.
type Op struct {
	Kind string `json:"kind"` // "clear" or "draw"
	Rect Rect   `json:"rect,omitempty"`
}

// RecordingSurface records calls instead of drawing pixels. The replay
// tool uses it for command-only export; tests use it to check ordering.
type RecordingSurface struct {
	width, height int
	Ops           []Op
}

// NewRecordingSurface returns an empty recorder of the given size.
func NewRecordingSurface(width, height int) *RecordingSurface {
	return &RecordingSurface{width: width, height: height}
}

func (s *RecordingSurface) Bounds() image.Rectangle {
	return image.Rect(0, 0, max(s.width, 0), max(s.height, 0))
}

func (s *RecordingSurface) Resize(width, height int) {
	s.width, s.height = width, height
}

func (s *RecordingSurface) Clear() {
	s.Ops = append(s.Ops, Op{Kind: "clear"})
}

func (s *RecordingSurface) DrawImage(_ image.Image, dst Rect) {
	s.Ops = append(s.Ops, Op{Kind: "draw", Rect: dst})
}

// Draws returns the rectangles drawn since the last clear.
func (s *RecordingSurface) Draws() []Rect {
	var out []Rect
	for _, op := range s.Ops {
		switch op.Kind {
		case "clear":
			out = out[:0]
		case "draw":
			out = append(out, op.Rect)
		}
	}
	return out
}

// Reset forgets recorded ops.
func (s *RecordingSurface) Reset() { s.Ops = s.Ops[:0] }
