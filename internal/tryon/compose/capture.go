package compose

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Watermark box geometry, measured from the bottom-right corner.
const (
	watermarkBoxInsetX  = 220
	watermarkBoxInsetY  = 64
	watermarkBoxW       = 200
	watermarkBoxH       = 48
	watermarkTextInsetX = 170
	watermarkTextInsetY = 34
)

var (
	watermarkFill  = color.NRGBA{A: 102} // black at 0.4
	watermarkLabel = color.NRGBA{R: 0xff, G: 0xd9, B: 0x7d, A: 0xff}
)

// DefaultWatermark is the label stamped on captured stills.
const DefaultWatermark = "TryMyGold"

// Capture flattens a video frame and the overlay into a new image the size
// of the video frame. The overlay is stretched to fit if its size differs.
// An empty label skips the watermark.
func Capture(video, overlay image.Image, label string) *image.RGBA {
	b := video.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), video, b.Min, draw.Src)

	if overlay != nil {
		ob := overlay.Bounds()
		if ob.Dx() == b.Dx() && ob.Dy() == b.Dy() {
			draw.Draw(out, out.Bounds(), overlay, ob.Min, draw.Over)
		} else if !ob.Empty() {
			draw.ApproxBiLinear.Scale(out, out.Bounds(), overlay, ob, draw.Over, nil)
		}
	}

	if label != "" {
		stamp(out, label)
	}
	return out
}

func stamp(dst *image.RGBA, label string) {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	box := image.Rect(
		w-watermarkBoxInsetX, h-watermarkBoxInsetY,
		w-watermarkBoxInsetX+watermarkBoxW, h-watermarkBoxInsetY+watermarkBoxH,
	).Intersect(dst.Bounds())
	if !box.Empty() {
		draw.Draw(dst, box, image.NewUniform(watermarkFill), image.Point{}, draw.Over)
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(watermarkLabel),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(w-watermarkTextInsetX, h-watermarkTextInsetY),
	}
	d.DrawString(label)
}
