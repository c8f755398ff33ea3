package compose

import (
	"github.com/banshee-data/tryon/internal/tryon/anchors"
	"github.com/banshee-data/tryon/internal/tryon/assets"
)

// Compositor turns anchors, face width and the selected asset into placed
// pieces and draws them.
type Compositor struct {
	Layout Layout
}

// NewCompositor returns a compositor using layout.
func NewCompositor(layout Layout) *Compositor {
	return &Compositor{Layout: layout}
}

// Place computes draw commands without touching a surface. It returns nil
// when there is nothing to draw: no anchors (no face), no usable asset, or
// a non-positive face width.
func (c *Compositor) Place(asset *assets.Asset, a *anchors.Anchors, faceWidth float64) []DrawCommand {
	if a == nil || !asset.Usable() || faceWidth <= 0 {
		return nil
	}
	aspect := asset.Aspect()
	// Neck goes last so it sits on top where pieces overlap.
	return []DrawCommand{
		{Piece: PieceLeftEar, Rect: c.Layout.EarRect(a.LeftEar, faceWidth, aspect)},
		{Piece: PieceRightEar, Rect: c.Layout.EarRect(a.RightEar, faceWidth, aspect)},
		{Piece: PieceNeck, Rect: c.Layout.NeckRect(a.Neck, faceWidth, aspect)},
	}
}

// Render clears the whole surface and redraws it for one frame. Missing
// anchors, a missing or unavailable asset and a zero-sized surface are all
// quiet no-ops after the clear. The returned commands are what was drawn.
func (c *Compositor) Render(s Surface, asset *assets.Asset, a *anchors.Anchors, faceWidth float64) []DrawCommand {
	s.Clear()

	b := s.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil
	}

	cmds := c.Place(asset, a, faceWidth)
	for _, cmd := range cmds {
		s.DrawImage(asset.Image, cmd.Rect)
	}
	return cmds
}
