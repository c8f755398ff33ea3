package compose

import (
	"fmt"
	"image"
	"math"

	"github.com/banshee-data/tryon/internal/tryon/anchors"
)

// Piece identifies one drawn overlay.
type Piece string

const (
	PieceLeftEar  Piece = "left_ear"
	PieceRightEar Piece = "right_ear"
	PieceNeck     Piece = "neck"
)

// Rect is a placement rectangle in surface pixels. Origin is the top-left
// corner; X and Y may be negative when a piece hangs off the frame.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Image rounds r to the integer rectangle a raster surface draws into.
func (r Rect) Image() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	x1 := int(math.Round(r.X + r.W))
	y1 := int(math.Round(r.Y + r.H))
	return image.Rect(x0, y0, x1, y1)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.1f,%.1f %.1fx%.1f)", r.X, r.Y, r.W, r.H)
}

// DrawCommand is one placed piece, in draw order.
type DrawCommand struct {
	Piece Piece `json:"piece"`
	Rect  Rect  `json:"rect"`
}

// Layout holds the sizing ratios. Widths are fractions of face width;
// lifts are fractions of the drawn height by which a piece is raised above
// its anchor, so the anchor sits near the top of the piece.
type Layout struct {
	EarWidthRatio  float64 `json:"ear_width_ratio"`
	EarLiftRatio   float64 `json:"ear_lift_ratio"`
	NeckWidthRatio float64 `json:"neck_width_ratio"`
	NeckLiftRatio  float64 `json:"neck_lift_ratio"`
}

// DefaultLayout returns the production ratios.
func DefaultLayout() Layout {
	return Layout{
		EarWidthRatio:  0.48,
		EarLiftRatio:   0.15,
		NeckWidthRatio: 1.2,
		NeckLiftRatio:  0.10,
	}
}

// EarRect places an ear piece. aspect is asset height / width.
func (l Layout) EarRect(anchor anchors.Point, faceWidth, aspect float64) Rect {
	return place(anchor, faceWidth*l.EarWidthRatio, aspect, l.EarLiftRatio)
}

// NeckRect places a neck piece. aspect is asset height / width.
func (l Layout) NeckRect(anchor anchors.Point, faceWidth, aspect float64) Rect {
	return place(anchor, faceWidth*l.NeckWidthRatio, aspect, l.NeckLiftRatio)
}

// place centres a piece of the given width horizontally on the anchor and
// lifts it by lift*height. Height always follows the asset aspect ratio.
func place(anchor anchors.Point, width, aspect, lift float64) Rect {
	height := width * aspect
	return Rect{
		X: anchor.X - width/2,
		Y: anchor.Y - height*lift,
		W: width,
		H: height,
	}
}
