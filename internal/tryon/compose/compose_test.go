package compose

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"

	"github.com/banshee-data/tryon/internal/tryon/anchors"
	"github.com/banshee-data/tryon/internal/tryon/assets"
)

// wideAsset returns a usable asset twice as wide as it is tall.
func wideAsset(c color.Color) *assets.Asset {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return assets.New("hoop", img)
}

func testAnchors() *anchors.Anchors {
	return &anchors.Anchors{
		LeftEar:  anchors.Point{X: 200, Y: 300},
		RightEar: anchors.Point{X: 600, Y: 300},
		Neck:     anchors.Point{X: 400, Y: 600},
	}
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestLayout_EarAndNeckSizing(t *testing.T) {
	t.Parallel()

	l := DefaultLayout()
	ear := l.EarRect(anchors.Point{X: 200, Y: 300}, 400, 0.5)
	if diff := cmp.Diff(Rect{X: 104, Y: 285.6, W: 192, H: 96}, ear, approx); diff != "" {
		t.Errorf("ear rect mismatch (-want +got):\n%s", diff)
	}

	neck := l.NeckRect(anchors.Point{X: 400, Y: 600}, 400, 0.5)
	if diff := cmp.Diff(Rect{X: 160, Y: 576, W: 480, H: 240}, neck, approx); diff != "" {
		t.Errorf("neck rect mismatch (-want +got):\n%s", diff)
	}
}

func TestLayout_HeightFollowsAspect(t *testing.T) {
	t.Parallel()

	l := DefaultLayout()
	tall := l.EarRect(anchors.Point{}, 100, 3)
	assert.InDelta(t, 48.0, tall.W, 1e-9)
	assert.InDelta(t, 144.0, tall.H, 1e-9)
	assert.InDelta(t, -24.0, tall.X, 1e-9, "centred horizontally on the anchor")
}

func TestCompositor_DrawOrder(t *testing.T) {
	t.Parallel()

	c := NewCompositor(DefaultLayout())
	s := NewRecordingSurface(800, 800)

	cmds := c.Render(s, wideAsset(color.White), testAnchors(), 400)
	require.Len(t, cmds, 3)
	assert.Equal(t, []Piece{PieceLeftEar, PieceRightEar, PieceNeck},
		[]Piece{cmds[0].Piece, cmds[1].Piece, cmds[2].Piece})

	require.Len(t, s.Ops, 4)
	assert.Equal(t, "clear", s.Ops[0].Kind, "render always clears first")
	for i, cmd := range cmds {
		assert.Equal(t, cmd.Rect, s.Ops[i+1].Rect)
	}
	assert.InDelta(t, 104.0, cmds[0].Rect.X, 1e-9)
	assert.InDelta(t, 504.0, cmds[1].Rect.X, 1e-9)
}

func TestCompositor_NothingToDraw(t *testing.T) {
	t.Parallel()

	c := NewCompositor(DefaultLayout())
	asset := wideAsset(color.White)

	tests := []struct {
		name    string
		asset   *assets.Asset
		anchors *anchors.Anchors
		fw      float64
	}{
		{"no face", asset, nil, 400},
		{"no asset", nil, testAnchors(), 400},
		{"unavailable asset", assets.Unavailable, testAnchors(), 400},
		{"zero face width", asset, testAnchors(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRecordingSurface(800, 800)
			// Render twice: a no-op frame is idempotent.
			assert.Nil(t, c.Render(s, tt.asset, tt.anchors, tt.fw))
			assert.Nil(t, c.Render(s, tt.asset, tt.anchors, tt.fw))
			assert.Equal(t, []Op{{Kind: "clear"}, {Kind: "clear"}}, s.Ops)
			assert.Empty(t, s.Draws())
		})
	}
}

func TestCompositor_ZeroSizedSurface(t *testing.T) {
	t.Parallel()

	c := NewCompositor(DefaultLayout())
	for _, size := range [][2]int{{0, 480}, {640, 0}, {0, 0}} {
		s := NewRecordingSurface(size[0], size[1])
		assert.Nil(t, c.Render(s, wideAsset(color.White), testAnchors(), 400))
		assert.Empty(t, s.Draws())
	}
}

func TestImageSurface_DrawsAndClears(t *testing.T) {
	t.Parallel()

	red := color.RGBA{R: 255, A: 255}
	s := NewImageSurface(800, 800)
	c := NewCompositor(DefaultLayout())

	cmds := c.Render(s, wideAsset(red), testAnchors(), 400)
	require.Len(t, cmds, 3)

	img := s.Image()
	assert.Equal(t, red, img.RGBAAt(200, 330), "inside left ear piece")
	assert.Equal(t, red, img.RGBAAt(400, 700), "inside neck piece")
	assert.Equal(t, color.RGBA{}, img.RGBAAt(10, 10), "background stays transparent")

	// Losing the face clears the previous frame's pieces.
	assert.Nil(t, c.Render(s, wideAsset(red), nil, 400))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(200, 330))
}

func TestImageSurface_ClipsOffscreenPieces(t *testing.T) {
	t.Parallel()

	s := NewImageSurface(100, 100)
	s.DrawImage(wideAsset(color.White).Image, Rect{X: -500, Y: -500, W: 50, H: 25})
	s.DrawImage(wideAsset(color.White).Image, Rect{X: 90, Y: 90, W: 40, H: 20})
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, s.Image().RGBAAt(95, 95))
	assert.Equal(t, color.RGBA{}, s.Image().RGBAAt(0, 0))
}

func TestImageSurface_Resize(t *testing.T) {
	t.Parallel()

	s := NewImageSurface(10, 10)
	before := s.Image()
	s.Resize(10, 10)
	assert.Same(t, before, s.Image(), "same size keeps the buffer")

	s.Resize(320, 240)
	assert.Equal(t, image.Rect(0, 0, 320, 240), s.Bounds())

	s.Resize(-1, 5)
	assert.Equal(t, 0, s.Bounds().Dx())
}

func TestInterpolatorByName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "nearest", "approx-bilinear", "bilinear", "Catmull-Rom"} {
		interp, err := InterpolatorByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, interp)
	}
	_, err := InterpolatorByName("lanczos")
	assert.Error(t, err)
}

func TestRect_Image(t *testing.T) {
	t.Parallel()

	r := Rect{X: 104, Y: 285.6, W: 192, H: 96}
	assert.Equal(t, image.Rect(104, 286, 296, 382), r.Image())
	assert.Equal(t, "(104.0,285.6 192.0x96.0)", r.String())
}

func TestCapture(t *testing.T) {
	t.Parallel()

	blue := color.RGBA{B: 255, A: 255}
	video := image.NewRGBA(image.Rect(0, 0, 400, 300))
	draw.Draw(video, video.Bounds(), image.NewUniform(blue), image.Point{}, draw.Src)

	overlay := NewImageSurface(400, 300)
	overlay.DrawImage(wideAsset(color.RGBA{R: 255, A: 255}).Image, Rect{X: 0, Y: 0, W: 40, H: 20})

	out := Capture(video, overlay.Image(), DefaultWatermark)
	require.Equal(t, video.Bounds(), out.Bounds())

	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(10, 10), "overlay on top of video")
	assert.Equal(t, blue, out.RGBAAt(100, 100), "video shows through transparent overlay")

	boxed := out.RGBAAt(400-220+5, 300-64+5)
	assert.Less(t, boxed.B, uint8(200), "watermark box darkens the video")
	assert.Greater(t, boxed.B, uint8(100))

	var labelled bool
	for y := 300 - 34 - 13; y <= 300-34; y++ {
		for x := 400 - 170; x < 400-170+7*len(DefaultWatermark); x++ {
			if out.RGBAAt(x, y).R > 200 {
				labelled = true
			}
		}
	}
	assert.True(t, labelled, "label drawn inside the box")
}

func TestCapture_NoWatermark(t *testing.T) {
	t.Parallel()

	video := image.NewRGBA(image.Rect(0, 0, 300, 200))
	out := Capture(video, nil, "")
	assert.Equal(t, video.Pix, out.Pix)
}

func TestCapture_ScalesMismatchedOverlay(t *testing.T) {
	t.Parallel()

	video := image.NewRGBA(image.Rect(0, 0, 200, 200))
	overlay := image.NewRGBA(image.Rect(0, 0, 100, 100))
	draw.Draw(overlay, overlay.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	out := Capture(video, overlay, "")
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, out.RGBAAt(150, 150))
}
