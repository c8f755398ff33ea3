package anchors

import (
	"fmt"

	"github.com/banshee-data/tryon/internal/tryon/landmarks"
)

// Anchor names.
const (
	LeftEar  = "le"
	RightEar = "re"
	Neck     = "nk"
)

// Point is a pixel-space location.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Anchors holds the three placement points for one frame.
type Anchors struct {
	LeftEar  Point `json:"le"`
	RightEar Point `json:"re"`
	Neck     Point `json:"nk"`
}

// source maps an anchor to the mesh indices it may be read from, in order
// of preference.
type source struct {
	name  string
	chain []int
}

var sources = [...]source{
	{LeftEar, []int{landmarks.LeftEarPrimary, landmarks.LeftEarFallback}},
	{RightEar, []int{landmarks.RightEarPrimary, landmarks.RightEarFallback}},
	{Neck, []int{landmarks.Chin}},
}

// resolve returns the first readable landmark in chain. Meshes are
// fixed-length, so an exhausted chain is a broken input contract.
func resolve(set *landmarks.Set, chain []int) landmarks.Landmark {
	for _, idx := range chain {
		if lm, ok := set.At(idx); ok {
			return lm
		}
	}
	panic(fmt.Sprintf("anchors: no readable landmark among indices %v", chain))
}

// Resolve reads the raw (not yet anchor-smoothed) pixel-space anchors from
// a mesh on a width x height surface.
func Resolve(set *landmarks.Set, width, height float64) Anchors {
	var pts [len(sources)]Point
	for i, src := range sources {
		lm := resolve(set, src.chain)
		pts[i] = Point{X: lm.X * width, Y: lm.Y * height}
	}
	return Anchors{LeftEar: pts[0], RightEar: pts[1], Neck: pts[2]}
}

// Tracker is the second smoothing stage: each named anchor keeps its own
// exponential moving average in pixel space, on top of the mesh-wide
// smoothing already applied upstream. Ears and neck get this extra
// stabilisation because placement error there is the most visible.
//
// The zero value is ready to use with landmarks.DefaultAlpha. A Tracker is
// not safe for concurrent use.
type Tracker struct {
	Alpha  float64
	points map[string]Point
}

// NewTracker returns an empty tracker. Alpha outside (0,1] falls back to
// landmarks.DefaultAlpha.
func NewTracker(alpha float64) *Tracker {
	if alpha <= 0 || alpha > 1 {
		alpha = landmarks.DefaultAlpha
	}
	return &Tracker{Alpha: alpha, points: make(map[string]Point)}
}

// Get feeds a raw sample for name and returns the smoothed point. The first
// sample for a name is stored and returned unchanged.
func (t *Tracker) Get(name string, x, y float64) Point {
	if t.points == nil {
		t.points = make(map[string]Point)
	}
	prev, ok := t.points[name]
	if !ok {
		p := Point{X: x, Y: y}
		t.points[name] = p
		return p
	}
	alpha := t.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = landmarks.DefaultAlpha
	}
	p := Point{
		X: landmarks.Blend(prev.X, x, alpha),
		Y: landmarks.Blend(prev.Y, y, alpha),
	}
	t.points[name] = p
	return p
}

// Update smooths all three anchors, always in the order le, re, nk.
func (t *Tracker) Update(raw Anchors) Anchors {
	return Anchors{
		LeftEar:  t.Get(LeftEar, raw.LeftEar.X, raw.LeftEar.Y),
		RightEar: t.Get(RightEar, raw.RightEar.X, raw.RightEar.Y),
		Neck:     t.Get(Neck, raw.Neck.X, raw.Neck.Y),
	}
}

// Track resolves and smooths the anchors of a mesh in one call. A nil mesh
// clears the tracker and returns nil.
func (t *Tracker) Track(set *landmarks.Set, width, height float64) *Anchors {
	if set == nil {
		t.Reset()
		return nil
	}
	a := t.Update(Resolve(set, width, height))
	return &a
}

// Point returns the last smoothed point for name.
func (t *Tracker) Point(name string) (Point, bool) {
	p, ok := t.points[name]
	return p, ok
}

// Len reports how many anchors currently hold state.
func (t *Tracker) Len() int { return len(t.points) }

// Reset forgets every anchor.
func (t *Tracker) Reset() {
	clear(t.points)
}
