package landmarks

import (
	"math"
	"math/rand"
)

// SyntheticGenerator produces deterministic face meshes for demos, replay
// fixtures and tests. The face sways slowly around the frame centre, every
// landmark receives independent Gaussian jitter, and detection can drop out
// periodically to exercise the reset path.
type SyntheticGenerator struct {
	frame uint64

	// Configuration
	Width, Height int     // frame size in pixels
	FaceWidth     float64 // inter-eye distance, normalised to frame width
	Jitter        float64 // stddev of per-landmark noise, normalised units
	SwayAmplitude float64 // horizontal sway, normalised units
	SwayPeriod    int     // frames per sway cycle
	DropoutEvery  int     // 0 disables dropouts
	DropoutLength int     // frames without a face per dropout

	rng *rand.Rand
}

// NewSyntheticGenerator returns a generator for a width x height stream
// seeded with seed.
func NewSyntheticGenerator(width, height int, seed int64) *SyntheticGenerator {
	return &SyntheticGenerator{
		Width:         width,
		Height:        height,
		FaceWidth:     0.22,
		Jitter:        0.002,
		SwayAmplitude: 0.05,
		SwayPeriod:    120,
		DropoutLength: 5,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// NextFrame returns the next frame. Frames inside a dropout window carry no
// landmarks.
func (g *SyntheticGenerator) NextFrame() *Frame {
	g.frame++
	idx := g.frame
	if g.DropoutEvery > 0 && g.DropoutLength > 0 {
		pos := int((idx - 1) % uint64(g.DropoutEvery+g.DropoutLength))
		if pos >= g.DropoutEvery {
			return NewFrame(idx, g.Width, g.Height, nil)
		}
	}
	return NewFrame(idx, g.Width, g.Height, g.mesh(idx))
}

// Truth returns the noise-free mesh for frame idx, useful for measuring how
// far smoothed output sits from ground truth.
func (g *SyntheticGenerator) Truth(idx uint64) *Set {
	return g.layout(g.centre(idx))
}

func (g *SyntheticGenerator) centre(idx uint64) (float64, float64) {
	period := g.SwayPeriod
	if period <= 0 {
		period = 1
	}
	phase := 2 * math.Pi * float64(idx%uint64(period)) / float64(period)
	return 0.5 + g.SwayAmplitude*math.Sin(phase), 0.45
}

func (g *SyntheticGenerator) mesh(idx uint64) *Set {
	s := g.layout(g.centre(idx))
	if g.Jitter > 0 {
		for i := range s {
			s[i].X += g.rng.NormFloat64() * g.Jitter
			s[i].Y += g.rng.NormFloat64() * g.Jitter
			s[i].Z += g.rng.NormFloat64() * g.Jitter
		}
	}
	return s
}

// layout places the mesh on an ellipse around (cx, cy) and then pins the
// landmarks the overlay engine reads to anatomically plausible spots.
func (g *SyntheticGenerator) layout(cx, cy float64) *Set {
	fw := g.FaceWidth
	aspect := 1.0
	if g.Height > 0 {
		aspect = float64(g.Width) / float64(g.Height)
	}
	rx := fw * 0.9
	ry := fw * 1.25 * aspect

	s := new(Set)
	for i := range s {
		theta := 2 * math.Pi * float64(i) / NumLandmarks
		ring := 0.35 + 0.65*float64(i%7)/6
		s[i] = Landmark{
			X: cx + rx*ring*math.Cos(theta),
			Y: cy + ry*ring*math.Sin(theta),
		}
	}

	s[LeftEye] = Landmark{X: cx - fw/2, Y: cy - ry*0.2}
	s[RightEye] = Landmark{X: cx + fw/2, Y: cy - ry*0.2}
	s[LeftEarPrimary] = Landmark{X: cx - rx, Y: cy + ry*0.05}
	s[LeftEarFallback] = Landmark{X: cx - rx*0.95, Y: cy + ry*0.2}
	s[RightEarPrimary] = Landmark{X: cx + rx, Y: cy + ry*0.05}
	s[RightEarFallback] = Landmark{X: cx + rx*0.95, Y: cy + ry*0.2}
	s[Chin] = Landmark{X: cx, Y: cy + ry}
	return s
}
