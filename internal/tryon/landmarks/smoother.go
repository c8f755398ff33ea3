package landmarks

// DefaultAlpha is the EMA weight given to the newest sample. Chosen by eye:
// low enough to hide detector jitter, high enough that overlays don't trail
// behind head movement.
const DefaultAlpha = 0.18

// Blend performs one exponential moving average step.
func Blend(old, sample, alpha float64) float64 {
	return old*(1-alpha) + sample*alpha
}

// Smoother stabilises whole meshes across frames with a per-index,
// per-axis exponential moving average.
type Smoother struct {
	Alpha float64
}

// NewSmoother returns a Smoother with the given alpha. Values outside (0,1]
// fall back to DefaultAlpha.
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Smoother{Alpha: alpha}
}

// Update returns the smoothed mesh for this frame.
//
// A nil raw mesh (no face) yields nil, and callers must treat that as a full
// reset. A nil previous mesh (first detection, or the first one after a gap)
// yields an exact copy of raw so reacquisition has no lag. Neither input is
// modified.
func (s *Smoother) Update(raw, previous *Set) *Set {
	if raw == nil {
		return nil
	}
	if previous == nil {
		return raw.Clone()
	}

	a := s.Alpha
	out := new(Set)
	for i := range raw {
		out[i] = Landmark{
			X: Blend(previous[i].X, raw[i].X, a),
			Y: Blend(previous[i].Y, raw[i].Y, a),
			Z: Blend(previous[i].Z, raw[i].Z, a),
		}
	}
	return out
}
