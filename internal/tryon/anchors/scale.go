package anchors

import (
	"math"

	"github.com/banshee-data/tryon/internal/tryon/landmarks"
)

// FaceMetrics carries the per-frame size reference.
type FaceMetrics struct {
	FaceWidth float64 `json:"face_width"`
}

// FaceWidth is the pixel distance between the eyes on a width x height
// surface. It grows and shrinks with the apparent face size, so every
// overlay piece sized from it stays proportional at any camera distance.
// Head roll and pitch are ignored.
func FaceWidth(leftEye, rightEye landmarks.Landmark, width, height float64) float64 {
	return math.Hypot((rightEye.X-leftEye.X)*width, (rightEye.Y-leftEye.Y)*height)
}

// Measure computes the frame's metrics from a smoothed mesh.
func Measure(set *landmarks.Set, width, height float64) FaceMetrics {
	if set == nil {
		return FaceMetrics{}
	}
	return FaceMetrics{
		FaceWidth: FaceWidth(set[landmarks.LeftEye], set[landmarks.RightEye], width, height),
	}
}
