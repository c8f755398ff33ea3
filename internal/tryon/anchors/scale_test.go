package anchors

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/tryon/internal/tryon/landmarks"
)

func TestFaceWidth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		left, right   landmarks.Landmark
		width, height float64
		want          float64
	}{
		{"level eyes", landmarks.Landmark{X: 0.3, Y: 0.5}, landmarks.Landmark{X: 0.7, Y: 0.5}, 1000, 800, 400},
		{"tilted", landmarks.Landmark{X: 0.3, Y: 0.5}, landmarks.Landmark{X: 0.6, Y: 0.9}, 1000, 1000, 500},
		{"order independent", landmarks.Landmark{X: 0.7, Y: 0.5}, landmarks.Landmark{X: 0.3, Y: 0.5}, 1000, 800, 400},
		{"zero surface", landmarks.Landmark{X: 0.3, Y: 0.5}, landmarks.Landmark{X: 0.7, Y: 0.5}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FaceWidth(tt.left, tt.right, tt.width, tt.height), 1e-9)
		})
	}
}

func TestMeasure(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 400, Measure(testMesh(), 1000, 800).FaceWidth, 1e-9)
	assert.Equal(t, FaceMetrics{}, Measure(nil, 1000, 800))
}
