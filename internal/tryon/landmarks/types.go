package landmarks

// NumLandmarks is the length of every face mesh emitted by the detector.
const NumLandmarks = 468

// NumRefinedLandmarks is the mesh length when the detector runs with iris
// refinement. The ten iris points follow the base mesh and are dropped.
const NumRefinedLandmarks = 478

// MaxDimension bounds the reported frame width and height in pixels.
const MaxDimension = 16384

// Face mesh indices used by the overlay engine. Index meaning is fixed by
// the detector model and never changes between frames.
const (
	LeftEye          = 33
	RightEye         = 263
	LeftEarPrimary   = 234
	LeftEarFallback  = 132
	RightEarPrimary  = 454
	RightEarFallback = 361
	Chin             = 152
)

// Landmark is one facial keypoint. X and Y are normalised to [0,1]
// relative to the frame width and height; Z is the detector's relative depth.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Set is the full mesh for one detected face in one frame.
// A nil *Set means no face was detected.
type Set [NumLandmarks]Landmark

// At returns the landmark at index i. The second result is false when i
// falls outside the mesh.
func (s *Set) At(i int) (Landmark, bool) {
	if s == nil || i < 0 || i >= NumLandmarks {
		return Landmark{}, false
	}
	return s[i], true
}

// Clone returns an independent copy of s, or nil when s is nil.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// FromSlice builds a Set from a detector result. A refined mesh keeps its
// first NumLandmarks points. Any other length returns ErrLandmarkCount.
func FromSlice(lms []Landmark) (*Set, error) {
	if n := len(lms); n != NumLandmarks && n != NumRefinedLandmarks {
		return nil, &CountError{Got: len(lms)}
	}
	var s Set
	copy(s[:], lms)
	return &s, nil
}

func validCount(n int) bool {
	return n == 0 || n == NumLandmarks || n == NumRefinedLandmarks
}
