package landmarks

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrLandmarkCount is returned for detector output whose mesh length is
// neither zero (no face), NumLandmarks nor NumRefinedLandmarks.
var ErrLandmarkCount = errors.New("unexpected landmark count")

// ErrFrameSize is returned for a frame whose reported size is negative or
// larger than MaxDimension.
var ErrFrameSize = errors.New("frame size out of range")

// CountError reports the offending mesh length. It matches ErrLandmarkCount
// under errors.Is.
type CountError struct {
	Got int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("%v: got %d, want 0, %d or %d", ErrLandmarkCount, e.Got, NumLandmarks, NumRefinedLandmarks)
}

func (e *CountError) Is(target error) bool { return target == ErrLandmarkCount }

// Frame is one line of a landmark recording: the detector's output for a
// single video frame together with the frame's pixel dimensions.
type Frame struct {
	Index       uint64     `json:"frame"`
	Width       int        `json:"width" validate:"gte=0,lte=16384"`
	Height      int        `json:"height" validate:"gte=0,lte=16384"`
	TimestampMs int64      `json:"timestamp_ms,omitempty"`
	Landmarks   []Landmark `json:"landmarks"`
}

// NewFrame wraps a mesh (or nil for "no face") as a recordable frame.
func NewFrame(index uint64, width, height int, set *Set) *Frame {
	f := &Frame{Index: index, Width: width, Height: height}
	if set != nil {
		f.Landmarks = append([]Landmark(nil), set[:]...)
	}
	return f
}

// CheckSize reports ErrFrameSize when either dimension is negative or
// exceeds MaxDimension. Zero means the size is unknown.
func (f *Frame) CheckSize() error {
	if f.Width < 0 || f.Height < 0 || f.Width > MaxDimension || f.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrFrameSize, f.Width, f.Height)
	}
	return nil
}

// Set converts the frame's landmarks into a mesh. It returns nil, nil when
// the frame reports no face.
func (f *Frame) Set() (*Set, error) {
	if len(f.Landmarks) == 0 {
		return nil, nil
	}
	return FromSlice(f.Landmarks)
}

// maxLineBytes bounds a single recorded frame. A full mesh is ~35KB.
const maxLineBytes = 1 << 20

// Decoder reads frames from a JSON Lines stream. Blank lines are skipped.
type Decoder struct {
	sc    *bufio.Scanner
	line  int
	count int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Decoder{sc: sc}
}

// Next decodes the next frame. It returns io.EOF once the stream is
// exhausted. Frames with an invalid mesh length or size are rejected.
func (d *Decoder) Next() (*Frame, error) {
	for d.sc.Scan() {
		d.line++
		line := bytes.TrimSpace(d.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, fmt.Errorf("failed to decode line %d: %w", d.line, err)
		}
		d.count++
		if n := len(f.Landmarks); !validCount(n) {
			return nil, fmt.Errorf("line %d (frame %d): %w", d.line, f.Index, &CountError{Got: n})
		}
		if err := f.CheckSize(); err != nil {
			return nil, fmt.Errorf("line %d (frame %d): %w", d.line, f.Index, err)
		}
		return &f, nil
	}
	if err := d.sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frame stream: %w", err)
	}
	return nil, io.EOF
}

// Count returns the number of frames decoded so far.
func (d *Decoder) Count() int { return d.count }

// Encoder writes frames as JSON Lines.
type Encoder struct {
	enc *jsoniter.Encoder
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes one frame followed by a newline.
func (e *Encoder) Encode(f *Frame) error {
	if err := e.enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", f.Index, err)
	}
	return nil
}
