// Package pipeline wires the try-on stages into a pull-style frame loop.
//
// A Session owns every piece of mutable state for one tracking session:
// the smoothed mesh, the anchor tracker, the render surface and the
// selected-asset slot. Callers push one landmark set (or nil for "no
// face") per video frame through ProcessFrame and get back what was drawn.
package pipeline

import (
	"image"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/tryon/internal/monitoring"
	"github.com/banshee-data/tryon/internal/tryon/anchors"
	"github.com/banshee-data/tryon/internal/tryon/assets"
	"github.com/banshee-data/tryon/internal/tryon/compose"
	"github.com/banshee-data/tryon/internal/tryon/landmarks"
)

// Frame is the result of processing one video frame.
type Frame struct {
	SessionID    string                `json:"session_id"`
	Index        uint64                `json:"index"`
	FaceDetected bool                  `json:"face_detected"`
	Width        int                   `json:"width"`
	Height       int                   `json:"height"`
	Raw          *anchors.Anchors      `json:"raw,omitempty"`
	Mesh         *anchors.Anchors      `json:"mesh,omitempty"`
	Anchors      *anchors.Anchors      `json:"anchors,omitempty"`
	Metrics      anchors.FaceMetrics   `json:"metrics"`
	AssetID      string                `json:"asset_id,omitempty"`
	Commands     []compose.DrawCommand `json:"commands"`
}

// Drawn reports whether the frame placed any pieces.
func (f *Frame) Drawn() bool { return len(f.Commands) > 0 }

// FrameObserver receives every processed frame after rendering. Observers
// run synchronously on the frame path and must not modify f.
type FrameObserver interface {
	ObserveFrame(f *Frame)
}

// FrameObserverFunc adapts a function to FrameObserver.
type FrameObserverFunc func(f *Frame)

func (fn FrameObserverFunc) ObserveFrame(f *Frame) { fn(f) }

// Session is one try-on tracking session. ProcessFrame, Reset and
// AddObserver must be called from a single goroutine; Resize and
// SelectAsset may be called from any goroutine.
type Session struct {
	id         string
	cfg        Config
	smoother   *landmarks.Smoother
	tracker    *anchors.Tracker
	compositor *compose.Compositor
	surface    compose.Surface
	asset      assets.Slot

	smoothed  *landmarks.Set
	index     uint64
	hadFace   bool
	observers []FrameObserver

	resizeMu sync.Mutex
	pending  *image.Point
}

// NewSession creates a session drawing onto surface. A nil surface gets a
// zero-sized ImageSurface that stays blank until the first Resize.
func NewSession(cfg Config, surface compose.Surface) *Session {
	if surface == nil {
		is := compose.NewImageSurface(0, 0)
		if cfg.Interpolator != nil {
			is.Interpolator = cfg.Interpolator
		}
		surface = is
	}
	s := &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		smoother:   landmarks.NewSmoother(cfg.SmoothingAlpha),
		tracker:    anchors.NewTracker(cfg.AnchorAlpha),
		compositor: compose.NewCompositor(cfg.Layout),
		surface:    surface,
	}
	monitoring.Logf("[session] %s started (alpha=%.2f anchor_alpha=%.2f)", s.id, s.smoother.Alpha, s.tracker.Alpha)
	return s
}

// ID returns the session's UUID.
func (s *Session) ID() string { return s.id }

// Config returns the tuning the session was built with.
func (s *Session) Config() Config { return s.cfg }

// Surface returns the render target.
func (s *Session) Surface() compose.Surface { return s.surface }

// AddObserver registers o for every subsequent frame.
func (s *Session) AddObserver(o FrameObserver) {
	s.observers = append(s.observers, o)
}

// Resize schedules a surface size change. It takes effect at the start of
// the next ProcessFrame, before anything is drawn.
func (s *Session) Resize(width, height int) {
	s.resizeMu.Lock()
	s.pending = &image.Point{X: width, Y: height}
	s.resizeMu.Unlock()
}

// SelectAsset atomically swaps the overlay asset and returns the previous
// one. Nil or assets.Unavailable clears the selection.
func (s *Session) SelectAsset(a *assets.Asset) *assets.Asset {
	prev := s.asset.Swap(a)
	if a.Usable() {
		monitoring.Logf("[session] %s asset selected: %s (%dx%d)", s.id, a.ID, a.Width, a.Height)
	} else {
		monitoring.Logf("[session] %s asset cleared", s.id)
	}
	return prev
}

// Asset returns the selected asset, or nil.
func (s *Session) Asset() *assets.Asset { return s.asset.Load() }

// Reset drops all smoothing state, as if the face had been lost.
func (s *Session) Reset() {
	s.smoothed = nil
	s.tracker.Reset()
	s.hadFace = false
}

// ProcessFrame runs one frame through the pipeline: pending resize, mesh
// smoothing, anchor tracking, face width and render. A nil set means no
// face was detected; all smoothing state is dropped so the next detection
// starts fresh.
func (s *Session) ProcessFrame(set *landmarks.Set) Frame {
	s.applyResize()
	s.index++

	b := s.surface.Bounds()
	w, h := b.Dx(), b.Dy()
	asset := s.asset.Load()

	f := Frame{
		SessionID:    s.id,
		Index:        s.index,
		FaceDetected: set != nil,
		Width:        w,
		Height:       h,
	}
	if asset != nil {
		f.AssetID = asset.ID
	}

	s.smoothed = s.smoother.Update(set, s.smoothed)
	s.logFaceTransition(set != nil)

	switch {
	case s.smoothed == nil:
		s.tracker.Reset()
		f.Commands = s.compositor.Render(s.surface, asset, nil, 0)
	case w <= 0 || h <= 0:
		// Anchors are pixel space; leave the tracker alone until the
		// surface has a real size.
		f.Commands = s.compositor.Render(s.surface, asset, nil, 0)
	default:
		fw, fh := float64(w), float64(h)
		raw := anchors.Resolve(set, fw, fh)
		mesh := anchors.Resolve(s.smoothed, fw, fh)
		f.Raw, f.Mesh = &raw, &mesh
		f.Anchors = s.tracker.Track(s.smoothed, fw, fh)
		f.Metrics = anchors.Measure(s.smoothed, fw, fh)
		f.Commands = s.compositor.Render(s.surface, asset, f.Anchors, f.Metrics.FaceWidth)
	}

	for _, o := range s.observers {
		o.ObserveFrame(&f)
	}
	return f
}

func (s *Session) applyResize() {
	s.resizeMu.Lock()
	p := s.pending
	s.pending = nil
	s.resizeMu.Unlock()
	if p == nil {
		return
	}

	b := s.surface.Bounds()
	if b.Dx() == p.X && b.Dy() == p.Y {
		return
	}
	s.surface.Resize(p.X, p.Y)
	s.tracker.Reset()
	monitoring.Logf("[session] %s surface resized %dx%d -> %dx%d", s.id, b.Dx(), b.Dy(), p.X, p.Y)
}

func (s *Session) logFaceTransition(face bool) {
	if face == s.hadFace {
		return
	}
	s.hadFace = face
	if face {
		monitoring.Logf("[session] %s face acquired at frame %d", s.id, s.index)
	} else {
		monitoring.Logf("[session] %s face lost at frame %d", s.id, s.index)
	}
}
