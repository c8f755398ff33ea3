// Package recorder persists processed frames of a try-on session so that
// smoothing behaviour can be charted and compared after the fact.
package recorder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/tryon/internal/db"
	"github.com/banshee-data/tryon/internal/monitoring"
	"github.com/banshee-data/tryon/internal/timeutil"
	"github.com/banshee-data/tryon/internal/tryon/anchors"
	"github.com/banshee-data/tryon/internal/tryon/pipeline"
)

// DefaultBatchSize is how many frames are buffered before a write.
const DefaultBatchSize = 64

// DefaultFlushInterval bounds how long a partial batch waits for more
// frames, so a slow stream still reaches the store.
const DefaultFlushInterval = 2 * time.Second

// Store is the subset of *db.DB the recorder writes through.
type Store interface {
	CreateSession(s *db.Session) error
	EndSession(id string, at time.Time) error
	SetSessionSize(id string, width, height int) error
	RecordFrames(records []db.FrameRecord) error
}

// Recorder is a pipeline.FrameObserver that batches frames into a Store.
// Write failures are logged and kept; they never reach the frame loop.
type Recorder struct {
	store         Store
	sessionID     string
	batchSize     int
	flushInterval time.Duration
	clock         timeutil.Clock

	mu        sync.Mutex
	batch     []db.FrameRecord
	lastFlush time.Time
	written   int
	err       error
	closed    bool
	sized     bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the clock used for timestamps and the flush interval.
func WithClock(c timeutil.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// WithFlushInterval overrides DefaultFlushInterval. Zero disables
// time-based flushing.
func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) { r.flushInterval = d }
}

// Start creates the session row and returns a recorder for it. A zero
// width or height is filled in from the first frame that has a size.
func Start(store Store, sess *pipeline.Session, label string, width, height int, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		store:         store,
		sessionID:     sess.ID(),
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		clock:         timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}

	now := r.clock.Now()
	row := &db.Session{ID: sess.ID(), Label: label, Width: width, Height: height, StartedAt: now}
	if err := store.CreateSession(row); err != nil {
		return nil, err
	}
	r.lastFlush = now
	r.sized = width > 0 && height > 0
	monitoring.Logf("[recorder] recording session %s", sess.ID())
	return r, nil
}

// SetBatchSize changes the flush threshold. Values below 1 flush every
// frame.
func (r *Recorder) SetBatchSize(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchSize = max(n, 1)
}

// ObserveFrame buffers f and flushes when the batch is full.
func (r *Recorder) ObserveFrame(f *pipeline.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if !r.sized && f.Width > 0 && f.Height > 0 {
		r.sized = true
		if err := r.store.SetSessionSize(r.sessionID, f.Width, f.Height); err != nil {
			monitoring.Logf("[recorder] session %s size not stored: %v", r.sessionID, err)
			r.err = errors.Join(r.err, err)
		}
	}
	rec := ToRecord(f)
	rec.RecordedAt = r.clock.Now()
	r.batch = append(r.batch, rec)
	if len(r.batch) >= r.batchSize || (r.flushInterval > 0 && r.clock.Since(r.lastFlush) >= r.flushInterval) {
		r.flushLocked()
	}
}

// Flush writes any buffered frames and returns the first error seen so far.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
	return r.err
}

// Written reports how many frames reached the store.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close flushes and stamps the session end time. Further frames are
// ignored.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.err
	}
	r.flushLocked()
	r.closed = true
	if err := r.store.EndSession(r.sessionID, r.clock.Now()); err != nil {
		r.err = errors.Join(r.err, err)
	}
	monitoring.Logf("[recorder] session %s closed after %d frames", r.sessionID, r.written)
	return r.err
}

func (r *Recorder) flushLocked() {
	r.lastFlush = r.clock.Now()
	if len(r.batch) == 0 {
		return
	}
	if err := r.store.RecordFrames(r.batch); err != nil {
		monitoring.Logf("[recorder] dropping %d frames of %s: %v", len(r.batch), r.sessionID, err)
		if r.err == nil {
			r.err = fmt.Errorf("recording session %s: %w", r.sessionID, err)
		}
	} else {
		r.written += len(r.batch)
	}
	r.batch = r.batch[:0]
}

// ToRecord converts a processed frame into its stored form.
func ToRecord(f *pipeline.Frame) db.FrameRecord {
	rec := db.FrameRecord{
		SessionID:    f.SessionID,
		Index:        f.Index,
		FaceDetected: f.FaceDetected,
		Width:        f.Width,
		Height:       f.Height,
		FaceWidth:    f.Metrics.FaceWidth,
		AssetID:      f.AssetID,
		PiecesDrawn:  len(f.Commands),
		RecordedAt:   time.Now(),
	}
	if a := f.Anchors; a != nil {
		rec.LeftEar, rec.RightEar, rec.Neck = xy(a.LeftEar), xy(a.RightEar), xy(a.Neck)
	}
	if a := f.Raw; a != nil {
		rec.RawLeftEar, rec.RawRightEar, rec.RawNeck = xy(a.LeftEar), xy(a.RightEar), xy(a.Neck)
	}
	if a := f.Mesh; a != nil {
		rec.MeshLeftEar, rec.MeshRightEar, rec.MeshNeck = xy(a.LeftEar), xy(a.RightEar), xy(a.Neck)
	}
	return rec
}

func xy(p anchors.Point) db.XY {
	return db.XY{X: p.X, Y: p.Y, Valid: true}
}
