package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/tryon/internal/db"
	"github.com/banshee-data/tryon/internal/monitoring"
	"github.com/banshee-data/tryon/internal/security"
	"github.com/banshee-data/tryon/internal/tryon/pipeline"
	"github.com/banshee-data/tryon/internal/tryon/recorder"
)

var (
	rawColor      = color.RGBA{R: 158, G: 158, B: 158, A: 255}
	meshColor     = color.RGBA{R: 33, G: 150, B: 243, A: 255}
	smoothedColor = color.RGBA{R: 255, G: 152, B: 0, A: 255}
)

// TracePlotter collects processed frames in memory and renders raw versus
// smoothed anchor traces as PNG files. It is a pipeline.FrameObserver.
type TracePlotter struct {
	mu      sync.Mutex
	enabled bool
	records []db.FrameRecord
}

// NewTracePlotter returns an enabled plotter.
func NewTracePlotter() *TracePlotter {
	return &TracePlotter{enabled: true}
}

// ObserveFrame records f while the plotter is enabled.
func (tp *TracePlotter) ObserveFrame(f *pipeline.Frame) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if !tp.enabled {
		return
	}
	tp.records = append(tp.records, recorder.ToRecord(f))
}

// Stop disables sampling. Collected frames are kept for plotting.
func (tp *TracePlotter) Stop() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.enabled = false
}

// Records returns a copy of the collected frames.
func (tp *TracePlotter) Records() []db.FrameRecord {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return append([]db.FrameRecord(nil), tp.records...)
}

// GeneratePlots writes the collected traces into dir and returns the number
// of files written.
func (tp *TracePlotter) GeneratePlots(dir string) (int, error) {
	return GeneratePlots(dir, tp.Records())
}

// GeneratePlots writes one PNG per anchor (x and y against frame index,
// raw, mesh-smoothed and anchor-smoothed) plus a face width plot into dir.
func GeneratePlots(dir string, records []db.FrameRecord) (int, error) {
	if dir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	count := 0
	for _, s := range series {
		for _, axis := range []string{"x", "y"} {
			if err := anchorPlot(dir, s, axis, records); err != nil {
				return count, fmt.Errorf("anchor %s %s: %w", s.name, axis, err)
			}
			count++
		}
	}
	if err := faceWidthPlot(dir, records); err != nil {
		return count, fmt.Errorf("face width: %w", err)
	}
	count++

	monitoring.Logf("[monitor] wrote %d plots to %s", count, dir)
	return count, nil
}

func anchorPlot(dir string, s anchorSeries, axis string, records []db.FrameRecord) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Anchor %s - %s", s.name, axis)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Position (px)"

	pick := func(v db.XY) float64 {
		if axis == "x" {
			return v.X
		}
		return v.Y
	}

	var rawPts, meshPts, smPts plotter.XYs
	for i := range records {
		r := &records[i]
		if v := s.raw(r); v.Valid {
			rawPts = append(rawPts, plotter.XY{X: float64(r.Index), Y: pick(v)})
		}
		if v := s.mesh(r); v.Valid {
			meshPts = append(meshPts, plotter.XY{X: float64(r.Index), Y: pick(v)})
		}
		if v := s.smoothed(r); v.Valid {
			smPts = append(smPts, plotter.XY{X: float64(r.Index), Y: pick(v)})
		}
	}

	if err := addLine(p, "raw", rawPts, rawColor); err != nil {
		return err
	}
	if err := addLine(p, "mesh", meshPts, meshColor); err != nil {
		return err
	}
	if err := addLine(p, "smoothed", smPts, smoothedColor); err != nil {
		return err
	}
	configureLegend(p)

	file := filepath.Join(dir, fmt.Sprintf("anchor_%s_%s.png", s.name, axis))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

func faceWidthPlot(dir string, records []db.FrameRecord) error {
	p := plot.New()
	p.Title.Text = "Face width"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Width (px)"

	var pts plotter.XYs
	for _, r := range records {
		if r.FaceDetected && r.FaceWidth > 0 {
			pts = append(pts, plotter.XY{X: float64(r.Index), Y: r.FaceWidth})
		}
	}
	if err := addLine(p, "face width", pts, smoothedColor); err != nil {
		return err
	}
	configureLegend(p)

	if err := p.Save(14*vg.Inch, 6*vg.Inch, filepath.Join(dir, "face_width.png")); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

func addLine(p *plot.Plot, label string, pts plotter.XYs, c color.Color) error {
	if len(pts) == 0 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}

func configureLegend(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}

// MakePlotOutputDir returns baseDir/<label>/<timestamp> with label made
// filename-safe, or baseDir/session_<timestamp> when label is empty.
func MakePlotOutputDir(baseDir, label string) string {
	ts := time.Now().Format("20060102_150405")
	if label == "" {
		return filepath.Join(baseDir, "session_"+ts)
	}
	return filepath.Join(baseDir, security.SanitizeFilename(label), ts)
}
