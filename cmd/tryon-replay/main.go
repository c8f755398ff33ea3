// Command tryon-replay renders a recorded landmark stream through the
// overlay pipeline. It can write composited PNG frames, record the session
// to SQLite, plot anchor traces and print a jitter report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/banshee-data/tryon/internal/config"
	"github.com/banshee-data/tryon/internal/db"
	"github.com/banshee-data/tryon/internal/monitoring"
	"github.com/banshee-data/tryon/internal/tryon/assets"
	"github.com/banshee-data/tryon/internal/tryon/compose"
	"github.com/banshee-data/tryon/internal/tryon/landmarks"
	"github.com/banshee-data/tryon/internal/tryon/monitor"
	"github.com/banshee-data/tryon/internal/tryon/pipeline"
	"github.com/banshee-data/tryon/internal/tryon/recorder"
)

type options struct {
	In        string
	Asset     string
	Video     string
	OutDir    string
	Every     int
	Watermark *string
	Tuning    string
	DBPath    string
	Label     string
	PlotsDir  string
	ChartFile string
	Report    bool
}

type summary struct {
	Frames    int
	Faces     int
	Written   int
	SessionID string
	Plots     int
}

func main() {
	var o options
	var watermark, logLevel string
	flag.StringVar(&o.In, "in", "", "JSON Lines landmark recording (required)")
	flag.StringVar(&o.Asset, "asset", "", "Overlay asset image (file path or URL)")
	flag.StringVar(&o.Video, "video", "", "Background still for captured frames (black when empty)")
	flag.StringVar(&o.OutDir, "out", "", "Directory for composited PNG frames (none when empty)")
	flag.IntVar(&o.Every, "every", 1, "Write every Nth frame")
	flag.StringVar(&watermark, "watermark", compose.DefaultWatermark, "Watermark label (empty disables)")
	flag.StringVar(&o.Tuning, "tuning", "", "Tuning JSON file")
	flag.StringVar(&o.DBPath, "db", "", "Record the replay into this SQLite database")
	flag.StringVar(&o.Label, "label", "replay", "Session label")
	flag.StringVar(&o.PlotsDir, "plots", "", "Write anchor trace PNG plots under this directory")
	flag.StringVar(&o.ChartFile, "chart", "", "Write an HTML trace chart to this file")
	flag.BoolVar(&o.Report, "report", false, "Print a jitter report")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level")
	flag.Parse()

	logger, err := monitoring.NewLogger(monitoring.LoggerOptions{Level: logLevel})
	if err != nil {
		log.Fatal(err)
	}
	monitoring.UseLogrus(logger)

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "watermark" {
			o.Watermark = &watermark
		}
	})

	if o.In == "" {
		flag.Usage()
		os.Exit(2)
	}

	s, err := run(context.Background(), o, os.Stdout)
	if err != nil {
		logger.Fatal(err)
	}
	fmt.Fprintf(os.Stderr, "replayed %d frames (%d with a face), wrote %d images, session %s\n", s.Frames, s.Faces, s.Written, s.SessionID)
}

// run replays o.In. When a database is configured the recording is closed
// on every return path, and a failed close fails the run.
func run(ctx context.Context, o options, stdout io.Writer) (sum summary, err error) {
	cfg := pipeline.DefaultConfig()
	if o.Tuning != "" {
		t, err := config.LoadTuningConfig(o.Tuning)
		if err != nil {
			return sum, err
		}
		if cfg, err = pipeline.ConfigFromTuning(t); err != nil {
			return sum, err
		}
	}
	if o.Watermark != nil {
		cfg.Watermark = *o.Watermark
	}
	if o.Every < 1 {
		o.Every = 1
	}

	in, err := os.Open(o.In)
	if err != nil {
		return sum, fmt.Errorf("failed to open recording: %w", err)
	}
	defer in.Close()

	surface := compose.NewImageSurface(0, 0)
	surface.Interpolator = cfg.Interpolator
	sess := pipeline.NewSession(cfg, surface)
	sum.SessionID = sess.ID()

	loader := assets.NewLoader(nil)
	if o.Asset != "" {
		a, err := loader.Load(ctx, o.Asset)
		if err != nil {
			return sum, err
		}
		sess.SelectAsset(a)
	}

	var video image.Image
	if o.Video != "" {
		if video, err = loadImage(o.Video); err != nil {
			return sum, err
		}
	}

	var rec *recorder.Recorder
	if o.DBPath != "" {
		var database *db.DB
		if database, err = db.NewDB(o.DBPath); err != nil {
			return sum, err
		}
		defer database.Close()
		if rec, err = recorder.Start(database, sess, o.Label, 0, 0); err != nil {
			return sum, err
		}
		defer func() {
			if cerr := rec.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("recording incomplete: %w", cerr))
			}
		}()
		sess.AddObserver(rec)
	}

	tp := monitor.NewTracePlotter()
	sess.AddObserver(tp)

	if o.OutDir != "" {
		if err := os.MkdirAll(o.OutDir, 0755); err != nil {
			return sum, fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	dec := landmarks.NewDecoder(in)
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		lf, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, err
		}
		set, err := lf.Set()
		if err != nil {
			return sum, err
		}
		if lf.Width > 0 && lf.Height > 0 {
			sess.Resize(lf.Width, lf.Height)
		}

		f := sess.ProcessFrame(set)
		sum.Frames++
		if f.FaceDetected {
			sum.Faces++
		}

		if o.OutDir == "" || (sum.Frames-1)%o.Every != 0 || surface.Bounds().Empty() {
			continue
		}
		bg := video
		if bg == nil {
			bg = blank(surface.Bounds())
		}
		out := compose.Capture(bg, surface.Image(), cfg.Watermark)
		if err := writePNG(filepath.Join(o.OutDir, fmt.Sprintf("frame_%06d.png", f.Index)), out); err != nil {
			return sum, err
		}
		sum.Written++
	}

	tp.Stop()
	records := tp.Records()

	if o.PlotsDir != "" {
		if sum.Plots, err = tp.GeneratePlots(monitor.MakePlotOutputDir(o.PlotsDir, o.Label)); err != nil {
			return sum, err
		}
	}
	if o.ChartFile != "" {
		cf, err := os.Create(o.ChartFile)
		if err != nil {
			return sum, fmt.Errorf("failed to create chart file: %w", err)
		}
		if err := monitor.RenderTraceChart(cf, sess.ID(), records); err != nil {
			cf.Close()
			return sum, err
		}
		if err := cf.Close(); err != nil {
			return sum, err
		}
	}
	if o.Report {
		if err := monitor.WriteReport(stdout, monitor.Analyze(records)); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func blank(b image.Rectangle) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)
	return img
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
