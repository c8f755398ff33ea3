// Command tryon-synth writes a synthetic landmark recording in JSON Lines
// form, suitable as input for tryon-replay or POST /api/frame.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/tryon/internal/tryon/landmarks"
)

type params struct {
	Frames        int
	Width, Height int
	Seed          int64
	Jitter        float64
	Sway          float64
	DropoutEvery  int
	DropoutLength int
	FrameMs       int64
}

func main() {
	var p params
	out := flag.String("out", "-", "Output file ('-' for stdout)")
	flag.IntVar(&p.Frames, "frames", 300, "Number of frames")
	flag.IntVar(&p.Width, "width", 640, "Frame width in pixels")
	flag.IntVar(&p.Height, "height", 480, "Frame height in pixels")
	flag.Int64Var(&p.Seed, "seed", 1, "Random seed")
	flag.Float64Var(&p.Jitter, "jitter", 0.002, "Per-landmark noise stddev, normalised units")
	flag.Float64Var(&p.Sway, "sway", 0.05, "Horizontal sway amplitude, normalised units")
	flag.IntVar(&p.DropoutEvery, "dropout-every", 0, "Frames between detection dropouts (0 disables)")
	flag.IntVar(&p.DropoutLength, "dropout-length", 5, "Frames per dropout")
	flag.Int64Var(&p.FrameMs, "frame-ms", 33, "Timestamp step per frame in milliseconds")
	flag.Parse()

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("failed to create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	bw := bufio.NewWriter(w)
	if err := generate(bw, p); err != nil {
		log.Fatal(err)
	}
	if err := bw.Flush(); err != nil {
		log.Fatal(err)
	}
}

func generate(w io.Writer, p params) error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", p.Width, p.Height)
	}
	gen := landmarks.NewSyntheticGenerator(p.Width, p.Height, p.Seed)
	gen.Jitter = p.Jitter
	gen.SwayAmplitude = p.Sway
	gen.DropoutEvery = p.DropoutEvery
	gen.DropoutLength = p.DropoutLength

	enc := landmarks.NewEncoder(w)
	for i := 0; i < p.Frames; i++ {
		f := gen.NextFrame()
		f.TimestampMs = int64(f.Index-1) * p.FrameMs
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return nil
}
