// Package monitor turns recorded try-on frames into jitter statistics,
// PNG trace plots and HTML trace charts.
package monitor

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/tryon/internal/db"
	"github.com/banshee-data/tryon/internal/tryon/anchors"
)

// AnchorJitter compares frame-to-frame movement of one anchor coordinate
// at each smoothing stage: Raw is the detector output, Mesh follows the
// mesh-wide EMA and Smoothed follows the per-anchor EMA. All three are
// standard deviations of the first differences, in pixels.
//
// MeshReduction and AnchorReduction are the shares removed by each stage
// on its own input. Reduction is the overall share, raw to smoothed.
type AnchorJitter struct {
	Anchor          string  `json:"anchor"`
	Axis            string  `json:"axis"`
	Samples         int     `json:"samples"`
	Raw             float64 `json:"raw_px"`
	Mesh            float64 `json:"mesh_px"`
	Smoothed        float64 `json:"smoothed_px"`
	MeshReduction   float64 `json:"mesh_reduction"`
	AnchorReduction float64 `json:"anchor_reduction"`
	Reduction       float64 `json:"reduction"`
}

// Report summarises a recorded session.
type Report struct {
	Frames        int            `json:"frames"`
	FaceFrames    int            `json:"face_frames"`
	FaceWidthMean float64        `json:"face_width_mean_px"`
	FaceWidthStd  float64        `json:"face_width_std_px"`
	Jitter        []AnchorJitter `json:"jitter"`
}

type anchorSeries struct {
	name                string
	raw, mesh, smoothed func(r *db.FrameRecord) db.XY
}

var series = []anchorSeries{
	{
		anchors.LeftEar,
		func(r *db.FrameRecord) db.XY { return r.RawLeftEar },
		func(r *db.FrameRecord) db.XY { return r.MeshLeftEar },
		func(r *db.FrameRecord) db.XY { return r.LeftEar },
	},
	{
		anchors.RightEar,
		func(r *db.FrameRecord) db.XY { return r.RawRightEar },
		func(r *db.FrameRecord) db.XY { return r.MeshRightEar },
		func(r *db.FrameRecord) db.XY { return r.RightEar },
	},
	{
		anchors.Neck,
		func(r *db.FrameRecord) db.XY { return r.RawNeck },
		func(r *db.FrameRecord) db.XY { return r.MeshNeck },
		func(r *db.FrameRecord) db.XY { return r.Neck },
	},
}

// stageDiffs holds first differences per stage for one axis.
type stageDiffs struct {
	raw, mesh, smoothed []float64
}

// Analyze computes a Report over records, which must be in frame order.
// Differences are only taken between adjacent frames that carry all three
// anchor stages, so dropout gaps and resets do not register as movement.
func Analyze(records []db.FrameRecord) Report {
	rep := Report{Frames: len(records)}

	var widths []float64
	for i := range records {
		if records[i].FaceDetected {
			rep.FaceFrames++
			if records[i].FaceWidth > 0 {
				widths = append(widths, records[i].FaceWidth)
			}
		}
	}
	if len(widths) > 0 {
		rep.FaceWidthMean = stat.Mean(widths, nil)
	}
	if len(widths) > 1 {
		rep.FaceWidthStd = stat.StdDev(widths, nil)
	}

	for _, s := range series {
		var dx, dy stageDiffs
		for i := 1; i < len(records); i++ {
			prev, cur := &records[i-1], &records[i]
			if cur.Index != prev.Index+1 {
				continue
			}
			rp, rc := s.raw(prev), s.raw(cur)
			mp, mc := s.mesh(prev), s.mesh(cur)
			sp, sc := s.smoothed(prev), s.smoothed(cur)
			if !rp.Valid || !rc.Valid || !mp.Valid || !mc.Valid || !sp.Valid || !sc.Valid {
				continue
			}
			dx.raw = append(dx.raw, rc.X-rp.X)
			dy.raw = append(dy.raw, rc.Y-rp.Y)
			dx.mesh = append(dx.mesh, mc.X-mp.X)
			dy.mesh = append(dy.mesh, mc.Y-mp.Y)
			dx.smoothed = append(dx.smoothed, sc.X-sp.X)
			dy.smoothed = append(dy.smoothed, sc.Y-sp.Y)
		}
		rep.Jitter = append(rep.Jitter,
			newAnchorJitter(s.name, "x", dx),
			newAnchorJitter(s.name, "y", dy),
		)
	}
	return rep
}

func newAnchorJitter(anchor, axis string, d stageDiffs) AnchorJitter {
	j := AnchorJitter{
		Anchor:   anchor,
		Axis:     axis,
		Samples:  len(d.raw),
		Raw:      stdDev(d.raw),
		Mesh:     stdDev(d.mesh),
		Smoothed: stdDev(d.smoothed),
	}
	j.MeshReduction = reduction(j.Raw, j.Mesh)
	j.AnchorReduction = reduction(j.Mesh, j.Smoothed)
	j.Reduction = reduction(j.Raw, j.Smoothed)
	return j
}

func reduction(before, after float64) float64 {
	if before <= 0 {
		return 0
	}
	return 1 - after/before
}

func stdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	_, sd := stat.MeanStdDev(x, nil)
	if math.IsNaN(sd) {
		return 0
	}
	return sd
}

// WriteReport prints rep as an aligned text table.
func WriteReport(w io.Writer, rep Report) error {
	fmt.Fprintf(w, "frames: %d (face in %d)\n", rep.Frames, rep.FaceFrames)
	fmt.Fprintf(w, "face width: %.1f px (sd %.2f)\n", rep.FaceWidthMean, rep.FaceWidthStd)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "anchor\taxis\tsamples\traw px\tmesh px\tsmoothed px\tmesh stage\tanchor stage\ttotal\t")
	for _, j := range rep.Jitter {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.3f\t%.3f\t%.3f\t%.0f%%\t%.0f%%\t%.0f%%\t\n",
			j.Anchor, j.Axis, j.Samples, j.Raw, j.Mesh, j.Smoothed,
			100*j.MeshReduction, 100*j.AnchorReduction, 100*j.Reduction)
	}
	return tw.Flush()
}
