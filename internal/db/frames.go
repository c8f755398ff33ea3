package db

import (
	"database/sql"
	"fmt"
	"time"
)

// XY is a nullable pixel position. Valid is false for frames without
// anchors.
type XY struct {
	X, Y  float64
	Valid bool
}

// FrameRecord is one row of session_frames.
type FrameRecord struct {
	SessionID    string
	Index        uint64
	FaceDetected bool
	Width        int
	Height       int
	FaceWidth    float64
	LeftEar      XY
	RightEar     XY
	Neck         XY
	RawLeftEar   XY
	RawRightEar  XY
	RawNeck      XY
	MeshLeftEar  XY
	MeshRightEar XY
	MeshNeck     XY
	AssetID      string
	PiecesDrawn  int
	RecordedAt   time.Time
}

const insertFrameSQL = `
	INSERT INTO session_frames (
		session_id, frame_index, face_detected, width, height, face_width,
		le_x, le_y, re_x, re_y, nk_x, nk_y,
		raw_le_x, raw_le_y, raw_re_x, raw_re_y, raw_nk_x, raw_nk_y,
		mesh_le_x, mesh_le_y, mesh_re_x, mesh_re_y, mesh_nk_x, mesh_nk_y,
		asset_id, pieces_drawn, recorded_unix_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func nullXY(p XY) (any, any) {
	if !p.Valid {
		return nil, nil
	}
	return p.X, p.Y
}

func frameArgs(r *FrameRecord) []any {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}
	args := []any{r.SessionID, int64(r.Index), r.FaceDetected, r.Width, r.Height, r.FaceWidth}
	for _, p := range r.points() {
		x, y := nullXY(p)
		args = append(args, x, y)
	}
	return append(args, r.AssetID, r.PiecesDrawn, r.RecordedAt.UnixMilli())
}

// points lists the anchor columns in table order.
func (r *FrameRecord) points() []XY {
	return []XY{
		r.LeftEar, r.RightEar, r.Neck,
		r.RawLeftEar, r.RawRightEar, r.RawNeck,
		r.MeshLeftEar, r.MeshRightEar, r.MeshNeck,
	}
}

// RecordFrame inserts a single frame.
func (db *DB) RecordFrame(r *FrameRecord) error {
	if _, err := db.Exec(insertFrameSQL, frameArgs(r)...); err != nil {
		return fmt.Errorf("failed to record frame %d of %s: %w", r.Index, r.SessionID, err)
	}
	return nil
}

// RecordFrames inserts a batch of frames in one transaction.
func (db *DB) RecordFrames(records []FrameRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertFrameSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		if _, err := stmt.Exec(frameArgs(&records[i])...); err != nil {
			return fmt.Errorf("failed to record frame %d of %s: %w", records[i].Index, records[i].SessionID, err)
		}
	}
	return tx.Commit()
}

// FrameTrace returns every recorded frame of a session in frame order.
func (db *DB) FrameTrace(sessionID string) ([]FrameRecord, error) {
	rows, err := db.Query(`
		SELECT session_id, frame_index, face_detected, width, height, face_width,
			le_x, le_y, re_x, re_y, nk_x, nk_y,
			raw_le_x, raw_le_y, raw_re_x, raw_re_y, raw_nk_x, raw_nk_y,
			mesh_le_x, mesh_le_y, mesh_re_x, mesh_re_y, mesh_nk_x, mesh_nk_y,
			asset_id, pieces_drawn, recorded_unix_ms
		FROM session_frames
		WHERE session_id = ?
		ORDER BY frame_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []FrameRecord
	for rows.Next() {
		var (
			r        FrameRecord
			idx      int64
			recorded int64
			coords   [18]sql.NullFloat64
		)
		dest := []any{&r.SessionID, &idx, &r.FaceDetected, &r.Width, &r.Height, &r.FaceWidth}
		for i := range coords {
			dest = append(dest, &coords[i])
		}
		dest = append(dest, &r.AssetID, &r.PiecesDrawn, &recorded)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}

		r.Index = uint64(idx)
		r.RecordedAt = time.UnixMilli(recorded)
		points := []*XY{
			&r.LeftEar, &r.RightEar, &r.Neck,
			&r.RawLeftEar, &r.RawRightEar, &r.RawNeck,
			&r.MeshLeftEar, &r.MeshRightEar, &r.MeshNeck,
		}
		for i, p := range points {
			x, y := coords[2*i], coords[2*i+1]
			*p = XY{X: x.Float64, Y: y.Float64, Valid: x.Valid && y.Valid}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
