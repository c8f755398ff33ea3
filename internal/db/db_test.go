package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "tryon.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_AppliesMigrations(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	fsys, err := MigrationsFS()
	require.NoError(t, err)

	version, dirty, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.False(t, dirty)

	latest, err := GetLatestMigrationVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.Equal(t, uint(3), latest)

	status, err := db.GetMigrationStatus(fsys)
	require.NoError(t, err)
	assert.Equal(t, true, status["schema_migrations_exists"])

	// Reopening an up-to-date database is a no-op.
	require.NoError(t, db.MigrateUp(fsys))
}

func TestMigrateDownAndUp(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	fsys, err := MigrationsFS()
	require.NoError(t, err)

	require.NoError(t, db.MigrateDown(fsys))
	version, _, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	var meshCols int
	err = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('session_frames') WHERE name LIKE 'mesh_%'`).Scan(&meshCols)
	require.NoError(t, err)
	assert.Equal(t, 0, meshCols)

	require.NoError(t, db.MigrateDown(fsys))
	version, _, err = db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var frames int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='session_frames'`).Scan(&frames)
	require.NoError(t, err)
	assert.Equal(t, 0, frames)

	require.NoError(t, db.MigrateTo(fsys, 3))
	version, _, err = db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	err = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('session_frames') WHERE name LIKE 'mesh_%'`).Scan(&meshCols)
	require.NoError(t, err)
	assert.Equal(t, 6, meshCols)
}

func TestOpenDB_EmptyVersion(t *testing.T) {
	t.Parallel()

	db, err := OpenDB(filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer db.Close()

	fsys, err := MigrationsFS()
	require.NoError(t, err)
	version, dirty, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)
}

func TestSessions_CreateGetListEnd(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	base := time.UnixMilli(1_760_000_000_000)

	first := &Session{ID: "a1", Label: "demo", Width: 1280, Height: 720, StartedAt: base}
	second := &Session{ID: "b2", StartedAt: base.Add(time.Minute)}
	require.NoError(t, db.CreateSession(first))
	require.NoError(t, db.CreateSession(second))
	assert.Error(t, db.CreateSession(&Session{ID: "a1"}), "duplicate id")
	assert.Error(t, db.CreateSession(&Session{}), "missing id")

	got, err := db.GetSession("a1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Label)
	assert.True(t, got.StartedAt.Equal(base))
	assert.Nil(t, got.EndedAt)

	require.NoError(t, db.EndSession("a1", base.Add(30*time.Second)))
	got, err = db.GetSession("a1")
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, 30*time.Second, got.EndedAt.Sub(got.StartedAt))

	list, err := db.ListSessions(0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b2", list[0].ID, "newest first")

	_, err = db.GetSession("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, db.EndSession("missing", base), ErrSessionNotFound)

	require.NoError(t, db.SetSessionSize("b2", 640, 480))
	got, err = db.GetSession("b2")
	require.NoError(t, err)
	assert.Equal(t, 640, got.Width)
	assert.Equal(t, 480, got.Height)
	assert.ErrorIs(t, db.SetSessionSize("missing", 1, 1), ErrSessionNotFound)
}

func TestFrames_RoundTrip(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	require.NoError(t, db.CreateSession(&Session{ID: "s"}))

	at := time.UnixMilli(1_760_000_000_500)
	records := []FrameRecord{
		{
			SessionID: "s", Index: 1, FaceDetected: true, Width: 640, Height: 480, FaceWidth: 140.5,
			LeftEar: XY{X: 200, Y: 240, Valid: true}, RightEar: XY{X: 440, Y: 240, Valid: true}, Neck: XY{X: 320, Y: 400, Valid: true},
			RawLeftEar: XY{X: 201, Y: 239, Valid: true}, RawRightEar: XY{X: 441, Y: 241, Valid: true}, RawNeck: XY{X: 321, Y: 399, Valid: true},
			MeshLeftEar: XY{X: 200.5, Y: 239.5, Valid: true}, MeshRightEar: XY{X: 440.5, Y: 240.5, Valid: true}, MeshNeck: XY{X: 320.5, Y: 399.5, Valid: true},
			AssetID: "hoop", PiecesDrawn: 3, RecordedAt: at,
		},
		{SessionID: "s", Index: 2, Width: 640, Height: 480, RecordedAt: at},
	}
	require.NoError(t, db.RecordFrames(records[:1]))
	require.NoError(t, db.RecordFrame(&records[1]))

	trace, err := db.FrameTrace("s")
	require.NoError(t, err)

	opt := cmpopts.EquateApproxTime(time.Millisecond)
	if diff := cmp.Diff(records, trace, opt); diff != "" {
		t.Errorf("FrameTrace() mismatch (-want +got):\n%s", diff)
	}

	s, err := db.GetSession("s")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Frames)
	assert.Equal(t, 1, s.Faces)

	// Duplicate frame index is rejected.
	assert.Error(t, db.RecordFrame(&FrameRecord{SessionID: "s", Index: 1}))
	// Frames must belong to a known session.
	assert.Error(t, db.RecordFrame(&FrameRecord{SessionID: "ghost", Index: 1}))
}

func TestDeleteSession_CascadesFrames(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	require.NoError(t, db.CreateSession(&Session{ID: "s"}))
	require.NoError(t, db.RecordFrame(&FrameRecord{SessionID: "s", Index: 1}))

	require.NoError(t, db.DeleteSession("s"))
	trace, err := db.FrameTrace("s")
	require.NoError(t, err)
	assert.Empty(t, trace)
	assert.ErrorIs(t, db.DeleteSession("s"), ErrSessionNotFound)
}

func TestGetLatestMigrationVersion(t *testing.T) {
	t.Parallel()

	fsys, err := MigrationsFS()
	require.NoError(t, err)
	v, err := GetLatestMigrationVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
}
