package db

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminRequest(t *testing.T, mux *http.ServeMux, path, remote string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestAttachAdminRoutes_Tailsql(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateSession(&Session{ID: "s1", Label: "demo"}))

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	w := adminRequest(t, mux, "/debug/tailsql/", "127.0.0.1:5000")
	assert.Equal(t, http.StatusOK, w.Code)

	w = adminRequest(t, mux, "/debug/tailsql/", "203.0.113.9:5000")
	assert.Equal(t, http.StatusForbidden, w.Code, "debug routes are loopback or tailnet only")
}

func TestAttachAdminRoutes_Backup(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateSession(&Session{ID: "s1"}))

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	w := adminRequest(t, mux, "/debug/backup", "127.0.0.1:5000")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	gr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	defer gr.Close()
	data, err := io.ReadAll(gr)
	require.NoError(t, err)
	require.Greater(t, len(data), 16)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))
}
