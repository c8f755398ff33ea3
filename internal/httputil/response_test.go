package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(http.ResponseWriter, string)
		code  int
	}{
		{"bad request", BadRequest, http.StatusBadRequest},
		{"not found", NotFound, http.StatusNotFound},
		{"internal", InternalServerError, http.StatusInternalServerError},
		{"bad gateway", BadGateway, http.StatusBadGateway},
		{"unavailable", func(w http.ResponseWriter, msg string) {
			WriteJSONError(w, http.StatusServiceUnavailable, msg)
		}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, "asset host unreachable")

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "asset host unreachable", resp["error"])
		})
	}
}

func TestWriteJSONOK_MatchesStandardEncoding(t *testing.T) {
	t.Parallel()

	type item struct {
		PublicID string `json:"public_id"`
		Width    int    `json:"width"`
		Format   string `json:"format,omitempty"`
	}
	data := []item{{PublicID: "gold_earrings/hoop", Width: 40}}

	rec := httptest.NewRecorder()
	WriteJSONOK(rec, data)
	assert.Equal(t, http.StatusOK, rec.Code)

	want, err := json.Marshal(data)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "format")
}

func TestWriteJSON_EncodeFailureIsLogged(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]any{"bad": make(chan int)})
	assert.Equal(t, http.StatusCreated, rec.Code, "status is committed before encoding")
}

func TestWriteBody(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteBody(rec, "image/png", []byte{0x89, 'P', 'N', 'G'})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, rec.Body.Bytes())
}
