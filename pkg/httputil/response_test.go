package httputil

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, 200, map[string]string{"hello": "world"})
	require.NoError(t, err)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "world", body["hello"])
}

func TestWriteErrorMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorMessage(rec, 403, "not permitted")

	assert.Equal(t, 403, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not permitted", body["error"])
}

func TestWriteInternalErrorHidesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteInternalError(rec, errors.New("pq: password authentication failed"))

	assert.Equal(t, 500, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestStatusHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(rec *httptest.ResponseRecorder)
		status int
	}{
		{"validation", func(r *httptest.ResponseRecorder) { WriteValidationError(r, "x") }, 400},
		{"unauthorized", func(r *httptest.ResponseRecorder) { WriteUnauthorized(r, "x") }, 401},
		{"forbidden", func(r *httptest.ResponseRecorder) { WriteForbidden(r, "x") }, 403},
		{"not found", func(r *httptest.ResponseRecorder) { WriteNotFound(r, "x") }, 404},
		{"conflict", func(r *httptest.ResponseRecorder) { WriteConflict(r, "x") }, 409},
		{"gone", func(r *httptest.ResponseRecorder) { WriteGone(r, "x") }, 410},
		{"too many requests", func(r *httptest.ResponseRecorder) { WriteTooManyRequests(r, "x") }, 429},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestWriteNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteNoContent(rec)
	assert.Equal(t, 204, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
