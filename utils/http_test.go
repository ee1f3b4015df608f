package utils

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteOK(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteOK(rec, map[string]string{"plan": "gold"})

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "gold", data["plan"])
}

func TestWriteNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteNoContent(rec)

	assert.Equal(t, 204, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name      string
		write     func(rec *httptest.ResponseRecorder)
		wantCode  int
		wantError string
	}{
		{
			name:      "bad request",
			write:     func(rec *httptest.ResponseRecorder) { WriteBadRequest(rec, "bad payload", nil) },
			wantCode:  400,
			wantError: "bad_request",
		},
		{
			name:      "unauthorized",
			write:     func(rec *httptest.ResponseRecorder) { WriteUnauthorized(rec, "missing token") },
			wantCode:  401,
			wantError: "unauthorized",
		},
		{
			name:      "forbidden",
			write:     func(rec *httptest.ResponseRecorder) { WriteForbidden(rec, "denied", nil) },
			wantCode:  403,
			wantError: "forbidden",
		},
		{
			name:      "not found",
			write:     func(rec *httptest.ResponseRecorder) { WriteNotFound(rec, "no such user") },
			wantCode:  404,
			wantError: "not_found",
		},
		{
			name:      "conflict",
			write:     func(rec *httptest.ResponseRecorder) { WriteConflict(rec, "already exists") },
			wantCode:  409,
			wantError: "conflict",
		},
		{
			name:      "internal",
			write:     func(rec *httptest.ResponseRecorder) { WriteInternalServerError(rec) },
			wantCode:  500,
			wantError: "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.wantCode, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestWriteForbiddenDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteForbidden(rec, "daily limit reached", map[string]interface{}{"limit": 20})

	body := decodeBody(t, rec)
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 20, details["limit"])
}
