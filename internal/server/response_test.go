package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telnet2/quickcmd/internal/model"
	"github.com/telnet2/quickcmd/pkg/types"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, "hello", result["message"])
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&model.ValidationError{Field: "shortcut", Message: "taken", OwnerID: "a"}, http.StatusUnprocessableEntity, types.ErrCodeValidation},
		{&model.NotFoundError{ID: "x"}, http.StatusNotFound, types.ErrCodeNotFound},
		{&model.CycleError{ID: "g", ParentID: "c"}, http.StatusConflict, types.ErrCodeCycle},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeServiceError(w, tt.err)
			assert.Equal(t, tt.status, w.Code)

			var result ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
			assert.Equal(t, tt.code, result.Error.Code)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(types.ErrCodeInvalidRequest))
	assert.Equal(t, http.StatusBadGateway, statusFor(types.ErrCodeExecution))
	assert.Equal(t, http.StatusInternalServerError, statusFor("anything else"))
}
