package server

import (
	"encoding/json"
	"net/http"

	"github.com/telnet2/quickcmd/internal/service"
	"github.com/telnet2/quickcmd/pkg/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ErrorData `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: types.ErrorData{Code: code, Message: message}})
}

// writeServiceError maps a service error to its status and body.
func writeServiceError(w http.ResponseWriter, err error) {
	data := service.ErrorData(err)
	writeJSON(w, statusFor(data.Code), ErrorResponse{Error: data})
}

// writeSuccess writes a success response.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// statusFor returns the HTTP status of an error code.
func statusFor(code string) int {
	switch code {
	case types.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case types.ErrCodeNotFound:
		return http.StatusNotFound
	case types.ErrCodeCycle:
		return http.StatusConflict
	case types.ErrCodeExecution:
		return http.StatusBadGateway
	case types.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
