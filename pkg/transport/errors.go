package transport

import (
	"encoding/json"
	"net/http"
)

// Error types used in JSON error bodies.
const (
	ErrorTypeServer           = "server_error"
	ErrorTypeNotFound         = "not_found"
	ErrorTypeMethodNotAllowed = "method_not_allowed"
	ErrorTypeUnavailable      = "unavailable"
)

// ErrorBody is the detail of an error response.
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON envelope for all error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteError writes a JSON error response with the given status.
func WriteError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorBody{Type: errType, Message: message}})
}

// WriteJSON writes v as a JSON response with status 200.
func WriteJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
