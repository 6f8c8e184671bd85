package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/flowindex/pkg/indexerr"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteError writes err as a JSON error response, choosing the status from its
// indexerr.Kind: 400 for invalid queries, 404 for missing workflows, 500 otherwise.
// Storage failures are not echoed to the client.
func WriteError(w http.ResponseWriter, err error) {
	kind := indexerr.KindOf(err)
	status := StatusForKind(kind)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	WriteJSON(w, status, ErrorResponse{Error: message, Kind: kind.String()})
}

// StatusForKind maps an error kind to an HTTP status code
func StatusForKind(kind indexerr.Kind) int {
	switch kind {
	case indexerr.KindQuery:
		return http.StatusBadRequest
	case indexerr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteConflict writes a conflict error (409)
func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteAccepted writes a 202 response for work started in the background
func WriteAccepted(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusAccepted, data)
}
