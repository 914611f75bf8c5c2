package pubsub

import (
	"encoding/json"
	"net/http"

	"github.com/moraxdb/morax/internal/metastore"
)

// apiError pairs an HTTP status with the JSON error body spec §6.2
// requires. Handlers return one of these sentinels (or classifyErr's
// result) rather than a bare error, so every failure path has an explicit
// status.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(message string) *apiError {
	return &apiError{status: http.StatusBadRequest, code: "InvalidData", message: message}
}

func clientError(message string) *apiError {
	return &apiError{status: http.StatusUnprocessableEntity, code: "ClientError", message: message}
}

// classifyErr maps an internal error to the HTTP status spec §7 assigns
// it: metadata/storage failures and generic client errors (malformed ack
// id, nonexistent subscription) are 422 ("the core maps internal errors
// to 422 unless more specific"); decode errors are 400.
func classifyErr(err error) *apiError {
	if ae, ok := err.(*apiError); ok {
		return ae
	}
	switch err {
	case metastore.ErrNotFound, metastore.ErrTopicAlreadyExists:
		return &apiError{status: http.StatusUnprocessableEntity, code: "NotFound", message: err.Error()}
	default:
		return &apiError{status: http.StatusUnprocessableEntity, code: "Unexpected", message: err.Error()}
	}
}

func writeError(w http.ResponseWriter, err error) {
	ae := classifyErr(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: ae.code, Message: ae.message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
