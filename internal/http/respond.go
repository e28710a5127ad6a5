package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"backoffice/internal/core"
	"backoffice/internal/log"
)

// messageBody is the error shape of task, report and generic failures.
type messageBody struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// errorBody is the error shape of the client endpoints.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

var (
	errBadJSON       = errors.New("invalid JSON body")
	errBodyTooLarge  = errors.New("request body too large")
	msgInternal      = "Internal server error"
	msgTaskNotFound  = "Task not found"
	msgClientMissing = "Client not found"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Default().WithComponent(log.ComponentHTTP).Error("Failed to encode response", log.FieldError, err)
	}
}

func writeInternal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusInternalServerError, messageBody{Message: msgInternal})
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, messageBody{Message: "Rate limit exceeded. Please try again later."})
}

// internalError logs err with the request context and answers with a
// generic 500. The detail never reaches the caller.
func internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.FieldOperation, op, log.FieldPath, r.URL.Path, log.FieldError, err)
	writeInternal(w, r)
}

// decodeJSON reads one JSON value from the body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errBadJSON
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadJSON)
		}
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

// writeDecodeError answers a failed decodeJSON; clientShape selects the
// client endpoints' error field.
func writeDecodeError(w http.ResponseWriter, err error, clientShape bool) {
	status, msg := http.StatusBadRequest, "Invalid JSON body"
	if errors.Is(err, errBodyTooLarge) {
		status, msg = http.StatusRequestEntityTooLarge, "Request body too large"
	}
	if clientShape {
		writeJSON(w, status, errorBody{Error: msg})
		return
	}
	writeJSON(w, status, messageBody{Message: msg})
}

// validationFields extracts per-field messages from a validation error.
func validationFields(err error) (map[string]string, bool) {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields, true
	}
	if errors.Is(err, core.ErrValidation) {
		return nil, true
	}
	return nil, false
}
