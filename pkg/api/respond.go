package api

import (
	"context"
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
	"github.com/otherjamesbrown/gendercode/pkg/logging"
)

// errorResponse is the JSON error envelope returned by every route.
type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, logging.RequestIDKey, id)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code gcerrors.ErrorCode, message string) {
	writeErrorStatus(w, r, gcerrors.HTTPStatus(code), string(code), message)
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error:     code,
		Message:   message,
		Retryable: gcerrors.IsRetryable(gcerrors.ErrorCode(code)),
		RequestID: chimw.GetReqID(r.Context()),
	})
}

// writeErr classifies err and writes the matching envelope.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, gcerrors.CodeOf(err), err.Error())
}
