package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls s.respondError(w, r, err)
//  3. Error is mapped via importer.MapError to get a user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. The mapped message goes out as JSON with a status derived from the error

import (
	"context"
	"errors"
	"net/http"

	"github.com/pearbase/contact-import/internal/importer"
	"github.com/pearbase/contact-import/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses. It carries
// both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error server-side and returns the mapped
// user message as JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg := importer.MapError(err)
	statusCode := statusFor(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSONBody(w, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor maps pipeline errors to HTTP status codes. Unknown errors are
// treated as server faults.
func statusFor(err error) int {
	var parseErr *importer.ParseError

	switch {
	case errors.Is(err, importer.ErrSessionNotFound),
		errors.Is(err, importer.ErrRowNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, importer.ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.Is(err, importer.ErrFileTooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrEmptyFile),
		errors.Is(err, importer.ErrNoHeaders),
		errors.As(err, &parseErr),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
