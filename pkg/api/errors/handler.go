// Package errors provides HTTP error handling utilities for the API.
package errors

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fortunamind/persistent-mcp/pkg/errors"
)

// HandlerWithError is an HTTP handler that can return an error.
// This signature allows handlers to return errors instead of manually
// writing error responses, enabling centralized error handling.
type HandlerWithError func(http.ResponseWriter, *http.Request) error

// ErrorHandler wraps a HandlerWithError and converts returned errors into
// HTTP responses, using the shared error taxonomy's Code() mapping.
//
// The decorator:
//   - Returns early if no error is returned (handler already wrote response)
//   - Extracts HTTP status code from the error using errors.Code()
//   - For 5xx errors: logs full error details, returns generic message to client
//   - For 4xx errors: returns the error's message to the client
func ErrorHandler(log *zap.SugaredLogger, fn HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		code := errors.Code(err)
		if code >= http.StatusInternalServerError {
			if log != nil {
				log.Errorw("internal server error", "error", err, "path", r.URL.Path)
			}
			http.Error(w, http.StatusText(code), code)
			return
		}
		http.Error(w, err.Error(), code)
	}
}
