package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/fortunamind/persistent-mcp/pkg/errors"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	t.Run("passes through successful response", func(t *testing.T) {
		t.Parallel()

		handler := ErrorHandler(nil, func(w http.ResponseWriter, _ *http.Request) error {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("success"))
			return nil
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "success", rec.Body.String())
	})

	t.Run("converts invalid parameters error to 400 with message", func(t *testing.T) {
		t.Parallel()

		handler := ErrorHandler(nil, func(_ http.ResponseWriter, _ *http.Request) error {
			return apperrors.NewInvalidParametersError("invalid input", nil)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid input")
	})

	t.Run("converts not-found error to 404 with message", func(t *testing.T) {
		t.Parallel()

		handler := ErrorHandler(nil, func(_ http.ResponseWriter, _ *http.Request) error {
			return apperrors.NewNotFoundError("resource not found", nil)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "resource not found")
	})

	t.Run("converts conflict error to 409 with message", func(t *testing.T) {
		t.Parallel()

		handler := ErrorHandler(nil, func(_ http.ResponseWriter, _ *http.Request) error {
			return apperrors.NewConflictError("resource already exists", nil)
		})

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code)
		require.Contains(t, rec.Body.String(), "resource already exists")
	})

	t.Run("converts internal error to generic 500 response", func(t *testing.T) {
		t.Parallel()

		handler := ErrorHandler(nil, func(_ http.ResponseWriter, _ *http.Request) error {
			return apperrors.NewInternalError("sensitive database error details", nil)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.False(t, strings.Contains(rec.Body.String(), "sensitive"))
		require.Contains(t, rec.Body.String(), "Internal Server Error")
	})

	t.Run("error without a taxonomy type defaults to 500 with generic message", func(t *testing.T) {
		t.Parallel()

		handler := ErrorHandler(nil, func(_ http.ResponseWriter, _ *http.Request) error {
			return errors.New("plain error without a taxonomy type")
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.False(t, strings.Contains(rec.Body.String(), "plain error"))
		require.Contains(t, rec.Body.String(), "Internal Server Error")
	})
}

func TestHandlerWithError_Type(t *testing.T) {
	t.Parallel()

	var handler HandlerWithError = func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusOK)
		return nil
	}

	wrapped := ErrorHandler(nil, handler)
	require.NotNil(t, wrapped)
}
