package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunamind/persistent-mcp/pkg/storage/memory"
)

func newTestBackend(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s, err := memory.Open(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetHealthcheck(t *testing.T) {
	t.Parallel()

	routes := &healthcheckRoutes{backend: newTestBackend(t)}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()

	routes.getHealthcheck(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, resp.Body.String())
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	t.Run("returns 204 when backend is reachable", func(t *testing.T) {
		t.Parallel()
		routes := &healthcheckRoutes{backend: newTestBackend(t)}

		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		resp := httptest.NewRecorder()

		routes.getStatus(resp, req)

		assert.Equal(t, http.StatusNoContent, resp.Code)
		assert.Empty(t, resp.Body.String())
	})

	t.Run("returns 503 when backend is unreachable", func(t *testing.T) {
		t.Parallel()
		s := newTestBackend(t)
		require.NoError(t, s.Close())
		routes := &healthcheckRoutes{backend: s}

		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		resp := httptest.NewRecorder()

		routes.getStatus(resp, req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
		assert.NotEmpty(t, resp.Body.String())
	})
}
