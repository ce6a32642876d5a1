package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fortunamind/persistent-mcp/pkg/storage"
)

// HealthcheckRouter sets up the /health and /status routes. /health is a
// bare liveness probe that never touches the backend; /status additionally
// checks that the storage backend is reachable, for use by operators who
// want to distinguish "process is up" from "process can actually serve
// requests."
func HealthcheckRouter(backend storage.Backend) http.Handler {
	routes := &healthcheckRoutes{backend: backend}
	r := chi.NewRouter()
	r.Get("/health", routes.getHealthcheck)
	r.Get("/status", routes.getStatus)
	return r
}

type healthcheckRoutes struct {
	backend storage.Backend
}

//	 getHealthcheck
//		@Summary		Liveness check
//		@Description	Check if the process is up. Does not touch the storage backend.
//		@Tags			system
//		@Success		204	{string}	string	"No Content"
//		@Router			/health [get]
func (*healthcheckRoutes) getHealthcheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

//	 getStatus
//		@Summary		Readiness check
//		@Description	Check if the storage backend is reachable
//		@Tags			system
//		@Success		204	{string}	string	"No Content"
//		@Failure		503	{string}	string	"Service Unavailable"
//		@Router			/status [get]
func (h *healthcheckRoutes) getStatus(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Health(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
