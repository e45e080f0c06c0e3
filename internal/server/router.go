// internal/server/router.go
//
// Ops router: Prometheus scrape endpoint plus a readiness probe that turns
// green once container provisioning has succeeded.

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadyFunc reports whether the process finished provisioning.
type ReadyFunc func() bool

// Router mounts /metrics and /healthz.
func Router(ready ReadyFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if ready == nil || !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("provisioning\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}
