// Package httpstatus exposes a read-only view of CleanupEngine state over
// HTTP, grounded on fawad-mazhar/naxos's internal/api/routes — the same
// go-chi/chi/v5 router, middleware stack, and JSON-everywhere convention,
// but richer because this engine's state model has more to report than a
// single workflow status string. It issues no deletions and holds no
// business logic.
package httpstatus

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flowforge/eagerclean/pkg/cleanup"
)

// NewRouter builds the status API router over engine.
func NewRouter(engine *cleanup.CleanupEngine) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", healthHandler)
	r.Get("/report", reportHandler(engine))
	r.Get("/processes", processesHandler(engine))
	r.Get("/tasks/{id}", taskHandler(engine))
	r.Get("/paths", pathsHandler(engine))

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func reportHandler(engine *cleanup.CleanupEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(engine.Report())
	}
}

func processesHandler(engine *cleanup.CleanupEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(engine.ListProcesses())
	}
}

func taskHandler(engine *cleanup.CleanupEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		task, ok := engine.GetTask(id)
		if !ok {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(task)
	}
}

func pathsHandler(engine *cleanup.CleanupEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(engine.ListPaths())
	}
}
