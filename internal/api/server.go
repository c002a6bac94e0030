// Package api exposes the engine over HTTP for UI bridges and other
// process-local clients.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyejin/flowd/internal/bus"
	"github.com/hyejin/flowd/internal/connector"
	"github.com/hyejin/flowd/internal/engine"
	"github.com/hyejin/flowd/internal/export"
	"github.com/hyejin/flowd/internal/registry"
)

// DocumentLister exposes metadata for documents exported so far.
type DocumentLister interface {
	Records() []export.Record
}

type Server struct {
	engine     *engine.Engine
	events     *bus.Bus
	instances  *registry.Registry
	connectors *connector.Registry
	documents  DocumentLister
}

func NewServer(eng *engine.Engine, events *bus.Bus, instances *registry.Registry, connectors *connector.Registry, documents DocumentLister) *Server {
	return &Server{
		engine:     eng,
		events:     events,
		instances:  instances,
		connectors: connectors,
		documents:  documents,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/workflows/execute", s.executeWorkflow)
		r.Get("/workflows/{workflowId}/runs", s.listWorkflowRuns)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/{id}", s.getRun)
			r.Get("/{id}/events", s.getRunEvents)
			r.Get("/{id}/stream", s.streamRunEvents)
			r.Post("/{id}/pause", s.pauseRun)
			r.Post("/{id}/resume", s.resumeRun)
			r.Delete("/{id}", s.deleteRun)
		})

		r.Get("/connectors", s.listConnectors)
		r.Get("/documents", s.listDocuments)

		r.Route("/instances", func(r chi.Router) {
			r.Post("/", s.startInstance)
			r.Get("/", s.listInstances)
			r.Post("/{id}/pause", s.pauseInstance)
			r.Post("/{id}/resume", s.resumeInstance)
			r.Post("/{id}/complete", s.completeInstance)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
