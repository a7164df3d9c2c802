package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the HTTP route tree.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware, outermost first.
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Device gateway shares the listener with the admin API. Terminals dial
	// this path directly; it bypasses the JSON error envelope.
	if s.wsHandler != nil {
		r.Handle(s.gwCfg.Path, s.wsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{id}", s.handleGetDevice)
			r.Post("/{id}/open-door", s.handleOpenDoor)
			r.Post("/{id}/relay", s.handleRelayOut)
		})

		r.Get("/jobs", s.handleListJobs)
		r.Get("/schedules", s.handleListSchedules)
		r.Get("/records", s.handleListRecords)
		r.Get("/audit", s.handleListAudit)
	})

	return r
}
