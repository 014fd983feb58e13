package httpapi

import "github.com/go-chi/chi/v5"

// Routes mounts all API handlers on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.SearchQuestions)
		r.Get("/search/suggestions", s.SearchSuggestions)
	})
}
