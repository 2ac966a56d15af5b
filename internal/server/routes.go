package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Post("/message", s.postMessage)

	r.Get("/tree", s.getTree)
	r.Route("/scope/{scope}", func(r chi.Router) {
		r.Get("/", s.getScope)
		r.Get("/history", s.getHistory)
	})
	r.Get("/command/{ref}", s.getCommand)

	r.Route("/terminal", func(r chi.Router) {
		r.Get("/", s.listTerminals)
		r.Get("/{name}", s.getTerminal)
	})

	// Streaming
	r.Get("/event", s.allEvents)
	r.Get("/ws", s.websocket)

	r.Get("/health", s.health)
	r.Post("/instance/dispose", s.disposeInstance)
}
