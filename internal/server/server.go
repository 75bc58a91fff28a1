package server

import (
	"log/slog"
	"net/http"

	"churn-dashboard/internal/handlers"
	"churn-dashboard/internal/services"
)

type Server struct {
	churn        *services.Churn
	mux          *http.ServeMux
	logger       *slog.Logger
	pageHandlers *handlers.PageHandlers
	apiHandlers  *handlers.APIHandlers
	sseHandlers  *handlers.SSEHandlers
}

func NewServer(churn *services.Churn, logger *slog.Logger) *Server {
	s := &Server{
		churn:        churn,
		mux:          http.NewServeMux(),
		logger:       logger,
		pageHandlers: handlers.NewPageHandlers(churn, logger),
		apiHandlers:  handlers.NewAPIHandlers(churn, logger),
		sseHandlers:  handlers.NewSSEHandlers(churn, logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.pageHandlers.HandleDashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/summary", s.apiHandlers.HandleSummary)
	s.mux.HandleFunc("GET /api/gender-exits", s.apiHandlers.HandleGenderExits)
	s.mux.HandleFunc("GET /api/activity-exits", s.apiHandlers.HandleActivityExits)
	s.mux.HandleFunc("GET /api/options", s.apiHandlers.HandleOptions)
	s.mux.HandleFunc("GET /api/geography", s.apiHandlers.HandleGeography)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/summary", s.sseHandlers.HandleSummary)
	s.mux.HandleFunc("GET /sse/geography", s.sseHandlers.HandleGeography)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
