package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/todmy/beauty-analyzer/internal/conflict"
	"github.com/todmy/beauty-analyzer/internal/knowledge"
	"github.com/todmy/beauty-analyzer/internal/logger"
	"github.com/todmy/beauty-analyzer/internal/routine"
	"github.com/todmy/beauty-analyzer/internal/storage"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

// Analyzer runs a conflict analysis. *conflict.Engine satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, products []models.Product, profile models.UserProfile) *conflict.Report
}

// Optimizer builds a routine. *routine.Scheduler satisfies it.
type Optimizer interface {
	Optimize(products []models.Product, profile models.UserProfile, report *conflict.Report) *routine.OptimizedRoutine
}

// Deps wires the server's collaborators. Only Analyzer and Optimizer are required;
// the endpoints backed by a nil dependency answer 503.
type Deps struct {
	Analyzer    Analyzer
	Optimizer   Optimizer
	Retriever   knowledge.Retriever
	Products    storage.ProductRepository
	Ingredients storage.IngredientRepository
	Predictions storage.PredictionRepository
	Routines    storage.RoutineRepository
	Log         *logger.Logger
}

type Server struct {
	router *chi.Mux
	deps   Deps
	log    *logger.Logger
}

func NewServer(deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s := &Server{
		router: r,
		deps:   deps,
		log:    logger.OrNop(deps.Log).With("component", "api"),
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/conflicts/analyze", s.handleAnalyzeConflicts)
		r.Post("/routines/optimize", s.handleOptimizeRoutine)
		r.Post("/knowledge/query", s.handleKnowledgeQuery)
		r.Get("/ingredients", s.handleSearchIngredients)
	})
}

// ServeHTTP lets the server be mounted directly in an http.Server or httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
