// Package api provides the meal analysis API server.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PierreDenaes/deploy-sub002/internal/llm"
	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

// Analyzer runs one meal analysis. It always returns a result; failures
// surface as degraded results, never as errors.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest, emitter llm.ProgressEmitter) *models.AnalysisResult
}

// MealStore persists finished analyses and serves the history endpoints.
type MealStore interface {
	SaveMeal(ctx context.Context, result *models.AnalysisResult) error
	GetMealByID(ctx context.Context, id uuid.UUID) (*models.AnalysisResult, error)
	RecentMeals(ctx context.Context, limit int) ([]models.AnalysisResult, error)
}

// Server is the API server.
type Server struct {
	analyzer       Analyzer
	store          MealStore
	logger         zerolog.Logger
	allowedOrigins string
	mux            *http.ServeMux
}

// Config holds API server collaborators. A nil Store disables the history
// endpoints and the write-behind.
type Config struct {
	Analyzer       Analyzer
	Store          MealStore
	Logger         zerolog.Logger
	AllowedOrigins string
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	origins := cfg.AllowedOrigins
	if origins == "" {
		origins = "*"
	}

	s := &Server{
		analyzer:       cfg.Analyzer,
		store:          cfg.Store,
		logger:         cfg.Logger.With().Str("component", "api").Logger(),
		allowedOrigins: origins,
		mux:            http.NewServeMux(),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/analyze/text", s.handleAnalyzeText)
	s.mux.HandleFunc("POST /api/analyze/image", s.handleAnalyzeImage)
	s.mux.HandleFunc("GET /api/analyze/stream", s.handleAnalyzeStream)

	s.mux.HandleFunc("GET /api/meals", s.handleListMeals)
	s.mux.HandleFunc("GET /api/meals/{mealID}", s.handleGetMeal)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers
	w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigins)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
