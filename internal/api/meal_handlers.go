package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// handleListMeals returns recently stored analyses, newest first.
func (s *Server) handleListMeals(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "meal storage not configured")
		return
	}

	limit := parseLimit(r)
	meals, err := s.store.RecentMeals(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list meals")
		writeError(w, http.StatusInternalServerError, "failed to list meals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"meals": meals,
		"limit": limit,
	})
}

// handleGetMeal returns a single stored analysis.
func (s *Server) handleGetMeal(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "meal storage not configured")
		return
	}

	mealID, err := uuid.Parse(r.PathValue("mealID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid meal ID")
		return
	}

	meal, err := s.store.GetMealByID(r.Context(), mealID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to get meal")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if meal == nil {
		writeError(w, http.StatusNotFound, "meal not found")
		return
	}

	writeJSON(w, http.StatusOK, meal)
}

// parseLimit extracts the limit query parameter with defaults.
func parseLimit(r *http.Request) int {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}
