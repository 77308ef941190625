package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

type analyzeTextRequest struct {
	Description string `json:"description"`
}

type analyzeImageRequest struct {
	Image   string `json:"image"`
	Caption string `json:"caption,omitempty"`
}

// handleAnalyzeText analyzes a meal description.
func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req analyzeTextRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	result := s.analyzer.Analyze(r.Context(), models.AnalysisRequest{
		Modality:  models.ModalityText,
		InputText: req.Description,
	}, nil)

	go s.persist(result)
	writeJSON(w, http.StatusOK, result)
}

// handleAnalyzeImage analyzes a meal photo given by locator (data URI,
// file path, or URL), with an optional caption.
func (s *Server) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	var req analyzeImageRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}

	result := s.analyzer.Analyze(r.Context(), models.AnalysisRequest{
		Modality: models.ModalityImage,
		ImageRef: req.Image,
		Caption:  req.Caption,
	}, nil)

	go s.persist(result)
	writeJSON(w, http.StatusOK, result)
}

// handleAnalyzeStream runs an analysis and streams progress events over SSE.
// The final result rides on the "done" event.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	description := r.URL.Query().Get("description")
	image := r.URL.Query().Get("image")
	if description == "" && image == "" {
		http.Error(w, "description or image parameter required", http.StatusBadRequest)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emitter := NewSSEEmitter(w)
	if emitter == nil {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	req := models.AnalysisRequest{Modality: models.ModalityText, InputText: description}
	if image != "" {
		req = models.AnalysisRequest{
			Modality: models.ModalityImage,
			ImageRef: image,
			Caption:  r.URL.Query().Get("caption"),
		}
	}

	result := s.analyzer.Analyze(r.Context(), req, emitter)
	go s.persist(result)
}

// persist writes the result behind the response. The client already has its
// result, so failures are only logged.
func (s *Server) persist(result *models.AnalysisResult) {
	if s.store == nil || result == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.SaveMeal(ctx, result); err != nil {
		s.logger.Warn().Err(err).Str("id", result.ID.String()).Msg("failed to save meal")
	}
}
