package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/todmy/beauty-analyzer/internal/knowledge"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// KnowledgeQueryRequest is a free-text question with optional personalization
type KnowledgeQueryRequest struct {
	Question    string             `json:"question"`
	UserProfile models.UserProfile `json:"user_profile"`
}

func (s *Server) handleKnowledgeQuery(w http.ResponseWriter, r *http.Request) {
	if s.deps.Retriever == nil {
		respondError(w, http.StatusServiceUnavailable, "knowledge base is not configured")
		return
	}

	var req KnowledgeQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		respondError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.deps.Retriever.Query(r.Context(), req.Question, &knowledge.QueryContext{
		SkinType:  req.UserProfile.SkinType,
		Concerns:  req.UserProfile.Concerns,
		Allergies: req.UserProfile.Allergies,
	})
	if err != nil {
		s.log.Error("knowledge query failed", "error", err)
		respondError(w, http.StatusBadGateway, "failed to answer question")
		return
	}

	respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleSearchIngredients(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingredients == nil {
		respondError(w, http.StatusServiceUnavailable, "ingredient catalogue is not configured")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	ingredients, err := s.deps.Ingredients.Search(r.Context(), q, limit)
	if err != nil {
		s.log.Error("ingredient search failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to search ingredients")
		return
	}

	respondJSON(w, http.StatusOK, ingredients)
}
