package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/todmy/beauty-analyzer/internal/conflict"
	"github.com/todmy/beauty-analyzer/internal/routine"
	"github.com/todmy/beauty-analyzer/internal/storage"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

const maxProducts = 50

// AnalysisRequest carries the products to analyze and the user's profile.
// A product sent without ingredients is resolved by name from the catalogue.
type AnalysisRequest struct {
	Products    []models.Product   `json:"products"`
	UserProfile models.UserProfile `json:"user_profile"`
}

// AnalysisResponse wraps a conflict report with its stored id, when saved
type AnalysisResponse struct {
	ID     string           `json:"id,omitempty"`
	Report *conflict.Report `json:"report"`
}

// RoutineResponse wraps an optimized routine and the analysis it was built from
type RoutineResponse struct {
	ID       string                    `json:"id,omitempty"`
	Routine  *routine.OptimizedRoutine `json:"routine"`
	Analysis *conflict.Report          `json:"analysis"`
}

func (s *Server) handleAnalyzeConflicts(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	report := s.deps.Analyzer.Analyze(r.Context(), req.Products, req.UserProfile)

	resp := AnalysisResponse{Report: report}
	if s.deps.Predictions != nil && req.UserProfile.UserID != "" {
		id, err := s.deps.Predictions.Save(r.Context(), req.UserProfile.UserID, report)
		if err != nil {
			s.log.Warn("failed to save conflict analysis", "user_id", req.UserProfile.UserID, "error", err)
		} else {
			resp.ID = id.String()
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOptimizeRoutine(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	report := s.deps.Analyzer.Analyze(r.Context(), req.Products, req.UserProfile)
	rt := s.deps.Optimizer.Optimize(req.Products, req.UserProfile, report)

	resp := RoutineResponse{Routine: rt, Analysis: report}
	if s.deps.Routines != nil && req.UserProfile.UserID != "" {
		id, err := s.deps.Routines.Save(r.Context(), req.UserProfile.UserID, rt)
		if err != nil {
			s.log.Warn("failed to save routine", "user_id", req.UserProfile.UserID, "error", err)
		} else {
			resp.ID = id.String()
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeAnalysisRequest(w http.ResponseWriter, r *http.Request) (*AnalysisRequest, bool) {
	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	if msg := validateAnalysisRequest(&req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return nil, false
	}

	if err := s.resolveProducts(r.Context(), req.Products); err != nil {
		s.log.Error("failed to resolve products", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to resolve products")
		return nil, false
	}
	return &req, true
}

func validateAnalysisRequest(req *AnalysisRequest) string {
	if len(req.Products) == 0 {
		return "at least one product is required"
	}
	if len(req.Products) > maxProducts {
		return fmt.Sprintf("at most %d products are allowed", maxProducts)
	}
	if st := req.UserProfile.SkinType; st != "" && !st.Valid() {
		return fmt.Sprintf("unknown skin type %q", st)
	}
	for i, p := range req.Products {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Sprintf("product %d has no name", i+1)
		}
	}
	return ""
}

// resolveProducts fills in catalogue products sent by name only
func (s *Server) resolveProducts(ctx context.Context, products []models.Product) error {
	if s.deps.Products == nil {
		return nil
	}

	for i, p := range products {
		if len(p.Ingredients) > 0 {
			continue
		}

		stored, err := s.deps.Products.FindByName(ctx, p.Name)
		if errors.Is(err, storage.ErrNotFound) {
			// left empty; the engine reports it as unresolved
			continue
		}
		if err != nil {
			return fmt.Errorf("product %q: %w", p.Name, err)
		}
		if p.Category != "" {
			stored.Category = p.Category
		}
		stored.UseMorning = p.UseMorning
		products[i] = *stored
	}
	return nil
}
