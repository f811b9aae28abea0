package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/beauty-analyzer/internal/conflict"
	"github.com/todmy/beauty-analyzer/internal/knowledge"
	"github.com/todmy/beauty-analyzer/internal/routine"
	"github.com/todmy/beauty-analyzer/internal/storage"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

type fakeProducts map[string]models.Product

func (f fakeProducts) FindByName(_ context.Context, name string) (*models.Product, error) {
	p, ok := f[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

type fakeIngredients struct {
	got   string
	limit int
}

func (f *fakeIngredients) GetByName(context.Context, string) (*models.Ingredient, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeIngredients) Search(_ context.Context, q string, limit int) ([]models.Ingredient, error) {
	f.got, f.limit = q, limit
	return []models.Ingredient{{ID: 1, Name: "Retinol"}}, nil
}

type fakePredictions struct {
	saved []*conflict.Report
	err   error
}

func (f *fakePredictions) Save(_ context.Context, _ string, r *conflict.Report) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.saved = append(f.saved, r)
	return uuid.New(), nil
}

type fakeRoutines struct {
	users []string
}

func (f *fakeRoutines) Save(_ context.Context, userID string, _ *routine.OptimizedRoutine) (uuid.UUID, error) {
	f.users = append(f.users, userID)
	return uuid.New(), nil
}

type fakeRetriever struct {
	question string
	qc       *knowledge.QueryContext
	err      error
}

func (f *fakeRetriever) Query(_ context.Context, q string, qc *knowledge.QueryContext) (*knowledge.Answer, error) {
	f.question, f.qc = q, qc
	if f.err != nil {
		return nil, f.err
	}
	return &knowledge.Answer{Text: "Apply retinol at night.", Confidence: 0.8, Sources: []string{"retinoids.md"}}, nil
}

func newTestServer(deps Deps) *Server {
	if deps.Analyzer == nil {
		deps.Analyzer = conflict.NewEngine(conflict.DefaultConfig(), nil, nil, nil, nil)
	}
	if deps.Optimizer == nil {
		deps.Optimizer = routine.NewScheduler(nil, nil)
	}
	return NewServer(deps)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestServer(Deps{}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyzeConflicts(t *testing.T) {
	preds := &fakePredictions{}
	s := newTestServer(Deps{Predictions: preds})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/conflicts/analyze", map[string]interface{}{
		"products": []interface{}{
			map[string]interface{}{"name": "Night Serum", "ingredients": []string{"Retinol"}},
			map[string]interface{}{"name": "Day Serum", "ingredients": []string{"Vitamin C"}},
		},
		"user_profile": map[string]interface{}{"user_id": "user-1", "skin_type": "oily"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Report)
	assert.Len(t, resp.Report.Conflicts, 1)
	assert.NotEmpty(t, resp.ID)
	assert.Len(t, preds.saved, 1)
}

func TestAnalyzeConflicts_SaveFailureStillAnswers(t *testing.T) {
	s := newTestServer(Deps{Predictions: &fakePredictions{err: errors.New("db down")}})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/conflicts/analyze", AnalysisRequest{
		Products:    []models.Product{models.NewProduct("Serum", "Niacinamide")},
		UserProfile: models.UserProfile{UserID: "user-1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.ID)
	assert.NotNil(t, resp.Report)
}

func TestAnalyzeConflicts_Validation(t *testing.T) {
	s := newTestServer(Deps{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"garbage", `{`, "invalid request body"},
		{"no products", `{"products":[]}`, "at least one product is required"},
		{"unnamed product", `{"products":[{"name":" ","ingredients":["Retinol"]}]}`, "product 1 has no name"},
		{"bad skin type", `{"products":[{"name":"A","ingredients":["Retinol"]}],"user_profile":{"skin_type":"scaly"}}`, `unknown skin type "scaly"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/conflicts/analyze", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestAnalyzeConflicts_ResolvesProductsByName(t *testing.T) {
	catalogue := fakeProducts{
		"Night Serum": models.NewProduct("Night Serum", "Retinol"),
	}
	s := newTestServer(Deps{Products: catalogue})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/conflicts/analyze", AnalysisRequest{
		Products: []models.Product{
			{Name: "Night Serum"},
			models.NewProduct("Day Serum", "Vitamin C"),
			{Name: "Mystery Cream"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Report.Conflicts, 1)
	assert.Equal(t, []string{"Mystery Cream"}, resp.Report.Unresolved)
}

func TestOptimizeRoutine(t *testing.T) {
	routines := &fakeRoutines{}
	s := newTestServer(Deps{Routines: routines})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/routines/optimize", AnalysisRequest{
		Products: []models.Product{
			{Name: "Gentle Cleanser", Category: "cleanser", Ingredients: []models.ProductIngredient{{Name: "Glycerin", Active: true}}},
			{Name: "Sunscreen SPF 50", Ingredients: []models.ProductIngredient{{Name: "Zinc Oxide", Active: true}}},
		},
		UserProfile: models.UserProfile{UserID: "user-2"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RoutineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Routine)
	require.NotNil(t, resp.Analysis)
	require.Len(t, resp.Routine.Morning, 1)
	assert.Equal(t, "Sunscreen SPF 50", resp.Routine.Morning[0].ProductName)
	require.Len(t, resp.Routine.Evening, 1)
	assert.Equal(t, "Gentle Cleanser", resp.Routine.Evening[0].ProductName)
	assert.Equal(t, []string{"user-2"}, routines.users)
	assert.NotEmpty(t, resp.ID)
}

func TestKnowledgeQuery(t *testing.T) {
	retriever := &fakeRetriever{}
	s := newTestServer(Deps{Retriever: retriever})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/knowledge/query", KnowledgeQueryRequest{
		Question:    "  When should I use retinol? ",
		UserProfile: models.UserProfile{SkinType: models.SkinDry, Concerns: []string{"aging"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var answer knowledge.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &answer))
	assert.Equal(t, 0.8, answer.Confidence)
	assert.Equal(t, "When should I use retinol?", retriever.question)
	require.NotNil(t, retriever.qc)
	assert.Equal(t, models.SkinDry, retriever.qc.SkinType)
}

func TestKnowledgeQuery_Errors(t *testing.T) {
	rec := doJSON(t, newTestServer(Deps{}), http.MethodPost, "/api/v1/knowledge/query", KnowledgeQueryRequest{Question: "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s := newTestServer(Deps{Retriever: &fakeRetriever{}})
	rec = doJSON(t, s, http.MethodPost, "/api/v1/knowledge/query", KnowledgeQueryRequest{Question: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s = newTestServer(Deps{Retriever: &fakeRetriever{err: errors.New("llm down")}})
	rec = doJSON(t, s, http.MethodPost, "/api/v1/knowledge/query", KnowledgeQueryRequest{Question: "x"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSearchIngredients(t *testing.T) {
	ings := &fakeIngredients{}
	s := newTestServer(Deps{Ingredients: ings})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/ingredients?q=retin&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "retin", ings.got)
	assert.Equal(t, 5, ings.limit)

	var got []models.Ingredient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Retinol", got[0].Name)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/ingredients", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/ingredients?q=retin&limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
