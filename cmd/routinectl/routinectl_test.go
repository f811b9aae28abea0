package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/beauty-analyzer/internal/conflict"
	"github.com/todmy/beauty-analyzer/internal/routine"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

func init() {
	color.NoColor = true
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadRequest(t *testing.T) {
	path := writeFile(t, "products.json", `{
		"products": [
			{"name": "Night Serum", "ingredients": ["Retinol", {"name": "Water", "active": false}]}
		],
		"user_profile": {"skin_type": "dry", "sensitivity_level": "high"}
	}`)

	req, err := readRequest(path)
	require.NoError(t, err)
	require.Len(t, req.Products, 1)
	assert.Equal(t, []string{"Retinol"}, req.Products[0].ActiveIngredients())
	assert.Equal(t, models.SensitivityHigh, req.UserProfile.Sensitivity)
}

func TestReadRequest_Errors(t *testing.T) {
	_, err := readRequest(writeFile(t, "empty.json", `{"products": []}`))
	assert.ErrorContains(t, err, "no products")

	_, err = readRequest(writeFile(t, "bad.json", `{`))
	assert.Error(t, err)

	_, err = readRequest(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	engine := conflict.NewEngine(conflict.DefaultConfig(), nil, nil, nil, nil)
	report := engine.Analyze(t.Context(), []models.Product{
		models.NewProduct("Night Serum", "Retinol"),
		models.NewProduct("Bright Serum", "Vitamin C"),
	}, models.UserProfile{})

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "Conflict analysis")
	assert.Contains(t, out, "[MEDIUM] retinol + vitamin c")
	assert.Contains(t, out, "separate by 12 hours")
}

func TestPrintRoutine(t *testing.T) {
	rt := routine.NewScheduler(nil, nil).Optimize([]models.Product{
		{Name: "Gentle Cleanser", Category: "cleanser", Ingredients: []models.ProductIngredient{{Name: "Glycerin", Active: true}}},
		{Name: "Sunscreen SPF 50", Ingredients: []models.ProductIngredient{{Name: "Zinc Oxide", Active: true}}},
	}, models.UserProfile{}, nil)

	var buf bytes.Buffer
	printRoutine(&buf, rt)
	out := buf.String()

	assert.Contains(t, out, "Morning routine (~1 min)")
	assert.Contains(t, out, "1. Sunscreen SPF 50 [sunscreen, daily]")
	assert.Contains(t, out, "1. Gentle Cleanser [cleanser, daily]")
	assert.NotContains(t, out, "degraded")
}

func TestRootCommand_AnalyzeJSON(t *testing.T) {
	path := writeFile(t, "products.json", `{"products": [{"name": "Toner", "ingredients": ["Niacinamide"]}]}`)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"analyze", "--json", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"overall_risk_score": 0`)
}
