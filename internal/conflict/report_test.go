package conflict

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/beauty-analyzer/pkg/models"
)

func TestRiskScore(t *testing.T) {
	assert.Zero(t, RiskScore(nil))

	got := RiskScore([]Verdict{
		{Severity: SeverityCritical, Confidence: 1},
		{Severity: SeverityLow, Confidence: 0.4},
	})
	assert.InDelta(t, (1.0+0.1)/2, got, 1e-9)
}

func TestSafetyNarrativeBands(t *testing.T) {
	assert.Equal(t, NarrativeNoConflicts, SafetyNarrative(0))
	assert.Equal(t, NarrativeLow, SafetyNarrative(0.29))
	assert.Equal(t, NarrativeModerate, SafetyNarrative(0.3))
	assert.Equal(t, NarrativeHigh, SafetyNarrative(0.6))
	assert.Equal(t, NarrativeCritical, SafetyNarrative(0.8))
}

func TestSafeCombinations(t *testing.T) {
	safe := SafeCombinations([]string{"a", "b", "c"}, []Verdict{{Ingredient1: "b", Ingredient2: "a"}})
	assert.Equal(t, []Pair{{"a", "c"}, {"b", "c"}}, safe)
	assert.NotNil(t, SafeCombinations(nil, nil))
}

func TestRecommendationsForSensitiveSkin(t *testing.T) {
	recs := recommendations([]Verdict{
		{Ingredient1: "a", Ingredient2: "b", Severity: SeverityCritical},
		{Ingredient1: "c", Ingredient2: "d", Severity: SeverityMedium},
	}, models.UserProfile{SkinType: models.SkinSensitive})

	assert.Equal(t, "Do not combine a + b", recs[0])
	assert.Contains(t, recs, "Allow adequate time between conflicting product applications")
	assert.Contains(t, recs, "Consider using products every other day initially")
	assert.Equal(t, "Consult a dermatologist for personalized advice", recs[len(recs)-1])
}

func TestReportJSON(t *testing.T) {
	r := Report{
		Conflicts: []Verdict{{
			Ingredient1: "retinol",
			Ingredient2: "vitamin c",
			Severity:    SeverityMedium,
			Confidence:  0.7,
			Sources:     []Source{SourceHeuristic},
		}},
		OverallSeverity:  SeverityMedium,
		SafeCombinations: []Pair{NewPair("z", "a")},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out Report
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, SeverityMedium, out.Conflicts[0].Severity)
	assert.Equal(t, Pair{"a", "z"}, out.SafeCombinations[0])

	// a report without verdicts omits the overall severity
	empty, err := json.Marshal(Report{})
	require.NoError(t, err)
	assert.NotContains(t, string(empty), "overall_severity")
}
