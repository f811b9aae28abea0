package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/beauty-analyzer/pkg/models"
)

func TestMergeNoSignals(t *testing.T) {
	v, err := Merge(NewPair("a", "b"), nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMergeCombinesSources(t *testing.T) {
	pair := NewPair("retinol", "vitamin c")
	v, err := Merge(pair, []Signal{
		RetrievalSignal{Severity: SeverityLow, Description: "mild irritation", Confidence: 0.8, Citations: []string{"a.md", "a.md"}},
		HeuristicSignal{Severity: SeverityMedium, Description: "pH", SeparationHours: 12, Confidence: 0.7},
		RuleSignal{Severity: SeverityHigh, Description: "rule", SeparationHours: 6, Confidence: 0.9},
	})
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, SeverityHigh, v.Severity)
	assert.Equal(t, 12, v.SeparationHours)
	assert.Equal(t, []Source{SourceRule, SourceHeuristic, SourceRetrieval}, v.Sources)
	assert.Equal(t, []string{"a.md"}, v.Citations)
	assert.Equal(t, "mild irritation; pH; rule", v.Description)
	// (0.4*0.8 + 0.2*0.7 + 0.4*0.9) / 1.0
	assert.InDelta(t, 0.82, v.Confidence, 1e-9)
}

func TestMergeRenormalizesWeights(t *testing.T) {
	v, err := Merge(NewPair("a", "b"), []Signal{
		HeuristicSignal{Severity: SeverityMedium, Confidence: 0.6},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v.Confidence, 1e-9)
	assert.Equal(t, []Source{SourceHeuristic}, v.Sources)
}

func TestMergeRejectsInvalidSignals(t *testing.T) {
	pair := NewPair("a", "b")

	_, err := Merge(pair, []Signal{RuleSignal{Severity: SeverityHigh, Confidence: 1.7}})
	assert.Error(t, err)

	_, err = Merge(pair, []Signal{RuleSignal{Severity: Severity(0), Confidence: 0.5}})
	assert.Error(t, err)
}

func TestAdjustForSensitivity(t *testing.T) {
	v := &Verdict{Severity: SeverityMedium}
	AdjustForSensitivity(v, models.SensitivityHigh)
	assert.Equal(t, SeverityHigh, v.Severity)
	assert.True(t, v.SensitivityAdjusted)

	// applied once only
	AdjustForSensitivity(v, models.SensitivityHigh)
	assert.Equal(t, SeverityHigh, v.Severity)

	low := &Verdict{Severity: SeverityLow}
	AdjustForSensitivity(low, models.SensitivityLow)
	assert.Equal(t, SeverityLow, low.Severity)

	moderate := &Verdict{Severity: SeverityMedium}
	AdjustForSensitivity(moderate, models.SensitivityModerate)
	assert.Equal(t, SeverityMedium, moderate.Severity)
	assert.False(t, moderate.SensitivityAdjusted)
}

func TestVerdictRecommendations(t *testing.T) {
	recs := verdictRecommendations(Verdict{Severity: SeverityHigh, SeparationHours: 24})
	assert.Equal(t, []string{
		"Use on alternate days or different times",
		"Separate usage by at least 24 hours",
	}, recs)

	multi := verdictRecommendations(Verdict{Severity: SeverityHigh, Involved: []string{"a", "b", "c"}})
	assert.Contains(t, multi, "Introduce products gradually")
}
