package conflict

import (
	"fmt"
	"math"

	"github.com/todmy/beauty-analyzer/pkg/models"
)

// Safety narratives keyed on the overall risk score
const (
	NarrativeNoConflicts = "No significant conflicts detected. Routine appears safe for general use."
	NarrativeLow         = "Low risk routine with minor considerations. Monitor for any irritation."
	NarrativeModerate    = "Moderate risk routine. Follow timing recommendations carefully."
	NarrativeHigh        = "High risk routine. Consider modifications or professional consultation."
	NarrativeCritical    = "Critical risk detected. Strongly recommend dermatologist consultation before use."
	NarrativeFailure     = "Analysis failed - please consult a dermatologist"
)

const manualReview = "System error occurred - manual review recommended"

// RiskScore is the mean of severity weight times confidence, 0 without verdicts
func RiskScore(verdicts []Verdict) float64 {
	if len(verdicts) == 0 {
		return 0
	}
	var sum float64
	for _, v := range verdicts {
		sum += v.Severity.Weight() * v.Confidence
	}
	return math.Min(sum/float64(len(verdicts)), 1)
}

// SafetyNarrative returns the banded assessment for a risk score
func SafetyNarrative(risk float64) string {
	switch {
	case risk == 0:
		return NarrativeNoConflicts
	case risk < 0.3:
		return NarrativeLow
	case risk < 0.6:
		return NarrativeModerate
	case risk < 0.8:
		return NarrativeHigh
	default:
		return NarrativeCritical
	}
}

// SafeCombinations lists every pair of names not covered by a verdict
func SafeCombinations(names []string, verdicts []Verdict) []Pair {
	conflicted := make(map[Pair]bool, len(verdicts))
	for _, v := range verdicts {
		conflicted[v.Key()] = true
	}
	safe := make([]Pair, 0)
	for _, p := range allPairs(names) {
		if !conflicted[p] {
			safe = append(safe, p)
		}
	}
	return safe
}

func (e *Engine) buildReport(in input, verdicts []Verdict, profile models.UserProfile) *Report {
	risk := RiskScore(verdicts)

	var overall Severity
	for _, v := range verdicts {
		if v.Severity > overall {
			overall = v.Severity
		}
	}

	return &Report{
		Products:         in.names,
		Ingredients:      in.ingredients,
		Unresolved:       in.unresolved,
		Conflicts:        verdicts,
		OverallRiskScore: risk,
		OverallSeverity:  overall,
		SafetyAssessment: SafetyNarrative(risk),
		SafeCombinations: SafeCombinations(in.ingredients, verdicts),
		Recommendations:  recommendations(verdicts, profile),
		ProductAdvice:    productAdvice(in, verdicts),
		AnalyzedAt:       e.now().UTC(),
	}
}

func recommendations(verdicts []Verdict, profile models.UserProfile) []string {
	var recs []string

	if len(verdicts) == 0 {
		recs = append(recs,
			"No major conflicts detected between these ingredients.",
			"Always perform patch tests when introducing new products.",
		)
	} else {
		var hasMedium bool
		for _, v := range verdicts {
			switch v.Severity {
			case SeverityCritical:
				recs = append(recs, fmt.Sprintf("Do not combine %s", v.Label()))
			case SeverityHigh:
				if v.SeparationHours > 0 {
					recs = append(recs, fmt.Sprintf("Separate %s by at least %d hours", v.Label(), v.SeparationHours))
				} else {
					recs = append(recs, fmt.Sprintf("Use %s on alternate days or at different times", v.Label()))
				}
			case SeverityMedium:
				hasMedium = true
			}
		}
		if hasMedium {
			recs = append(recs, "Allow adequate time between conflicting product applications")
		}
		recs = append(recs,
			"Patch test new products before full application",
			"Introduce one product at a time to monitor reactions",
			"Use morning/evening separation for conflicting ingredients",
		)
	}

	if profile.SkinType == models.SkinSensitive {
		recs = append(recs,
			"Start with lower concentrations and less frequent use",
			"Consider using products every other day initially",
		)
	}
	if len(verdicts) > 0 {
		recs = append(recs, "Consult a dermatologist for personalized advice")
	}
	return recs
}

func productAdvice(in input, verdicts []Verdict) map[string][]string {
	advice := make(map[string][]string, len(in.products))
	for _, p := range in.products {
		names := in.byProductName[p.Name]

		var touching []Verdict
		var worst Severity
		for _, v := range verdicts {
			if v.Touches(names) {
				touching = append(touching, v)
				if v.Severity > worst {
					worst = v.Severity
				}
			}
		}

		if len(touching) == 0 {
			advice[p.Name] = []string{"No significant conflicts detected"}
			continue
		}

		var lines []string
		switch worst {
		case SeverityCritical:
			lines = append(lines, "CRITICAL: Review usage with dermatologist")
		case SeverityHigh:
			lines = append(lines, "HIGH RISK: Use with caution and timing separation")
		case SeverityMedium:
			lines = append(lines, "MODERATE: Allow time between applications")
		default:
			lines = append(lines, "Monitor for any adverse reactions")
		}
		for _, v := range touching {
			if v.SeparationHours > 0 {
				lines = append(lines, fmt.Sprintf("Wait %d hours before/after using products with %s", v.SeparationHours, v.Label()))
			}
		}
		advice[p.Name] = lines
	}
	return advice
}

// validate rejects reports carrying values a collaborator should never produce
func validate(r *Report) error {
	if math.IsNaN(r.OverallRiskScore) || r.OverallRiskScore < 0 || r.OverallRiskScore > 1 {
		return fmt.Errorf("risk score %v outside [0,1]", r.OverallRiskScore)
	}
	for _, v := range r.Conflicts {
		if !v.Severity.Valid() {
			return fmt.Errorf("verdict %s: invalid severity", v.Key())
		}
		if math.IsNaN(v.Confidence) || v.Confidence < 0 || v.Confidence > 1 {
			return fmt.Errorf("verdict %s: confidence %v outside [0,1]", v.Key(), v.Confidence)
		}
	}
	return nil
}

func (e *Engine) fallback(in input) *Report {
	return &Report{
		Products:         in.names,
		Ingredients:      in.ingredients,
		Unresolved:       in.unresolved,
		Conflicts:        []Verdict{},
		SafetyAssessment: NarrativeFailure,
		SafeCombinations: []Pair{},
		Recommendations:  []string{manualReview},
		ProductAdvice:    map[string][]string{},
		AnalyzedAt:       e.now().UTC(),
		Degraded:         true,
	}
}
