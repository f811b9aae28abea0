package conflict

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Source identifies the detector that produced a signal
type Source string

const (
	SourceRule      Source = "rule"
	SourceHeuristic Source = "heuristic"
	SourceRetrieval Source = "retrieval"
)

// sourceOrder is the stable order sources are reported in
var sourceOrder = []Source{SourceRule, SourceHeuristic, SourceRetrieval}

// Weight is the share of a source in the merged confidence
func (s Source) Weight() float64 {
	switch s {
	case SourceRule, SourceRetrieval:
		return 0.4
	case SourceHeuristic:
		return 0.2
	}
	return 0
}

// MultipleSensitizers is the second member of the set-level sensitizer verdict
const MultipleSensitizers = "multiple sensitizers"

// Pair is an unordered ingredient pair stored in sorted order
type Pair struct {
	A string
	B string
}

// NewPair returns the canonical ordering of {a, b}
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func (p Pair) String() string {
	return p.A + " + " + p.B
}

func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.A, p.B})
}

func (p *Pair) UnmarshalJSON(data []byte) error {
	var raw [2]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("pair: %w", err)
	}
	*p = NewPair(raw[0], raw[1])
	return nil
}

// Verdict is the merged conflict result for one unordered ingredient pair
type Verdict struct {
	Ingredient1         string   `json:"ingredient1"`
	Ingredient2         string   `json:"ingredient2"`
	Severity            Severity `json:"severity"`
	Description         string   `json:"description"`
	Confidence          float64  `json:"confidence"`
	Sources             []Source `json:"sources"`
	Citations           []string `json:"citations,omitempty"`
	SeparationHours     int      `json:"separation_hours,omitempty"`
	Recommendations     []string `json:"recommendations"`
	SensitivityAdjusted bool     `json:"sensitivity_adjusted"`
	Involved            []string `json:"involved,omitempty"` // set-level verdicts only
}

// Key is the deduplication key of the verdict
func (v Verdict) Key() Pair {
	return NewPair(v.Ingredient1, v.Ingredient2)
}

// Label names the ingredients the verdict is about
func (v Verdict) Label() string {
	if len(v.Involved) > 0 {
		return strings.Join(v.Involved, ", ")
	}
	return v.Ingredient1 + " + " + v.Ingredient2
}

// Touches reports whether any of the verdict's ingredients is in names
func (v Verdict) Touches(names map[string]bool) bool {
	if names[v.Ingredient1] || names[v.Ingredient2] {
		return true
	}
	for _, n := range v.Involved {
		if names[n] {
			return true
		}
	}
	return false
}

// HasSource reports whether src contributed to the verdict
func (v Verdict) HasSource(src Source) bool {
	for _, s := range v.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// outranks implements the survivor rule: higher severity, then higher confidence
func (v Verdict) outranks(other Verdict) bool {
	if v.Severity != other.Severity {
		return v.Severity > other.Severity
	}
	return v.Confidence > other.Confidence
}

// Report is the routine-level result of a conflict analysis
type Report struct {
	Products         []string            `json:"products"`
	Ingredients      []string            `json:"ingredients"`
	Unresolved       []string            `json:"unresolved,omitempty"`
	Conflicts        []Verdict           `json:"conflicts"`
	OverallRiskScore float64             `json:"overall_risk_score"`
	OverallSeverity  Severity            `json:"overall_severity,omitempty"`
	SafetyAssessment string              `json:"safety_assessment"`
	SafeCombinations []Pair              `json:"safe_combinations"`
	Recommendations  []string            `json:"recommendations"`
	ProductAdvice    map[string][]string `json:"product_advice"`
	AnalyzedAt       time.Time           `json:"analyzed_at"`
	Degraded         bool                `json:"degraded,omitempty"`
}

// HasConflicts reports whether any verdict survived
func (r *Report) HasConflicts() bool {
	return r != nil && len(r.Conflicts) > 0
}

// AtLeast returns the verdicts whose severity is min or higher
func (r *Report) AtLeast(min Severity) []Verdict {
	if r == nil {
		return nil
	}
	var out []Verdict
	for _, v := range r.Conflicts {
		if v.Severity >= min {
			out = append(out, v)
		}
	}
	return out
}
