package conflict

import (
	"fmt"
	"math"
	"strings"

	"github.com/todmy/beauty-analyzer/pkg/models"
)

// Signal is the output of one detector for one pair. The set of implementations is
// closed: RuleSignal, HeuristicSignal and RetrievalSignal.
type Signal interface {
	source() Source
}

// RuleSignal comes from a curated conflict rule
type RuleSignal struct {
	Severity        Severity
	Description     string
	SeparationHours int
	Confidence      float64
}

// HeuristicKind names which heuristic fired
type HeuristicKind string

const (
	HeuristicKnownPair       HeuristicKind = "known_pair"
	HeuristicPH              HeuristicKind = "ph_incompatibility"
	HeuristicMultiSensitizer HeuristicKind = "multiple_sensitizers"
)

// HeuristicSignal comes from curated ingredient-class matching
type HeuristicSignal struct {
	Kind            HeuristicKind
	Severity        Severity
	Description     string
	SeparationHours int
	Confidence      float64
	Involved        []string
}

// RetrievalSignal comes from the knowledge retriever's free-text answer
type RetrievalSignal struct {
	Severity    Severity
	Description string
	Confidence  float64
	Citations   []string
}

func (RuleSignal) source() Source      { return SourceRule }
func (HeuristicSignal) source() Source { return SourceHeuristic }
func (RetrievalSignal) source() Source { return SourceRetrieval }

// Merge combines the signals for one pair into a verdict. It returns nil when there
// are no signals. Severity is the maximum, confidence the source-weighted mean
// renormalized over the contributing sources, separation hours the maximum.
func Merge(pair Pair, signals []Signal) (*Verdict, error) {
	v := &Verdict{Ingredient1: pair.A, Ingredient2: pair.B}

	var weighted, totalWeight float64
	var descriptions []string
	contributed := make(map[Source]bool, len(sourceOrder))

	for _, s := range signals {
		var (
			severity    Severity
			description string
			hours       int
			confidence  float64
		)

		switch sig := s.(type) {
		case nil:
			continue
		case RuleSignal:
			severity, description, hours, confidence = sig.Severity, sig.Description, sig.SeparationHours, sig.Confidence
		case HeuristicSignal:
			severity, description, hours, confidence = sig.Severity, sig.Description, sig.SeparationHours, sig.Confidence
			if len(sig.Involved) > 0 {
				v.Involved = append([]string(nil), sig.Involved...)
			}
		case RetrievalSignal:
			severity, description, confidence = sig.Severity, sig.Description, sig.Confidence
			v.Citations = appendUnique(v.Citations, sig.Citations...)
		default:
			return nil, fmt.Errorf("unsupported signal type %T", s)
		}

		if !severity.Valid() {
			return nil, fmt.Errorf("%s signal for %s: invalid severity %d", s.source(), pair, int(severity))
		}
		if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
			return nil, fmt.Errorf("%s signal for %s: confidence %v outside [0,1]", s.source(), pair, confidence)
		}

		if severity > v.Severity {
			v.Severity = severity
		}
		if hours > v.SeparationHours {
			v.SeparationHours = hours
		}
		if description != "" {
			descriptions = append(descriptions, description)
		}

		w := s.source().Weight()
		weighted += w * confidence
		totalWeight += w
		contributed[s.source()] = true
	}

	if len(contributed) == 0 {
		return nil, nil
	}

	v.Confidence = weighted / totalWeight
	v.Description = strings.Join(descriptions, "; ")
	for _, src := range sourceOrder {
		if contributed[src] {
			v.Sources = append(v.Sources, src)
		}
	}
	return v, nil
}

// AdjustForSensitivity shifts the verdict one step up for high sensitivity and one
// step down for low sensitivity. A verdict is adjusted at most once.
func AdjustForSensitivity(v *Verdict, level models.SensitivityLevel) {
	if v == nil || v.SensitivityAdjusted {
		return
	}
	switch level {
	case models.SensitivityHigh:
		v.Severity = v.Severity.Shift(1)
	case models.SensitivityLow:
		v.Severity = v.Severity.Shift(-1)
	default:
		return
	}
	v.SensitivityAdjusted = true
}

// verdictRecommendations returns the action guidance for a verdict's final severity
func verdictRecommendations(v Verdict) []string {
	var recs []string
	switch v.Severity {
	case SeverityCritical:
		recs = append(recs, "Do not use these ingredients together")
	case SeverityHigh:
		recs = append(recs, "Use on alternate days or different times")
	case SeverityMedium:
		recs = append(recs, "Wait several hours between applications")
	default:
		recs = append(recs, "Monitor skin for irritation")
	}
	if len(v.Involved) > 0 {
		recs = append(recs, "Introduce products gradually", "Consider alternating usage days")
	}
	if v.SeparationHours > 0 {
		recs = append(recs, fmt.Sprintf("Separate usage by at least %d hours", v.SeparationHours))
	}
	return recs
}

func appendUnique(dst []string, values ...string) []string {
	for _, val := range values {
		dup := false
		for _, existing := range dst {
			if existing == val {
				dup = true
				break
			}
		}
		if !dup && val != "" {
			dst = append(dst, val)
		}
	}
	return dst
}
