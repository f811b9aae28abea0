package conflict

import (
	"context"
	"fmt"
	"strings"

	"github.com/todmy/beauty-analyzer/internal/ingredient"
	"github.com/todmy/beauty-analyzer/internal/knowledge"
	"github.com/todmy/beauty-analyzer/internal/rules"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

// RuleConfidence is the confidence assigned to every curated rule hit
const RuleConfidence = 0.9

// Detector produces at most one signal for a pair. A nil signal with a nil error
// means the detector found nothing.
type Detector interface {
	Detect(ctx context.Context, pair Pair, profile models.UserProfile) (Signal, error)
}

// RuleStore looks up the curated rule for an unordered ingredient pair.
// Lookup(a, b) and Lookup(b, a) must return the same rule.
type RuleStore interface {
	Lookup(ctx context.Context, a, b string, skinType models.SkinType) (*models.ConflictRule, error)
}

// RuleDetector turns rule store hits into signals
type RuleDetector struct {
	store RuleStore
}

func NewRuleDetector(store RuleStore) *RuleDetector {
	return &RuleDetector{store: store}
}

func (d *RuleDetector) Detect(ctx context.Context, pair Pair, profile models.UserProfile) (Signal, error) {
	rule, err := d.store.Lookup(ctx, pair.A, pair.B, profile.SkinType)
	if err != nil {
		return nil, fmt.Errorf("rule lookup: %w", err)
	}
	if rule == nil || !rule.AppliesTo(profile.SkinType) {
		return nil, nil
	}

	severity, err := ParseSeverity(rule.Severity)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", pair, err)
	}

	return RuleSignal{
		Severity:        severity,
		Description:     rule.Description,
		SeparationHours: rule.SeparationHours,
		Confidence:      RuleConfidence,
	}, nil
}

// HeuristicDetector matches ingredient names against curated ingredient classes
type HeuristicDetector struct {
	rules rules.Heuristics
}

func NewHeuristicDetector(h rules.Heuristics) *HeuristicDetector {
	return &HeuristicDetector{rules: h}
}

// Detect checks the known problem pairs first, then acid/base pH incompatibility
func (d *HeuristicDetector) Detect(_ context.Context, pair Pair, _ models.UserProfile) (Signal, error) {
	for _, kp := range d.rules.KnownPairs {
		if !kp.Matches(pair.A, pair.B) {
			continue
		}
		severity, err := ParseSeverity(kp.Severity)
		if err != nil {
			return nil, err
		}
		return HeuristicSignal{
			Kind:            HeuristicKnownPair,
			Severity:        severity,
			Description:     kp.Reason,
			SeparationHours: kp.SeparationHours,
			Confidence:      d.rules.KnownPairConfidence,
		}, nil
	}

	acidA, baseA := ingredient.ContainsAny(pair.A, d.rules.PHAcids), ingredient.ContainsAny(pair.A, d.rules.PHBases)
	acidB, baseB := ingredient.ContainsAny(pair.B, d.rules.PHAcids), ingredient.ContainsAny(pair.B, d.rules.PHBases)
	if (acidA && baseB) || (baseA && acidB) {
		return HeuristicSignal{
			Kind:        HeuristicPH,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("pH incompatibility between %s and %s", pair.A, pair.B),
			Confidence:  d.rules.PHConfidence,
		}, nil
	}

	return nil, nil
}

// DetectSet emits one signal when enough sensitizers appear across the whole set
func (d *HeuristicDetector) DetectSet(names []string) *HeuristicSignal {
	var matched []string
	for _, n := range names {
		if ingredient.ContainsAny(n, d.rules.Sensitizers) {
			matched = append(matched, n)
		}
	}
	if len(matched) < d.rules.MinSensitizers {
		return nil
	}

	return &HeuristicSignal{
		Kind:        HeuristicMultiSensitizer,
		Severity:    SeverityHigh,
		Description: "High risk of irritation from multiple sensitizing ingredients: " + strings.Join(matched, ", "),
		Confidence:  d.rules.MultiSensitizerConfidence,
		Involved:    matched,
	}
}

// RetrievalDetector asks the knowledge retriever about a pair and scans the answer
// for conflict language
type RetrievalDetector struct {
	retriever        knowledge.Retriever
	threshold        float64
	keywords         rules.Retrieval
	descriptionLimit int
}

func NewRetrievalDetector(r knowledge.Retriever, threshold float64, keywords rules.Retrieval, descriptionLimit int) *RetrievalDetector {
	return &RetrievalDetector{
		retriever:        r,
		threshold:        threshold,
		keywords:         keywords,
		descriptionLimit: descriptionLimit,
	}
}

func (d *RetrievalDetector) Detect(ctx context.Context, pair Pair, profile models.UserProfile) (Signal, error) {
	answer, err := d.retriever.Query(ctx, BuildQuestion(pair, profile), &knowledge.QueryContext{
		SkinType:  profile.SkinType,
		Concerns:  profile.Concerns,
		Allergies: profile.Allergies,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	if answer == nil || answer.Confidence < d.threshold {
		return nil, nil
	}

	text := strings.ToLower(answer.Text)
	if !containsAnyWord(text, d.keywords.ConflictKeywords) {
		return nil, nil
	}

	return RetrievalSignal{
		Severity:    d.intensity(text),
		Description: truncate(answer.Text, d.descriptionLimit),
		Confidence:  answer.Confidence,
		Citations:   answer.Sources,
	}, nil
}

func (d *RetrievalDetector) intensity(text string) Severity {
	switch {
	case containsAnyWord(text, d.keywords.Intensity.Critical):
		return SeverityCritical
	case containsAnyWord(text, d.keywords.Intensity.High):
		return SeverityHigh
	case containsAnyWord(text, d.keywords.Intensity.Low):
		return SeverityLow
	}
	return SeverityMedium
}

// BuildQuestion phrases the compatibility question sent to the retriever
func BuildQuestion(pair Pair, profile models.UserProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Can %s and %s be used together in a skincare routine? ", pair.A, pair.B)
	b.WriteString("Describe any chemical incompatibility, pH conflicts, physical formulation issues, ")
	b.WriteString("concentration dependence, AM/PM timing requirements and safety contraindications.")
	if profile.SkinType != "" {
		fmt.Fprintf(&b, " Consider %s skin type.", profile.SkinType)
	}
	if len(profile.Concerns) > 0 {
		fmt.Fprintf(&b, " Skin concerns: %s.", strings.Join(profile.Concerns, ", "))
	}
	return b.String()
}

func containsAnyWord(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// StaticRuleStore serves conflict rules from memory. Exact pairs win; otherwise a
// rule matches when each of its ingredients is contained in one of the queried names.
type StaticRuleStore struct {
	exact map[Pair]models.ConflictRule
	rules []models.ConflictRule
}

func NewStaticRuleStore(list []models.ConflictRule) *StaticRuleStore {
	s := &StaticRuleStore{
		exact: make(map[Pair]models.ConflictRule, len(list)),
		rules: make([]models.ConflictRule, 0, len(list)),
	}
	for _, r := range list {
		r.Ingredient1 = ingredient.Normalize(r.Ingredient1)
		r.Ingredient2 = ingredient.Normalize(r.Ingredient2)
		key := NewPair(r.Ingredient1, r.Ingredient2)
		if _, dup := s.exact[key]; dup {
			continue
		}
		s.exact[key] = r
		s.rules = append(s.rules, r)
	}
	return s
}

func (s *StaticRuleStore) Lookup(_ context.Context, a, b string, skinType models.SkinType) (*models.ConflictRule, error) {
	a, b = ingredient.Normalize(a), ingredient.Normalize(b)

	if r, ok := s.exact[NewPair(a, b)]; ok {
		return applicable(r, skinType), nil
	}
	for _, r := range s.rules {
		forward := strings.Contains(a, r.Ingredient1) && strings.Contains(b, r.Ingredient2)
		reverse := strings.Contains(b, r.Ingredient1) && strings.Contains(a, r.Ingredient2)
		if forward || reverse {
			return applicable(r, skinType), nil
		}
	}
	return nil, nil
}

func applicable(r models.ConflictRule, skinType models.SkinType) *models.ConflictRule {
	if !r.AppliesTo(skinType) {
		return nil
	}
	return &r
}
