// Package rules holds the curated ingredient tables used by conflict detection and
// routine scheduling. A Set is loaded once and never mutated afterwards, so a single
// value can be shared by concurrent analyses.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/todmy/beauty-analyzer/internal/ingredient"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

//go:embed default.yaml
var defaultYAML []byte

var severities = map[string]bool{"low": true, "medium": true, "high": true, "critical": true}

// Set is an immutable bundle of rule tables
type Set struct {
	Heuristics    Heuristics            `yaml:"heuristics"`
	Retrieval     Retrieval             `yaml:"retrieval"`
	ConflictRules []models.ConflictRule `yaml:"conflict_rules"`
	Scheduling    Scheduling            `yaml:"scheduling"`
}

// KnownPair is a hard-coded problem combination; either side matches by substring
type KnownPair struct {
	Left            []string `yaml:"left"`
	Right           []string `yaml:"right"`
	Severity        string   `yaml:"severity"`
	Reason          string   `yaml:"reason"`
	SeparationHours int      `yaml:"separation_hours"`
}

// Matches reports whether the unordered pair {a, b} fits this known pair
func (k KnownPair) Matches(a, b string) bool {
	return (ingredient.ContainsAny(a, k.Left) && ingredient.ContainsAny(b, k.Right)) ||
		(ingredient.ContainsAny(b, k.Left) && ingredient.ContainsAny(a, k.Right))
}

type Heuristics struct {
	PHAcids                   []string    `yaml:"ph_acids"`
	PHBases                   []string    `yaml:"ph_bases"`
	Photosensitizers          []string    `yaml:"photosensitizers"`
	Sensitizers               []string    `yaml:"sensitizers"`
	MinSensitizers            int         `yaml:"min_sensitizers"`
	KnownPairs                []KnownPair `yaml:"known_pairs"`
	KnownPairConfidence       float64     `yaml:"known_pair_confidence"`
	PHConfidence              float64     `yaml:"ph_confidence"`
	MultiSensitizerConfidence float64     `yaml:"multi_sensitizer_confidence"`
}

type Retrieval struct {
	ConflictKeywords []string  `yaml:"conflict_keywords"`
	Intensity        Intensity `yaml:"intensity"`
}

// Intensity maps severity words in free text to a severity band
type Intensity struct {
	Critical []string `yaml:"critical"`
	High     []string `yaml:"high"`
	Low      []string `yaml:"low"`
}

// CategoryKeywords lists name keywords for one product category
type CategoryKeywords struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// TimelineBand is one line of the expected-results estimate
type TimelineBand struct {
	Patterns []string `yaml:"patterns"`
	Text     string   `yaml:"text"`
}

type Scheduling struct {
	Categories              []CategoryKeywords `yaml:"categories"`
	ActiveIngredients       []string           `yaml:"active_ingredients"`
	MoisturizingIngredients []string           `yaml:"moisturizing_ingredients"`
	DefaultCategory         string             `yaml:"default_category"`

	MorningPreferred     []string `yaml:"morning_preferred"`
	EveningPreferred     []string `yaml:"evening_preferred"`
	Photosensitive       []string `yaml:"photosensitive"`
	PhotosensitiveWeight int      `yaml:"photosensitive_weight"`

	StrongActives    []string `yaml:"strong_actives"`
	ExfoliantActives []string `yaml:"exfoliant_actives"`

	MorningOrder []string `yaml:"morning_order"`
	EveningOrder []string `yaml:"evening_order"`

	WaitMinutes        map[string]int `yaml:"wait_minutes"`
	DefaultWaitMinutes int            `yaml:"default_wait_minutes"`
	IntroductionBatch  int            `yaml:"introduction_batch"`

	Instructions       map[string]string `yaml:"instructions"`
	DefaultInstruction string            `yaml:"default_instruction"`

	ConcernIngredients  map[string][]string `yaml:"concern_ingredients"`
	SkinTypeIngredients map[string][]string `yaml:"skin_type_ingredients"`

	BaseGuidelines            []string            `yaml:"base_guidelines"`
	HighSensitivityGuidelines []string            `yaml:"high_sensitivity_guidelines"`
	HighRiskGuidelines        []string            `yaml:"high_risk_guidelines"`
	SkinTypeGuidelines        map[string][]string `yaml:"skin_type_guidelines"`
	ConcernGuidelines         map[string]string   `yaml:"concern_guidelines"`
	SkinTypeNotes             map[string]string   `yaml:"skin_type_notes"`

	ResultsTimeline []TimelineBand `yaml:"results_timeline"`
	DefaultTimeline string         `yaml:"default_timeline"`
}

// Wait returns the wait in minutes after a step of the given category
func (s Scheduling) Wait(category string) int {
	if m, ok := s.WaitMinutes[category]; ok {
		return m
	}
	return s.DefaultWaitMinutes
}

// Instruction returns the application instruction for the given category
func (s Scheduling) Instruction(category string) string {
	if text, ok := s.Instructions[category]; ok {
		return text
	}
	return s.DefaultInstruction
}

// Default returns the embedded rule set. It panics if the embedded data is invalid,
// which can only happen through a bad build.
func Default() *Set {
	set, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("rules: embedded default set: %v", err))
	}
	return set
}

// Load reads a rule set from path, or returns the embedded default when path is empty
func Load(path string) (*Set, error) {
	if path == "" {
		return Parse(defaultYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule set. Every pattern is normalized so that
// callers can compare against normalized ingredient names directly.
func Parse(data []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	set.normalize()
	if err := set.validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

func (s *Set) normalize() {
	h := &s.Heuristics
	for _, list := range []*[]string{&h.PHAcids, &h.PHBases, &h.Photosensitizers, &h.Sensitizers} {
		*list = normalizeList(*list)
	}
	for i := range h.KnownPairs {
		h.KnownPairs[i].Left = normalizeList(h.KnownPairs[i].Left)
		h.KnownPairs[i].Right = normalizeList(h.KnownPairs[i].Right)
		h.KnownPairs[i].Severity = strings.ToLower(h.KnownPairs[i].Severity)
	}

	r := &s.Retrieval
	r.ConflictKeywords = normalizeList(r.ConflictKeywords)
	r.Intensity.Critical = normalizeList(r.Intensity.Critical)
	r.Intensity.High = normalizeList(r.Intensity.High)
	r.Intensity.Low = normalizeList(r.Intensity.Low)

	for i := range s.ConflictRules {
		s.ConflictRules[i].Ingredient1 = ingredient.Normalize(s.ConflictRules[i].Ingredient1)
		s.ConflictRules[i].Ingredient2 = ingredient.Normalize(s.ConflictRules[i].Ingredient2)
		s.ConflictRules[i].Severity = strings.ToLower(s.ConflictRules[i].Severity)
	}

	sc := &s.Scheduling
	for i := range sc.Categories {
		sc.Categories[i].Keywords = normalizeList(sc.Categories[i].Keywords)
	}
	for _, list := range []*[]string{
		&sc.ActiveIngredients, &sc.MoisturizingIngredients,
		&sc.MorningPreferred, &sc.EveningPreferred, &sc.Photosensitive,
		&sc.StrongActives, &sc.ExfoliantActives,
	} {
		*list = normalizeList(*list)
	}
	for k, v := range sc.ConcernIngredients {
		sc.ConcernIngredients[k] = normalizeList(v)
	}
	for k, v := range sc.SkinTypeIngredients {
		sc.SkinTypeIngredients[k] = normalizeList(v)
	}
	for i := range sc.ResultsTimeline {
		sc.ResultsTimeline[i].Patterns = normalizeList(sc.ResultsTimeline[i].Patterns)
	}
}

// normalizeList keeps the declared order, which matters for first-match lookups
func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := ingredient.Normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (s *Set) validate() error {
	var errs []error

	h := s.Heuristics
	if h.MinSensitizers < 2 {
		errs = append(errs, fmt.Errorf("min_sensitizers must be at least 2, got %d", h.MinSensitizers))
	}
	for i, kp := range h.KnownPairs {
		if len(kp.Left) == 0 || len(kp.Right) == 0 {
			errs = append(errs, fmt.Errorf("known_pairs[%d]: both sides need patterns", i))
		}
		if !severities[kp.Severity] {
			errs = append(errs, fmt.Errorf("known_pairs[%d]: unknown severity %q", i, kp.Severity))
		}
	}
	for _, c := range []float64{h.KnownPairConfidence, h.PHConfidence, h.MultiSensitizerConfidence} {
		if c <= 0 || c > 1 {
			errs = append(errs, fmt.Errorf("heuristic confidence %v outside (0,1]", c))
		}
	}
	if len(s.Retrieval.ConflictKeywords) == 0 {
		errs = append(errs, errors.New("retrieval.conflict_keywords is empty"))
	}

	seen := make(map[[2]string]bool, len(s.ConflictRules))
	for i, r := range s.ConflictRules {
		if r.Ingredient1 == "" || r.Ingredient2 == "" || r.Ingredient1 == r.Ingredient2 {
			errs = append(errs, fmt.Errorf("conflict_rules[%d]: needs two distinct ingredients", i))
			continue
		}
		if !severities[r.Severity] {
			errs = append(errs, fmt.Errorf("conflict_rules[%d]: unknown severity %q", i, r.Severity))
		}
		key := [2]string{r.Ingredient1, r.Ingredient2}
		if key[0] > key[1] {
			key[0], key[1] = key[1], key[0]
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("conflict_rules[%d]: duplicate rule for %s + %s", i, key[0], key[1]))
		}
		seen[key] = true
	}

	sc := s.Scheduling
	if len(sc.Categories) == 0 {
		errs = append(errs, errors.New("scheduling.categories is empty"))
	}
	if len(sc.MorningOrder) == 0 || len(sc.EveningOrder) == 0 {
		errs = append(errs, errors.New("scheduling order lists must not be empty"))
	}
	if sc.DefaultCategory == "" {
		errs = append(errs, errors.New("scheduling.default_category is empty"))
	}
	if sc.IntroductionBatch < 1 {
		errs = append(errs, errors.New("scheduling.introduction_batch must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid rules: %w", errors.Join(errs...))
	}
	return nil
}
