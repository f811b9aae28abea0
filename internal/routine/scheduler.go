package routine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/todmy/beauty-analyzer/internal/conflict"
	"github.com/todmy/beauty-analyzer/internal/ingredient"
	"github.com/todmy/beauty-analyzer/internal/logger"
	"github.com/todmy/beauty-analyzer/internal/rules"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

// Scheduler builds routines from a rule set. It holds no per-call state and is safe
// for concurrent use.
type Scheduler struct {
	rules rules.Scheduling
	log   *logger.Logger
	now   func() time.Time
}

// NewScheduler creates a scheduler. A nil set means the embedded default rules.
func NewScheduler(set *rules.Set, log *logger.Logger) *Scheduler {
	if set == nil {
		set = rules.Default()
	}
	return &Scheduler{
		rules: set.Scheduling,
		log:   logger.OrNop(log).With("component", "routine"),
		now:   time.Now,
	}
}

// placement is the per-product decision shared by every slot the product lands in
type placement struct {
	product     models.Product
	ingredients []string
	category    Category
	slots       []TimeSlot
	frequency   Frequency
	priority    Priority
}

// Optimize schedules products into a morning and an evening routine. report may be
// nil when no conflict analysis was run. It never fails: any internal error yields
// a routine flagged Degraded.
func (s *Scheduler) Optimize(products []models.Product, profile models.UserProfile, report *conflict.Report) (routine *OptimizedRoutine) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("routine optimization panicked", "panic", r)
			routine = s.fallback()
		}
	}()

	s.log.Info("optimizing routine", "products", len(products))

	routine, err := s.optimize(products, profile, report)
	if err != nil {
		s.log.Error("routine optimization failed", "error", err)
		return s.fallback()
	}

	s.log.Info("routine optimized",
		"morning_steps", len(routine.Morning),
		"evening_steps", len(routine.Evening),
	)
	return routine
}

func (s *Scheduler) optimize(products []models.Product, profile models.UserProfile, report *conflict.Report) (*OptimizedRoutine, error) {
	var severe []conflict.Verdict
	if report != nil {
		severe = report.AtLeast(conflict.SeverityHigh)
	}

	placements := make([]placement, 0, len(products))
	for _, p := range products {
		pl := placement{
			product:     p,
			ingredients: ingredient.NormalizeSet(p.ActiveIngredients()),
		}
		pl.category = s.Categorize(p)

		slots, err := s.slots(pl.category, s.assignSlot(pl.category, pl.ingredients), p.UseMorning)
		if err != nil {
			return nil, fmt.Errorf("product %q: %w", p.Name, err)
		}
		pl.slots = slots
		pl.frequency = s.frequency(pl, profile, touchesAny(severe, pl.ingredients))
		pl.priority = s.priority(pl, profile)
		placements = append(placements, pl)
	}

	morning := s.buildSlot(SlotMorning, placements, profile)
	evening := s.buildSlot(SlotEvening, placements, profile)

	riskScore := 0.0
	if report != nil {
		riskScore = report.OverallRiskScore
	}

	return &OptimizedRoutine{
		Morning:                 morning,
		Evening:                 evening,
		WeeklySchedule:          weeklySchedule(placements),
		EstimatedMinutesMorning: EstimateMinutes(morning),
		EstimatedMinutesEvening: EstimateMinutes(evening),
		IntroductionTimeline:    introductionTimeline(morning, evening, s.rules.IntroductionBatch),
		Guidelines:              s.guidelines(profile, riskScore),
		PersonalizationNotes:    s.personalizationNotes(profile, placements),
		Warnings:                conflictWarnings(severe),
		ExpectedTimeline:        s.expectedTimeline(placements),
		CreatedAt:               s.now().UTC(),
	}, nil
}

// Categorize resolves a product's category: a valid explicit category, then the first
// category whose name keywords match, then an ingredient-based guess, then the default
func (s *Scheduler) Categorize(p models.Product) Category {
	if c, ok := ParseCategory(p.Category); ok {
		return c
	}

	name := ingredient.Normalize(p.Name)
	for _, ck := range s.rules.Categories {
		if ingredient.ContainsAny(name, ck.Keywords) {
			if c, ok := ParseCategory(ck.Name); ok {
				return c
			}
		}
	}

	ings := ingredient.NormalizeSet(p.ActiveIngredients())
	switch {
	case ingredient.CountMatches(ings, s.rules.ActiveIngredients) > 0:
		return CategorySerum
	case ingredient.CountMatches(ings, s.rules.MoisturizingIngredients) > 0:
		return CategoryMoisturizer
	}

	if c, ok := ParseCategory(s.rules.DefaultCategory); ok {
		return c
	}
	return CategoryTreatment
}

// assignSlot scores morning and evening affinity from the ingredient names
func (s *Scheduler) assignSlot(category Category, ingredients []string) TimeSlot {
	switch category {
	case CategorySunscreen:
		return SlotMorning
	case CategoryCleanser:
		return SlotBoth
	}

	var morning, evening int
	for _, ing := range ingredients {
		if ingredient.ContainsAny(ing, s.rules.MorningPreferred) {
			morning++
		}
		if ingredient.ContainsAny(ing, s.rules.EveningPreferred) {
			evening++
		}
		if ingredient.ContainsAny(ing, s.rules.Photosensitive) {
			evening += s.rules.PhotosensitiveWeight
		}
	}

	switch {
	case evening > morning:
		return SlotEvening
	case morning > evening:
		return SlotMorning
	case category == CategorySerum || category == CategoryTreatment:
		return SlotEvening
	}
	return SlotBoth
}

// slots expands an assignment into concrete slots. A morning cleanser is dropped
// unless flagged for AM use, and a category a slot does not admit moves to the other
// slot.
func (s *Scheduler) slots(category Category, assigned TimeSlot, useMorning bool) ([]TimeSlot, error) {
	var wanted []TimeSlot
	switch assigned {
	case SlotMorning:
		wanted = []TimeSlot{SlotMorning}
	case SlotEvening:
		wanted = []TimeSlot{SlotEvening}
	default:
		wanted = []TimeSlot{SlotMorning, SlotEvening}
	}
	if category == CategoryCleanser && !useMorning {
		wanted = []TimeSlot{SlotEvening}
	}

	var out []TimeSlot
	add := func(slot TimeSlot) {
		for _, existing := range out {
			if existing == slot {
				return
			}
		}
		out = append(out, slot)
	}
	for _, slot := range wanted {
		switch {
		case s.admits(slot, category):
			add(slot)
		case s.admits(other(slot), category):
			add(other(slot))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("category %s is not allowed in any slot", category)
	}
	return out, nil
}

func (s *Scheduler) admits(slot TimeSlot, category Category) bool {
	return s.precedence(slot, category) >= 0
}

// precedence is the category's index in the slot's order, or -1
func (s *Scheduler) precedence(slot TimeSlot, category Category) int {
	order := s.rules.EveningOrder
	if slot == SlotMorning {
		order = s.rules.MorningOrder
	}
	for i, c := range order {
		if c == string(category) {
			return i
		}
	}
	return -1
}

func other(slot TimeSlot) TimeSlot {
	if slot == SlotMorning {
		return SlotEvening
	}
	return SlotMorning
}

func (s *Scheduler) frequency(pl placement, profile models.UserProfile, severeConflict bool) Frequency {
	strong := ingredient.CountMatches(pl.ingredients, s.rules.StrongActives) > 0

	switch {
	case strong && profile.Sensitivity == models.SensitivityHigh:
		return FrequencyTwiceWeekly
	case severeConflict:
		return FrequencyAlternate
	case strong && profile.Sensitivity == models.SensitivityModerate:
		return FrequencyAlternate
	case strong:
		return FrequencyDaily
	case ingredient.CountMatches(pl.ingredients, s.rules.ExfoliantActives) > 0:
		return FrequencyTwoToThree
	case pl.category == CategoryMask:
		return FrequencyOnceOrTwice
	}
	return FrequencyDaily
}

func (s *Scheduler) priority(pl placement, profile models.UserProfile) Priority {
	switch pl.category {
	case CategoryCleanser, CategoryMoisturizer, CategorySunscreen:
		return PriorityEssential
	}

	for _, concern := range profile.Concerns {
		concern = ingredient.Normalize(concern)
		for key, targets := range s.rules.ConcernIngredients {
			if strings.Contains(concern, key) && ingredient.CountMatches(pl.ingredients, targets) > 0 {
				return PriorityImportant
			}
		}
	}

	if targets, ok := s.rules.SkinTypeIngredients[string(profile.SkinType)]; ok {
		if ingredient.CountMatches(pl.ingredients, targets) > 0 {
			return PriorityBeneficial
		}
	}
	return PriorityOptional
}

// buildSlot orders the slot's products by category precedence, then priority, and
// numbers them from 1. The last step has no wait.
func (s *Scheduler) buildSlot(slot TimeSlot, placements []placement, profile models.UserProfile) []Step {
	var in []placement
	for _, pl := range placements {
		for _, sl := range pl.slots {
			if sl == slot {
				in = append(in, pl)
			}
		}
	}

	sort.SliceStable(in, func(i, j int) bool {
		pi, pj := s.precedence(slot, in[i].category), s.precedence(slot, in[j].category)
		if pi != pj {
			return pi < pj
		}
		return in[i].priority < in[j].priority
	})

	steps := make([]Step, len(in))
	for i, pl := range in {
		steps[i] = Step{
			Order:        i + 1,
			ProductName:  pl.product.Name,
			Category:     pl.category,
			TimeSlot:     slot,
			Frequency:    pl.frequency,
			Priority:     pl.priority,
			WaitMinutes:  s.rules.Wait(string(pl.category)),
			Instructions: s.instructions(pl.category, slot),
			Notes:        applicationNotes(pl, profile),
		}
	}
	if len(steps) > 0 {
		steps[len(steps)-1].WaitMinutes = 0
	}
	return steps
}

func touchesAny(verdicts []conflict.Verdict, ingredients []string) bool {
	names := make(map[string]bool, len(ingredients))
	for _, n := range ingredients {
		names[n] = true
	}
	for _, v := range verdicts {
		if v.Touches(names) {
			return true
		}
	}
	return false
}

func (s *Scheduler) fallback() *OptimizedRoutine {
	return &OptimizedRoutine{
		Morning:              []Step{},
		Evening:              []Step{},
		WeeklySchedule:       map[string][]string{},
		IntroductionTimeline: []IntroductionStage{{Week: 1, Steps: []string{"Consult skincare professional"}}},
		Guidelines:           []string{"System error - please seek professional advice"},
		PersonalizationNotes: []string{"Routine optimization failed - manual review needed"},
		Warnings:             []string{},
		ExpectedTimeline:     s.rules.DefaultTimeline,
		CreatedAt:            s.now().UTC(),
		Degraded:             true,
	}
}
