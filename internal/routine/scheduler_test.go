package routine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/beauty-analyzer/internal/conflict"
	"github.com/todmy/beauty-analyzer/internal/rules"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

var normalModerate = models.UserProfile{SkinType: models.SkinNormal, Sensitivity: models.SensitivityModerate}

func stepCategories(steps []Step) []Category {
	out := make([]Category, len(steps))
	for i, s := range steps {
		out[i] = s.Category
	}
	return out
}

func TestCategorize(t *testing.T) {
	s := NewScheduler(nil, nil)

	tests := []struct {
		product models.Product
		want    Category
	}{
		{models.Product{Name: "Anything", Category: "Eye Cream"}, CategoryEyeCream},
		{models.Product{Name: "Gentle Foaming Cleanser"}, CategoryCleanser},
		{models.Product{Name: "Daily Sunscreen SPF 50"}, CategorySunscreen},
		{models.Product{Name: "Rose Facial Mist"}, CategoryMist},
		{models.Product{Name: "Clay Mask"}, CategoryMask},
		{models.Product{Name: "Unknown", Category: "potion"}, CategoryTreatment},
		{models.NewProduct("Night Drops", "retinol"), CategorySerum},
		{models.NewProduct("Barrier Balm", "ceramide"), CategoryMoisturizer},
		{models.NewProduct("Plain Jar", "water"), CategoryTreatment},
	}

	for _, tt := range tests {
		t.Run(tt.product.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Categorize(tt.product))
		})
	}
}

func TestOptimize_Scenario(t *testing.T) {
	products := []models.Product{
		models.NewProduct("Gentle Foaming Cleanser", "water", "glycerin", "sodium laureth sulfate"),
		models.NewProduct("Vitamin C Serum", "ascorbic acid", "water"),
		models.NewProduct("Daily Sunscreen SPF 50", "zinc oxide", "titanium dioxide"),
	}

	report := conflict.NewEngine(conflict.DefaultConfig(), nil, nil, nil, nil).
		Analyze(context.Background(), products, normalModerate)
	require.False(t, report.HasConflicts())
	assert.Zero(t, report.OverallRiskScore)
	assert.Equal(t, conflict.NarrativeNoConflicts, report.SafetyAssessment)

	r := NewScheduler(nil, nil).Optimize(products, normalModerate, report)
	require.False(t, r.Degraded)

	assert.Equal(t, []Category{CategorySerum, CategorySunscreen}, stepCategories(r.Morning))
	assert.Equal(t, []Category{CategoryCleanser}, stepCategories(r.Evening))
	for _, st := range append(r.Morning, r.Evening...) {
		assert.Equal(t, FrequencyDaily, st.Frequency, st.ProductName)
	}

	assert.Equal(t, 5, r.Morning[0].WaitMinutes)
	assert.Zero(t, r.Morning[1].WaitMinutes)
	assert.Equal(t, 2+5, r.EstimatedMinutesMorning)
	assert.Equal(t, 1, r.EstimatedMinutesEvening)
	assert.Empty(t, r.Warnings)
	assert.Len(t, r.WeeklySchedule, 7)
	assert.Empty(t, r.WeeklySchedule["Monday"])
}

func TestOptimize_MorningCleanserWhenFlagged(t *testing.T) {
	cleanser := models.NewProduct("Gentle Foaming Cleanser", "glycerin")
	cleanser.UseMorning = true

	r := NewScheduler(nil, nil).Optimize([]models.Product{cleanser}, normalModerate, nil)
	assert.Equal(t, []Category{CategoryCleanser}, stepCategories(r.Morning))
	assert.Equal(t, []Category{CategoryCleanser}, stepCategories(r.Evening))
	require.Len(t, r.IntroductionTimeline, 1)
	assert.Equal(t, []string{"Introduce Gentle Foaming Cleanser"}, r.IntroductionTimeline[0].Steps)
}

func TestOptimize_SunscreenAlwaysMorning(t *testing.T) {
	// evening-heavy ingredients must not move a sunscreen
	sunscreen := models.NewProduct("Night Repair SPF", "retinol", "glycolic acid", "tretinoin")

	r := NewScheduler(nil, nil).Optimize([]models.Product{sunscreen}, normalModerate, nil)
	require.Len(t, r.Morning, 1)
	assert.Equal(t, CategorySunscreen, r.Morning[0].Category)
	assert.Empty(t, r.Evening)
}

func TestOptimize_OrderingIsContiguousAndFollowsPrecedence(t *testing.T) {
	set := rules.Default()
	products := []models.Product{
		{Name: "Night Oil", Category: "oil"},
		models.NewProduct("Retinol Serum", "retinol"),
		{Name: "Hydrating Toner", Category: "toner"},
		{Name: "Daily Cream", Category: "moisturizer"},
		{Name: "Brightening Essence", Category: "essence"},
		{Name: "Gel Cleanser", Category: "cleanser"},
		{Name: "AHA Peel", Category: "exfoliant"},
		{Name: "SPF 30", Category: "sunscreen"},
	}

	r := NewScheduler(set, nil).Optimize(products, normalModerate, nil)
	require.False(t, r.Degraded)

	check := func(steps []Step, order []string) {
		last := -1
		for i, st := range steps {
			assert.Equal(t, i+1, st.Order)
			idx := -1
			for j, c := range order {
				if c == string(st.Category) {
					idx = j
				}
			}
			require.GreaterOrEqual(t, idx, 0, "category %s not allowed", st.Category)
			assert.GreaterOrEqual(t, idx, last, "step %d out of order", st.Order)
			last = idx
		}
	}
	check(r.Morning, set.Scheduling.MorningOrder)
	check(r.Evening, set.Scheduling.EveningOrder)

	for _, st := range r.Evening {
		assert.NotEqual(t, CategorySunscreen, st.Category)
	}
	assert.Equal(t, CategoryCleanser, r.Evening[0].Category)
	assert.Equal(t, CategoryExfoliant, r.Evening[1].Category)
	assert.Equal(t, CategoryOil, r.Evening[len(r.Evening)-1].Category)
	assert.Zero(t, r.Evening[len(r.Evening)-1].WaitMinutes)
}

func TestOptimize_Frequency(t *testing.T) {
	s := NewScheduler(nil, nil)
	retinol := models.NewProduct("Retinol Serum", "retinol")

	freq := func(p models.Product, profile models.UserProfile, report *conflict.Report) Frequency {
		r := s.Optimize([]models.Product{p}, profile, report)
		steps := append(r.Morning, r.Evening...)
		require.NotEmpty(t, steps)
		return steps[0].Frequency
	}

	assert.Equal(t, FrequencyTwiceWeekly, freq(retinol, models.UserProfile{Sensitivity: models.SensitivityHigh}, nil))
	assert.Equal(t, FrequencyAlternate, freq(retinol, models.UserProfile{Sensitivity: models.SensitivityModerate}, nil))
	assert.Equal(t, FrequencyDaily, freq(retinol, models.UserProfile{Sensitivity: models.SensitivityLow}, nil))
	assert.Equal(t, FrequencyDaily, freq(retinol, models.UserProfile{}, nil))

	severe := &conflict.Report{Conflicts: []conflict.Verdict{{
		Ingredient1: "benzoyl peroxide", Ingredient2: "retinol", Severity: conflict.SeverityHigh,
		Description: "oxidizes", SeparationHours: 12,
	}}}
	assert.Equal(t, FrequencyAlternate, freq(retinol, models.UserProfile{Sensitivity: models.SensitivityLow}, severe))
	assert.Equal(t, FrequencyTwiceWeekly, freq(retinol, models.UserProfile{Sensitivity: models.SensitivityHigh}, severe))

	assert.Equal(t, FrequencyTwoToThree, freq(models.NewProduct("Toner", "bha complex"), models.UserProfile{}, nil))
	assert.Equal(t, FrequencyOnceOrTwice, freq(models.Product{Name: "Clay Mask"}, models.UserProfile{}, nil))
}

func TestOptimize_WeeklyScheduleAndWarnings(t *testing.T) {
	report := &conflict.Report{
		OverallRiskScore: 0.7,
		Conflicts: []conflict.Verdict{
			{Ingredient1: "benzoyl peroxide", Ingredient2: "retinol", Severity: conflict.SeverityHigh, Description: "oxidizes", SeparationHours: 12},
			{Ingredient1: "a", Ingredient2: "b", Severity: conflict.SeverityLow, Description: "minor"},
		},
	}
	products := []models.Product{
		models.NewProduct("Retinol Serum", "retinol"),
		{Name: "Clay Mask"},
	}

	r := NewScheduler(nil, nil).Optimize(products, models.UserProfile{Sensitivity: models.SensitivityLow}, report)

	assert.Equal(t, []string{"Use Retinol Serum"}, r.WeeklySchedule["Wednesday"])
	assert.Equal(t, []string{"Use Retinol Serum", "Use Clay Mask"}, r.WeeklySchedule["Sunday"])
	assert.Empty(t, r.WeeklySchedule["Tuesday"])

	assert.Equal(t, []string{
		"HIGH: benzoyl peroxide and retinol - oxidizes",
		"Separate by at least 12 hours",
	}, r.Warnings)
	assert.Contains(t, r.Guidelines, "Follow timing recommendations carefully")
}

func TestOptimize_IntroductionTimelineByPriority(t *testing.T) {
	products := []models.Product{
		models.NewProduct("Spot Gel", "salicylic acid"),
		models.NewProduct("Peptide Serum", "peptide"),
		{Name: "Gel Cleanser", Category: "cleanser"},
		{Name: "Rich Cream", Category: "moisturizer"},
		{Name: "Rose Mist", Category: "mist"},
	}
	profile := models.UserProfile{SkinType: models.SkinOily, Concerns: []string{"Aging"}}

	r := NewScheduler(nil, nil).Optimize(products, profile, nil)
	require.Len(t, r.IntroductionTimeline, 3)

	assert.Equal(t, 1, r.IntroductionTimeline[0].Week)
	assert.ElementsMatch(t, []string{"Introduce Gel Cleanser", "Introduce Rich Cream"}, r.IntroductionTimeline[0].Steps)
	assert.Equal(t, []string{"Introduce Peptide Serum", "Introduce Spot Gel"}, r.IntroductionTimeline[1].Steps)
	assert.Equal(t, []string{"Introduce Rose Mist"}, r.IntroductionTimeline[2].Steps)
}

func TestOptimize_NarrativeAndNotes(t *testing.T) {
	products := []models.Product{
		models.NewProduct("Retinol Serum", "retinol"),
		models.NewProduct("Vitamin C Serum", "ascorbic acid"),
		models.NewProduct("Daily Sunscreen", "zinc oxide"),
	}
	profile := models.UserProfile{
		SkinType:    models.SkinSensitive,
		Sensitivity: models.SensitivityHigh,
		Concerns:    []string{"dark spots"},
	}

	r := NewScheduler(nil, nil).Optimize(products, profile, nil)

	assert.Contains(t, r.Guidelines, "Start with every other day for new actives")
	assert.Contains(t, r.Guidelines, "Be patient - brightening ingredients take 8-12 weeks to show results")
	assert.NotContains(t, r.Guidelines, "Follow timing recommendations carefully")

	seen := map[string]int{}
	for _, g := range r.Guidelines {
		seen[g]++
		assert.Equal(t, 1, seen[g], "duplicate guideline %q", g)
	}

	assert.Equal(t, []string{
		"Choose gentle, fragrance-free formulations",
		"Retinol products: Start slowly and always use sunscreen during the day",
		"Vitamin C: Best used in morning for antioxidant protection",
	}, r.PersonalizationNotes)

	assert.Equal(t,
		"4-6 weeks: Reduced blemishes and improved skin tone | 3-6 months: Significant anti-aging and skin renewal benefits",
		r.ExpectedTimeline)

	for _, st := range r.Morning {
		if st.Category == CategorySunscreen {
			assert.Contains(t, st.Notes, "Reapply every 2 hours when outdoors")
			assert.Contains(t, st.Notes, "Patch test before first use")
		}
	}
}

func TestOptimize_EveningTreatmentInstruction(t *testing.T) {
	r := NewScheduler(nil, nil).Optimize([]models.Product{
		models.NewProduct("Spot Treatment", "sulfur"),
	}, normalModerate, nil)

	require.Len(t, r.Evening, 1)
	assert.Equal(t, "Apply thin layer to affected areas only. Start with 2-3 times per week and increase gradually", r.Evening[0].Instructions)
	assert.Empty(t, r.Morning)
}

func TestOptimize_FallbackOnBadRules(t *testing.T) {
	set := rules.Default()
	broken := *set
	broken.Scheduling.MorningOrder = []string{"cleanser"}
	broken.Scheduling.EveningOrder = []string{"cleanser"}

	r := NewScheduler(&broken, nil).Optimize([]models.Product{{Name: "Face Serum"}}, normalModerate, nil)

	assert.True(t, r.Degraded)
	assert.Empty(t, r.Morning)
	assert.Empty(t, r.Evening)
	assert.Equal(t, []string{"System error - please seek professional advice"}, r.Guidelines)
	assert.Equal(t, []string{"Routine optimization failed - manual review needed"}, r.PersonalizationNotes)
	assert.Equal(t, []IntroductionStage{{Week: 1, Steps: []string{"Consult skincare professional"}}}, r.IntroductionTimeline)
}

func TestOptimizedRoutineJSONRoundTrip(t *testing.T) {
	products := []models.Product{
		models.NewProduct("Retinol Serum", "retinol"),
		models.NewProduct("Vitamin C Serum", "ascorbic acid"),
		{Name: "Daily Sunscreen", Category: "sunscreen"},
		{Name: "Clay Mask"},
	}
	r := NewScheduler(nil, nil).Optimize(products, normalModerate, nil)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out OptimizedRoutine
	require.NoError(t, json.Unmarshal(data, &out))

	for _, slot := range []TimeSlot{SlotMorning, SlotEvening} {
		want, got := r.Steps(slot), out.Steps(slot)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Order, got[i].Order)
			assert.Equal(t, want[i].Frequency, got[i].Frequency)
			assert.Equal(t, want[i].Priority, got[i].Priority)
		}
	}
}

func TestEstimateMinutes(t *testing.T) {
	assert.Zero(t, EstimateMinutes(nil))
	assert.Equal(t, 3+5+10, EstimateMinutes([]Step{{WaitMinutes: 5}, {WaitMinutes: 10}, {WaitMinutes: 99}}))
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory(" Eye-Cream ")
	assert.True(t, ok)
	assert.Equal(t, CategoryEyeCream, c)

	_, ok = ParseCategory("potion")
	assert.False(t, ok)
}
