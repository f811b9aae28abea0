package routine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/todmy/beauty-analyzer/internal/conflict"
	"github.com/todmy/beauty-analyzer/internal/ingredient"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

var (
	retinoids       = []string{"retinol", "tretinoin"}
	vitaminC        = []string{"vitamin c", "ascorbic acid"}
	chemExfoliants  = []string{"glycolic acid", "lactic acid", "salicylic acid", "aha", "bha"}
	personalActives = []struct {
		patterns []string
		note     string
	}{
		{retinoids, "Retinol products: Start slowly and always use sunscreen during the day"},
		{vitaminC, "Vitamin C: Best used in morning for antioxidant protection"},
		{chemExfoliants, "Chemical exfoliants: Monitor skin response and adjust frequency as needed"},
	}
)

func (s *Scheduler) instructions(category Category, slot TimeSlot) string {
	text := s.rules.Instruction(string(category))
	if slot == SlotEvening && category == CategoryTreatment {
		text += ". Start with 2-3 times per week and increase gradually"
	}
	return text
}

func applicationNotes(pl placement, profile models.UserProfile) []string {
	var notes []string
	if pl.category == CategorySunscreen {
		notes = append(notes, "Apply 15-20 minutes before sun exposure", "Reapply every 2 hours when outdoors")
	}
	if ingredient.CountMatches(pl.ingredients, retinoids) > 0 {
		notes = append(notes, "Start slowly to build tolerance", "Always use sunscreen during the day")
	}
	if ingredient.CountMatches(pl.ingredients, vitaminC) > 0 {
		notes = append(notes, "Store in cool, dark place", "Use within 6 months of opening")
	}
	if profile.Sensitivity == models.SensitivityHigh {
		notes = append(notes, "Patch test before first use", "Reduce frequency if irritation occurs")
	}
	return notes
}

// weeklySchedule lists every day of the week, with "Use <product>" entries for
// products on a reduced frequency
func weeklySchedule(placements []placement) map[string][]string {
	schedule := make(map[string][]string, len(weekdays))
	for _, d := range weekdays {
		schedule[d.String()] = []string{}
	}
	for _, pl := range placements {
		for _, d := range pl.frequency.Days() {
			schedule[d.String()] = append(schedule[d.String()], "Use "+pl.product.Name)
		}
	}
	return schedule
}

// introductionTimeline introduces products batch at a time, one batch per week, in
// priority order. Products in both slots are introduced once.
func introductionTimeline(morning, evening []Step, batch int) []IntroductionStage {
	if batch <= 0 {
		batch = 2
	}

	seen := make(map[string]bool)
	var steps []Step
	for _, st := range append(append([]Step(nil), morning...), evening...) {
		if seen[st.ProductName] {
			continue
		}
		seen[st.ProductName] = true
		steps = append(steps, st)
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Priority < steps[j].Priority
	})

	stages := make([]IntroductionStage, 0, (len(steps)+batch-1)/batch)
	for i := 0; i < len(steps); i += batch {
		end := min(i+batch, len(steps))
		stage := IntroductionStage{Week: len(stages) + 1}
		for _, st := range steps[i:end] {
			stage.Steps = append(stage.Steps, "Introduce "+st.ProductName)
		}
		stages = append(stages, stage)
	}
	return stages
}

func (s *Scheduler) guidelines(profile models.UserProfile, riskScore float64) []string {
	out := append([]string(nil), s.rules.BaseGuidelines...)
	if profile.Sensitivity == models.SensitivityHigh {
		out = appendUnique(out, s.rules.HighSensitivityGuidelines...)
	}
	if riskScore > 0.5 {
		out = appendUnique(out, s.rules.HighRiskGuidelines...)
	}
	out = appendUnique(out, s.rules.SkinTypeGuidelines[string(profile.SkinType)]...)
	for _, concern := range profile.Concerns {
		concern = ingredient.Normalize(concern)
		for _, key := range sortedKeys(s.rules.ConcernGuidelines) {
			if strings.Contains(concern, key) {
				out = appendUnique(out, s.rules.ConcernGuidelines[key])
			}
		}
	}
	return out
}

func (s *Scheduler) personalizationNotes(profile models.UserProfile, placements []placement) []string {
	notes := []string{}
	if note, ok := s.rules.SkinTypeNotes[string(profile.SkinType)]; ok {
		notes = append(notes, note)
	}

	var all []string
	for _, pl := range placements {
		all = append(all, pl.ingredients...)
	}
	for _, a := range personalActives {
		if ingredient.CountMatches(all, a.patterns) > 0 {
			notes = append(notes, a.note)
		}
	}
	return notes
}

// conflictWarnings describes every high or critical verdict
func conflictWarnings(severe []conflict.Verdict) []string {
	warnings := []string{}
	for _, v := range severe {
		subject := v.Ingredient1 + " and " + v.Ingredient2
		if len(v.Involved) > 0 {
			subject = v.Label()
		}
		warnings = append(warnings, fmt.Sprintf("%s: %s - %s", strings.ToUpper(v.Severity.String()), subject, v.Description))
		if v.SeparationHours > 0 {
			warnings = append(warnings, fmt.Sprintf("Separate by at least %d hours", v.SeparationHours))
		}
	}
	return warnings
}

// expectedTimeline matches each ingredient against the first results band it fits
func (s *Scheduler) expectedTimeline(placements []placement) string {
	hit := make([]bool, len(s.rules.ResultsTimeline))
	for _, pl := range placements {
		for _, ing := range pl.ingredients {
			for i, band := range s.rules.ResultsTimeline {
				if ingredient.ContainsAny(ing, band.Patterns) {
					hit[i] = true
					break
				}
			}
		}
	}

	var parts []string
	for i, band := range s.rules.ResultsTimeline {
		if hit[i] {
			parts = append(parts, band.Text)
		}
	}
	if len(parts) == 0 {
		return s.rules.DefaultTimeline
	}
	return strings.Join(parts, " | ")
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, existing := range dst {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup && v != "" {
			dst = append(dst, v)
		}
	}
	return dst
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
