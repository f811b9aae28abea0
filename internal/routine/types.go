// Package routine turns a product set, a user profile and a conflict report into a
// two-slot skincare routine.
package routine

import (
	"fmt"
	"strings"
	"time"
)

// Category is a product's functional class. The set is closed.
type Category string

const (
	CategoryCleanser    Category = "cleanser"
	CategoryToner       Category = "toner"
	CategoryEssence     Category = "essence"
	CategorySerum       Category = "serum"
	CategoryTreatment   Category = "treatment"
	CategoryMoisturizer Category = "moisturizer"
	CategorySunscreen   Category = "sunscreen"
	CategoryOil         Category = "oil"
	CategoryMask        Category = "mask"
	CategoryExfoliant   Category = "exfoliant"
	CategoryMist        Category = "mist"
	CategoryEyeCream    Category = "eye_cream"
)

var categories = []Category{
	CategoryCleanser, CategoryToner, CategoryEssence, CategorySerum,
	CategoryTreatment, CategoryMoisturizer, CategorySunscreen, CategoryOil,
	CategoryMask, CategoryExfoliant, CategoryMist, CategoryEyeCream,
}

// ParseCategory accepts a category name case-insensitively. Spaces and dashes are
// read as underscores, so "Eye Cream" parses.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for _, c := range categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// TimeSlot is where a product runs
type TimeSlot string

const (
	SlotMorning TimeSlot = "morning"
	SlotEvening TimeSlot = "evening"
	SlotBoth    TimeSlot = "both"
)

// Frequency is how often a product is used
type Frequency string

const (
	FrequencyDaily       Frequency = "daily"
	FrequencyAlternate   Frequency = "alternate_days"
	FrequencyTwiceWeekly Frequency = "twice_weekly"
	FrequencyTwoToThree  Frequency = "2-3x_weekly"
	FrequencyOnceOrTwice Frequency = "1-2x_weekly"
)

// Days returns the weekdays a non-daily frequency is scheduled on
func (f Frequency) Days() []time.Weekday {
	switch f {
	case FrequencyAlternate:
		return []time.Weekday{time.Monday, time.Wednesday, time.Friday, time.Sunday}
	case FrequencyTwiceWeekly:
		return []time.Weekday{time.Monday, time.Thursday}
	case FrequencyTwoToThree:
		return []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	case FrequencyOnceOrTwice:
		return []time.Weekday{time.Sunday}
	}
	return nil
}

// Priority breaks ties within a category and drives the introduction order.
// Lower values come first.
type Priority int

const (
	PriorityEssential Priority = iota + 1
	PriorityImportant
	PriorityBeneficial
	PriorityOptional
)

var priorityNames = map[Priority]string{
	PriorityEssential:  "essential",
	PriorityImportant:  "important",
	PriorityBeneficial: "beneficial",
	PriorityOptional:   "optional",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "unknown"
}

func (p Priority) MarshalText() ([]byte, error) {
	name, ok := priorityNames[p]
	if !ok {
		return nil, fmt.Errorf("cannot marshal priority %d", int(p))
	}
	return []byte(name), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	for k, v := range priorityNames {
		if strings.EqualFold(v, string(text)) {
			*p = k
			return nil
		}
	}
	return fmt.Errorf("unknown priority %q", text)
}

// Step is one product's placement inside a slot
type Step struct {
	Order        int       `json:"order"`
	ProductName  string    `json:"product_name"`
	Category     Category  `json:"category"`
	TimeSlot     TimeSlot  `json:"time_slot"`
	Frequency    Frequency `json:"frequency"`
	Priority     Priority  `json:"priority"`
	WaitMinutes  int       `json:"wait_minutes"`
	Instructions string    `json:"instructions"`
	Notes        []string  `json:"notes,omitempty"`
}

// IntroductionStage lists what to start using in a given week
type IntroductionStage struct {
	Week  int      `json:"week"`
	Steps []string `json:"steps"`
}

// OptimizedRoutine is the scheduler result. It is built once and never mutated.
type OptimizedRoutine struct {
	Morning                 []Step              `json:"morning"`
	Evening                 []Step              `json:"evening"`
	WeeklySchedule          map[string][]string `json:"weekly_schedule"`
	EstimatedMinutesMorning int                 `json:"estimated_minutes_morning"`
	EstimatedMinutesEvening int                 `json:"estimated_minutes_evening"`
	IntroductionTimeline    []IntroductionStage `json:"introduction_timeline"`
	Guidelines              []string            `json:"guidelines"`
	PersonalizationNotes    []string            `json:"personalization_notes"`
	Warnings                []string            `json:"warnings"`
	ExpectedTimeline        string              `json:"expected_timeline"`
	CreatedAt               time.Time           `json:"created_at"`
	Degraded                bool                `json:"degraded,omitempty"`
}

// Steps returns the steps of one slot
func (r *OptimizedRoutine) Steps(slot TimeSlot) []Step {
	switch slot {
	case SlotMorning:
		return r.Morning
	case SlotEvening:
		return r.Evening
	}
	return nil
}

// EstimateMinutes is one minute per step plus every wait but the last
func EstimateMinutes(steps []Step) int {
	if len(steps) == 0 {
		return 0
	}
	total := len(steps)
	for _, s := range steps[:len(steps)-1] {
		total += s.WaitMinutes
	}
	return total
}
