package models

import (
	"encoding/json"
	"strings"
	"time"
)

// SkinType is the user-declared skin type
type SkinType string

const (
	SkinDry         SkinType = "dry"
	SkinOily        SkinType = "oily"
	SkinCombination SkinType = "combination"
	SkinSensitive   SkinType = "sensitive"
	SkinNormal      SkinType = "normal"
)

// Valid reports whether s is one of the known skin types
func (s SkinType) Valid() bool {
	switch s {
	case SkinDry, SkinOily, SkinCombination, SkinSensitive, SkinNormal:
		return true
	}
	return false
}

// SensitivityLevel is the user-declared tolerance for actives
type SensitivityLevel string

const (
	SensitivityLow      SensitivityLevel = "low"
	SensitivityModerate SensitivityLevel = "moderate"
	SensitivityHigh     SensitivityLevel = "high"
)

// Ingredient represents a cosmetic ingredient
type Ingredient struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	INCIName         string    `json:"inci_name,omitempty"`
	CASNumber        string    `json:"cas_number,omitempty"`
	PHMin            *float64  `json:"ph_min,omitempty"`
	PHMax            *float64  `json:"ph_max,omitempty"`
	IsPhotosensitive bool      `json:"is_photosensitive"`
	CreatedAt        time.Time `json:"created_at"`
}

// InPHRange reports whether ph falls inside the ingredient's declared working range.
// Ingredients without a declared range accept any pH.
func (i Ingredient) InPHRange(ph float64) bool {
	if i.PHMin != nil && ph < *i.PHMin {
		return false
	}
	if i.PHMax != nil && ph > *i.PHMax {
		return false
	}
	return true
}

// ProductIngredient is a product's reference to one ingredient
type ProductIngredient struct {
	IngredientID  int64    `json:"ingredient_id,omitempty"`
	Name          string   `json:"name"`
	Concentration *float64 `json:"concentration,omitempty"`
	Active        bool     `json:"active"`
}

// UnmarshalJSON accepts either a bare ingredient name or the full object form.
// Bare names and objects without an explicit "active" field are active.
func (pi *ProductIngredient) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*pi = ProductIngredient{Name: name, Active: true}
		return nil
	}

	var raw struct {
		IngredientID  int64    `json:"ingredient_id"`
		Name          string   `json:"name"`
		Concentration *float64 `json:"concentration"`
		Active        *bool    `json:"active"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*pi = ProductIngredient{
		IngredientID:  raw.IngredientID,
		Name:          raw.Name,
		Concentration: raw.Concentration,
		Active:        raw.Active == nil || *raw.Active,
	}
	return nil
}

// Product represents a cosmetic product and its ingredient references
type Product struct {
	ID          int64               `json:"id,omitempty"`
	Name        string              `json:"name"`
	Brand       string              `json:"brand,omitempty"`
	Category    string              `json:"category,omitempty"`
	UseMorning  bool                `json:"use_morning,omitempty"` // cleansers only run in the AM slot when set
	Ingredients []ProductIngredient `json:"ingredients"`
}

// NewProduct builds a product whose ingredients are all active
func NewProduct(name string, ingredients ...string) Product {
	p := Product{Name: name, Ingredients: make([]ProductIngredient, 0, len(ingredients))}
	for _, ing := range ingredients {
		p.Ingredients = append(p.Ingredients, ProductIngredient{Name: ing, Active: true})
	}
	return p
}

// ActiveIngredients returns the names of the product's active ingredient references
func (p Product) ActiveIngredients() []string {
	names := make([]string, 0, len(p.Ingredients))
	for _, pi := range p.Ingredients {
		if pi.Active && strings.TrimSpace(pi.Name) != "" {
			names = append(names, pi.Name)
		}
	}
	return names
}

// UserProfile carries the personalization inputs for analysis and scheduling
type UserProfile struct {
	UserID      string           `json:"user_id,omitempty"`
	SkinType    SkinType         `json:"skin_type,omitempty"`
	Sensitivity SensitivityLevel `json:"sensitivity_level,omitempty"`
	Concerns    []string         `json:"concerns,omitempty"`
	Allergies   []string         `json:"allergies,omitempty"`
}

// ConflictRule is a predefined rule for one unordered ingredient pair
type ConflictRule struct {
	ID                  int64      `json:"id,omitempty"`
	Ingredient1         string     `json:"ingredient1" yaml:"ingredient1"`
	Ingredient2         string     `json:"ingredient2" yaml:"ingredient2"`
	Severity            string     `json:"severity" yaml:"severity"`
	Description         string     `json:"description" yaml:"description"`
	SeparationHours     int        `json:"separation_hours,omitempty" yaml:"separation_hours"`
	ApplicableSkinTypes []SkinType `json:"applicable_skin_types,omitempty" yaml:"applicable_skin_types"`
}

// AppliesTo reports whether the rule's skin-type restriction admits skinType.
// A rule without a restriction, or a caller without a skin type, always applies.
func (r ConflictRule) AppliesTo(skinType SkinType) bool {
	if len(r.ApplicableSkinTypes) == 0 || skinType == "" {
		return true
	}
	for _, st := range r.ApplicableSkinTypes {
		if strings.EqualFold(string(st), string(skinType)) {
			return true
		}
	}
	return false
}
