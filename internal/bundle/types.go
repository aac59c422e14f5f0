// Package bundle defines the portable backup bundle format and the
// Generator/Parser pair that serializes an account's dataset into a
// compressed archive and reads it back.
package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

const (
	// CurrentVersion is stamped into every generated bundle.
	CurrentVersion = "2.1.0"

	// MinSupportedMajor is the oldest bundle major version the engine
	// can still import. Bundles from a newer major version are rejected
	// as well ("from the future").
	MinSupportedMajor = 2

	// SupportedMajor is the major component of CurrentVersion.
	SupportedMajor = 2

	// ArchiveEntryName is the single JSON document inside the archive.
	ArchiveEntryName = "backup.json"
)

// Bundle is the versioned, portable serialization of one account's
// entire dataset. Within one bundle every entity array must be present,
// even if empty.
type Bundle struct {
	Version    string              `json:"version"`
	ExportDate string              `json:"exportDate"`
	Type       entities.BackupType `json:"type,omitempty"`

	Recipes       []RecipeSnapshot       `json:"recipes"`
	Collections   []CollectionSnapshot   `json:"collections"`
	MealPlans     []MealPlanSnapshot     `json:"mealPlans"`
	ShoppingLists []ShoppingListSnapshot `json:"shoppingLists"`

	Statistics *Statistics `json:"statistics,omitempty"`
}

// Statistics summarizes bundle contents, recomputed at generation time.
type Statistics struct {
	Recipes       int `json:"recipes"`
	Collections   int `json:"collections"`
	MealPlans     int `json:"mealPlans"`
	ShoppingLists int `json:"shoppingLists"`
}

// TotalEntities counts every entity snapshot across all four collections.
func (b *Bundle) TotalEntities() int {
	return len(b.Recipes) + len(b.Collections) + len(b.MealPlans) + len(b.ShoppingLists)
}

// ComputedStatistics returns counts derived from the entity arrays.
func (b *Bundle) ComputedStatistics() Statistics {
	return Statistics{
		Recipes:       len(b.Recipes),
		Collections:   len(b.Collections),
		MealPlans:     len(b.MealPlans),
		ShoppingLists: len(b.ShoppingLists),
	}
}

// IngredientSnapshot is one ingredient line of a recipe snapshot.
// Legacy bundles used "ingredient" instead of "name" for the item name;
// both are accepted and normalized during import.
type IngredientSnapshot struct {
	Name       string   `json:"name,omitempty"`
	LegacyName string   `json:"ingredient,omitempty"`
	Amount     *float64 `json:"amount"`
	Unit       string   `json:"unit,omitempty"`
}

// ItemName returns the ingredient name, preferring the current field.
func (i IngredientSnapshot) ItemName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.LegacyName
}

// InstructionSnapshot is one instruction step. The wire form is either a
// plain JSON string or an object carrying the text.
type InstructionSnapshot struct {
	Text string
}

func (s *InstructionSnapshot) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		s.Text = plain
		return nil
	}

	var obj struct {
		Text string `json:"text"`
		Step string `json:"step"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("instruction must be a string or an object: %w", err)
	}
	if obj.Text != "" {
		s.Text = obj.Text
	} else {
		s.Text = obj.Step
	}
	return nil
}

func (s InstructionSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Text)
}

type RecipeSnapshot struct {
	OldID string `json:"id"`
	Title string `json:"title"`

	Ingredients  []IngredientSnapshot  `json:"ingredients"`
	Instructions []InstructionSnapshot `json:"instructions"`

	PrepTime  int      `json:"prepTime,omitempty"`
	CookTime  int      `json:"cookTime,omitempty"`
	Servings  int      `json:"servings,omitempty"`
	DishType  string   `json:"dishType,omitempty"`
	Cuisine   string   `json:"cuisine,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Rating    int      `json:"rating,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	SourceURL string   `json:"sourceUrl,omitempty"`
	Locked    bool     `json:"locked,omitempty"`
}

type CollectionSnapshot struct {
	OldID       string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Public      bool     `json:"public,omitempty"`
	RecipeIDs   []string `json:"recipes"`
}

type MealRecipeRef struct {
	RecipeID string `json:"recipeId"`
	Servings int    `json:"servings,omitempty"`
}

type MealSnapshot struct {
	Date    string          `json:"date,omitempty"`
	Type    string          `json:"type"`
	Recipes []MealRecipeRef `json:"recipes"`
}

type MealPlanSnapshot struct {
	OldID     string         `json:"id"`
	Name      string         `json:"name"`
	StartDate string         `json:"startDate,omitempty"`
	EndDate   string         `json:"endDate,omitempty"`
	Date      string         `json:"date,omitempty"` // legacy single-date plans
	Meals     []MealSnapshot `json:"meals"`
}

type ShoppingListItemSnapshot struct {
	Ingredient string  `json:"ingredient"`
	Quantity   float64 `json:"quantity,omitempty"`
	Unit       string  `json:"unit,omitempty"`
	Category   string  `json:"category,omitempty"`
	Checked    bool    `json:"checked,omitempty"`
	RecipeID   string  `json:"recipeId,omitempty"`
}

type ShoppingListSnapshot struct {
	OldID string                     `json:"id"`
	Name  string                     `json:"name"`
	Items []ShoppingListItemSnapshot `json:"items"`
}
