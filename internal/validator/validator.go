// Package validator gates untrusted bundles before any write is attempted.
//
// Validation runs in two sequential passes: a structural pass over the
// bundle container and a content pass over every entity snapshot. Every
// string field is passed through an HTML-stripping filter before the
// bundle is handed to the import processor, so injected markup never
// reaches storage. The first violation aborts validation; no partial
// results are returned.
package validator

import (
	"fmt"
	"html"
	"log"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mealkeeper/mealkeeper/internal/bundle"
	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// MaxTitleLength is the longest accepted recipe title.
const MaxTitleLength = 200

// ValidationError describes the first content violation found in a bundle.
type ValidationError struct {
	Code       string
	EntityType string
	Index      int
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s[%d]: %s (%s)", e.EntityType, e.Index, e.Message, e.Code)
}

// Validator checks bundle structure and content and sanitizes string fields.
type Validator struct {
	policy *bluemonday.Policy
}

func New() *Validator {
	return &Validator{policy: bluemonday.StrictPolicy()}
}

// Validate runs the structural and content passes over b, sanitizing every
// string field in place. Returns the first violation found.
func (v *Validator) Validate(b *bundle.Bundle) error {
	if err := v.validateStructure(b); err != nil {
		return err
	}

	v.sanitizeBundle(b)

	if err := v.validateContent(b); err != nil {
		return err
	}

	v.warnUnresolvedReferences(b)
	return nil
}

// validateStructure checks required top-level fields and the version
// window. Entity arrays must be present even when empty; a nil slice
// means the field was absent from the document.
func (v *Validator) validateStructure(b *bundle.Bundle) error {
	if b.Version == "" {
		return &bundle.SchemaError{Field: "version"}
	}
	if b.ExportDate == "" {
		return &bundle.SchemaError{Field: "exportDate"}
	}
	if err := bundle.CheckVersion(b.Version); err != nil {
		return err
	}

	if b.Recipes == nil {
		return &bundle.SchemaError{Field: "recipes"}
	}
	if b.Collections == nil {
		return &bundle.SchemaError{Field: "collections"}
	}
	if b.MealPlans == nil {
		return &bundle.SchemaError{Field: "mealPlans"}
	}
	if b.ShoppingLists == nil {
		return &bundle.SchemaError{Field: "shoppingLists"}
	}
	return nil
}

func (v *Validator) validateContent(b *bundle.Bundle) error {
	for i, r := range b.Recipes {
		if err := v.validateRecipe(r, i); err != nil {
			return err
		}
	}
	for i, c := range b.Collections {
		if c.Name == "" {
			return &ValidationError{Code: "missing_name", EntityType: "collections", Index: i,
				Message: "collection requires a name"}
		}
	}
	for i, m := range b.MealPlans {
		if err := v.validateMealPlan(m, i); err != nil {
			return err
		}
	}
	for i, s := range b.ShoppingLists {
		if s.Name == "" {
			return &ValidationError{Code: "missing_name", EntityType: "shoppingLists", Index: i,
				Message: "shopping list requires a name"}
		}
	}
	return nil
}

func (v *Validator) validateRecipe(r bundle.RecipeSnapshot, index int) error {
	if r.Title == "" {
		return &ValidationError{Code: "missing_title", EntityType: "recipes", Index: index,
			Message: "recipe requires a title"}
	}
	if utf8.RuneCountInString(r.Title) > MaxTitleLength {
		return &ValidationError{Code: "title_too_long", EntityType: "recipes", Index: index,
			Message: fmt.Sprintf("recipe title exceeds %d characters", MaxTitleLength)}
	}
	if len(r.Ingredients) == 0 {
		return &ValidationError{Code: "empty_ingredients", EntityType: "recipes", Index: index,
			Message: "recipe requires at least one ingredient"}
	}
	for _, ing := range r.Ingredients {
		if ing.ItemName() == "" {
			return &ValidationError{Code: "missing_ingredient_name", EntityType: "recipes", Index: index,
				Message: "every ingredient requires a name"}
		}
		if ing.Amount == nil {
			return &ValidationError{Code: "missing_ingredient_amount", EntityType: "recipes", Index: index,
				Message: "every ingredient requires an amount"}
		}
	}
	if len(r.Instructions) == 0 {
		return &ValidationError{Code: "empty_instructions", EntityType: "recipes", Index: index,
			Message: "recipe requires at least one instruction"}
	}
	for _, ins := range r.Instructions {
		if ins.Text == "" {
			return &ValidationError{Code: "empty_instruction", EntityType: "recipes", Index: index,
				Message: "every instruction requires text"}
		}
	}
	return nil
}

func (v *Validator) validateMealPlan(m bundle.MealPlanSnapshot, index int) error {
	if m.StartDate == "" && m.Date == "" {
		return &ValidationError{Code: "missing_date", EntityType: "mealPlans", Index: index,
			Message: "meal plan requires a date or start date"}
	}
	if m.Meals == nil {
		return &ValidationError{Code: "missing_meals", EntityType: "mealPlans", Index: index,
			Message: "meal plan requires a meals array"}
	}
	for _, meal := range m.Meals {
		if !entities.ValidMealType(meal.Type) {
			return &ValidationError{Code: "invalid_meal_type", EntityType: "mealPlans", Index: index,
				Message: fmt.Sprintf("unknown meal type %q", meal.Type)}
		}
	}
	return nil
}

// warnUnresolvedReferences logs recipe references that do not resolve
// inside the same bundle. Non-fatal: final resolution happens in the
// import processor, which drops unresolvable references.
func (v *Validator) warnUnresolvedReferences(b *bundle.Bundle) {
	known := make(map[string]struct{}, len(b.Recipes))
	for _, r := range b.Recipes {
		known[r.OldID] = struct{}{}
	}

	for _, c := range b.Collections {
		for _, id := range c.RecipeIDs {
			if _, ok := known[id]; !ok {
				log.Printf("Bundle validator: collection %q references unknown recipe id %q", c.Name, id)
			}
		}
	}
	for _, m := range b.MealPlans {
		for _, meal := range m.Meals {
			for _, ref := range meal.Recipes {
				if _, ok := known[ref.RecipeID]; !ok {
					log.Printf("Bundle validator: meal plan %q references unknown recipe id %q", m.Name, ref.RecipeID)
				}
			}
		}
	}
}

// clean strips HTML/script markup from s.
func (v *Validator) clean(s string) string {
	if s == "" {
		return s
	}
	// bluemonday escapes residual entities; unescape to keep plain text
	// like "salt & pepper" intact.
	return html.UnescapeString(v.policy.Sanitize(s))
}

func (v *Validator) sanitizeBundle(b *bundle.Bundle) {
	for i := range b.Recipes {
		r := &b.Recipes[i]
		r.Title = v.clean(r.Title)
		r.Cuisine = v.clean(r.Cuisine)
		r.Notes = v.clean(r.Notes)
		r.DishType = v.clean(r.DishType)
		for j := range r.Tags {
			r.Tags[j] = v.clean(r.Tags[j])
		}
		for j := range r.Ingredients {
			r.Ingredients[j].Name = v.clean(r.Ingredients[j].Name)
			r.Ingredients[j].LegacyName = v.clean(r.Ingredients[j].LegacyName)
			r.Ingredients[j].Unit = v.clean(r.Ingredients[j].Unit)
		}
		for j := range r.Instructions {
			r.Instructions[j].Text = v.clean(r.Instructions[j].Text)
		}
	}
	for i := range b.Collections {
		c := &b.Collections[i]
		c.Name = v.clean(c.Name)
		c.Description = v.clean(c.Description)
		c.Icon = v.clean(c.Icon)
	}
	for i := range b.MealPlans {
		b.MealPlans[i].Name = v.clean(b.MealPlans[i].Name)
	}
	for i := range b.ShoppingLists {
		s := &b.ShoppingLists[i]
		s.Name = v.clean(s.Name)
		for j := range s.Items {
			s.Items[j].Ingredient = v.clean(s.Items[j].Ingredient)
			s.Items[j].Unit = v.clean(s.Items[j].Unit)
			s.Items[j].Category = v.clean(s.Items[j].Category)
		}
	}
}
