package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealkeeper/mealkeeper/internal/bundle"
)

func amount(v float64) *float64 { return &v }

func validBundle() *bundle.Bundle {
	return &bundle.Bundle{
		Version:    bundle.CurrentVersion,
		ExportDate: "2026-08-30T12:00:00Z",
		Recipes: []bundle.RecipeSnapshot{
			{
				OldID: "1",
				Title: "Carbonara",
				Ingredients: []bundle.IngredientSnapshot{
					{Name: "Spaghetti", Amount: amount(200), Unit: "g"},
					{Name: "Guanciale", Amount: amount(100), Unit: "g"},
				},
				Instructions: []bundle.InstructionSnapshot{
					{Text: "Boil the pasta."},
					{Text: "Render the guanciale."},
				},
			},
		},
		Collections: []bundle.CollectionSnapshot{
			{OldID: "1", Name: "Pasta", RecipeIDs: []string{"1"}},
		},
		MealPlans: []bundle.MealPlanSnapshot{
			{
				OldID:     "1",
				Name:      "This week",
				StartDate: "2026-08-31",
				EndDate:   "2026-09-06",
				Meals: []bundle.MealSnapshot{
					{Date: "2026-09-01", Type: "dinner", Recipes: []bundle.MealRecipeRef{{RecipeID: "1"}}},
				},
			},
		},
		ShoppingLists: []bundle.ShoppingListSnapshot{
			{OldID: "1", Name: "Groceries", Items: []bundle.ShoppingListItemSnapshot{{Ingredient: "Eggs"}}},
		},
	}
}

func TestValidateAcceptsValidBundle(t *testing.T) {
	require.NoError(t, New().Validate(validBundle()))
}

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*bundle.Bundle)
		field  string
	}{
		{"missing version", func(b *bundle.Bundle) { b.Version = "" }, "version"},
		{"missing export date", func(b *bundle.Bundle) { b.ExportDate = "" }, "exportDate"},
		{"absent recipes array", func(b *bundle.Bundle) { b.Recipes = nil }, "recipes"},
		{"absent collections array", func(b *bundle.Bundle) { b.Collections = nil }, "collections"},
		{"absent meal plans array", func(b *bundle.Bundle) { b.MealPlans = nil }, "mealPlans"},
		{"absent shopping lists array", func(b *bundle.Bundle) { b.ShoppingLists = nil }, "shoppingLists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBundle()
			tt.mutate(b)

			err := New().Validate(b)
			var schemaErr *bundle.SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tt.field, schemaErr.Field)
		})
	}
}

func TestValidateEmptyArraysAreValid(t *testing.T) {
	b := &bundle.Bundle{
		Version:       bundle.CurrentVersion,
		ExportDate:    "2026-08-30T12:00:00Z",
		Recipes:       []bundle.RecipeSnapshot{},
		Collections:   []bundle.CollectionSnapshot{},
		MealPlans:     []bundle.MealPlanSnapshot{},
		ShoppingLists: []bundle.ShoppingListSnapshot{},
	}
	require.NoError(t, New().Validate(b))
}

func TestValidateRejectsIncompatibleVersion(t *testing.T) {
	b := validBundle()
	b.Version = "9.0.0"

	err := New().Validate(b)
	var versionErr *bundle.IncompatibleVersionError
	require.ErrorAs(t, err, &versionErr)
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*bundle.Bundle)
		code       string
		entityType string
	}{
		{
			"missing recipe title",
			func(b *bundle.Bundle) { b.Recipes[0].Title = "" },
			"missing_title", "recipes",
		},
		{
			"title too long",
			func(b *bundle.Bundle) { b.Recipes[0].Title = strings.Repeat("x", MaxTitleLength+1) },
			"title_too_long", "recipes",
		},
		{
			"no ingredients",
			func(b *bundle.Bundle) { b.Recipes[0].Ingredients = nil },
			"empty_ingredients", "recipes",
		},
		{
			"ingredient without name",
			func(b *bundle.Bundle) { b.Recipes[0].Ingredients[0].Name = "" },
			"missing_ingredient_name", "recipes",
		},
		{
			"ingredient without amount",
			func(b *bundle.Bundle) { b.Recipes[0].Ingredients[1].Amount = nil },
			"missing_ingredient_amount", "recipes",
		},
		{
			"no instructions",
			func(b *bundle.Bundle) { b.Recipes[0].Instructions = nil },
			"empty_instructions", "recipes",
		},
		{
			"empty instruction text",
			func(b *bundle.Bundle) { b.Recipes[0].Instructions[1].Text = "" },
			"empty_instruction", "recipes",
		},
		{
			"collection without name",
			func(b *bundle.Bundle) { b.Collections[0].Name = "" },
			"missing_name", "collections",
		},
		{
			"meal plan without dates",
			func(b *bundle.Bundle) { b.MealPlans[0].StartDate = ""; b.MealPlans[0].Date = "" },
			"missing_date", "mealPlans",
		},
		{
			"meal plan without meals array",
			func(b *bundle.Bundle) { b.MealPlans[0].Meals = nil },
			"missing_meals", "mealPlans",
		},
		{
			"unknown meal type",
			func(b *bundle.Bundle) { b.MealPlans[0].Meals[0].Type = "brunch" },
			"invalid_meal_type", "mealPlans",
		},
		{
			"shopping list without name",
			func(b *bundle.Bundle) { b.ShoppingLists[0].Name = "" },
			"missing_name", "shoppingLists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBundle()
			tt.mutate(b)

			err := New().Validate(b)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.code, validationErr.Code)
			assert.Equal(t, tt.entityType, validationErr.EntityType)
		})
	}
}

func TestValidateTitleLengthCountsRunes(t *testing.T) {
	// A title of exactly 200 multibyte characters is within the limit
	// even though it is far longer in bytes.
	b := validBundle()
	b.Recipes[0].Title = strings.Repeat("ü", MaxTitleLength)
	require.NoError(t, New().Validate(b))

	b = validBundle()
	b.Recipes[0].Title = strings.Repeat("ü", MaxTitleLength+1)
	err := New().Validate(b)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "title_too_long", vErr.Code)
}

func TestValidateLegacyMealPlanDate(t *testing.T) {
	b := validBundle()
	b.MealPlans[0].StartDate = ""
	b.MealPlans[0].EndDate = ""
	b.MealPlans[0].Date = "2026-09-01"
	require.NoError(t, New().Validate(b))
}

func TestValidateLegacyIngredientName(t *testing.T) {
	b := validBundle()
	b.Recipes[0].Ingredients[0].Name = ""
	b.Recipes[0].Ingredients[0].LegacyName = "Spaghetti"
	require.NoError(t, New().Validate(b))
}

func TestSanitizeStripsMarkup(t *testing.T) {
	b := validBundle()
	b.Recipes[0].Title = `<script>alert("x")</script>Carbonara`
	b.Recipes[0].Notes = "<b>Rich</b> and salty"
	b.Recipes[0].Ingredients[0].Name = "<i>Spaghetti</i>"
	b.Collections[0].Description = `<img src=x onerror=alert(1)>Classics`
	b.ShoppingLists[0].Items[0].Ingredient = "Eggs<script></script>"

	require.NoError(t, New().Validate(b))

	assert.Equal(t, "Carbonara", b.Recipes[0].Title)
	assert.Equal(t, "Rich and salty", b.Recipes[0].Notes)
	assert.Equal(t, "Spaghetti", b.Recipes[0].Ingredients[0].Name)
	assert.Equal(t, "Classics", b.Collections[0].Description)
	assert.Equal(t, "Eggs", b.ShoppingLists[0].Items[0].Ingredient)
}

func TestSanitizeKeepsEntities(t *testing.T) {
	b := validBundle()
	b.Recipes[0].Ingredients[0].Name = "Salt & pepper"

	require.NoError(t, New().Validate(b))
	assert.Equal(t, "Salt & pepper", b.Recipes[0].Ingredients[0].Name)
}

func TestSanitizeRunsBeforeContentChecks(t *testing.T) {
	// A title that is markup only must strip down to nothing and then
	// fail the content pass, not slip through as non-empty.
	b := validBundle()
	b.Recipes[0].Title = "<b></b>"

	err := New().Validate(b)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "missing_title", validationErr.Code)
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Code: "missing_title", EntityType: "recipes", Index: 3, Message: "recipe requires a title"}
	assert.Equal(t, "recipes[3]: recipe requires a title (missing_title)", err.Error())
	assert.False(t, errors.Is(err, bundle.ErrFileFormat))
}
