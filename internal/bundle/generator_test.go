package bundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

type fakeDataReader struct {
	recipes       []entities.Recipe
	collections   []entities.Collection
	mealPlans     []entities.MealPlan
	shoppingLists []entities.ShoppingList
}

func (f *fakeDataReader) RecipesForAccount(uint) ([]entities.Recipe, error) {
	return f.recipes, nil
}

func (f *fakeDataReader) CollectionsForAccount(uint) ([]entities.Collection, error) {
	return f.collections, nil
}

func (f *fakeDataReader) MealPlansForAccount(uint) ([]entities.MealPlan, error) {
	return f.mealPlans, nil
}

func (f *fakeDataReader) ShoppingListsForAccount(uint) ([]entities.ShoppingList, error) {
	return f.shoppingLists, nil
}

func seededReader() *fakeDataReader {
	recipeID := uint(7)
	return &fakeDataReader{
		recipes: []entities.Recipe{
			{
				ID:        7,
				AccountID: 1,
				Title:     "Shakshuka",
				PrepTime:  10,
				CookTime:  25,
				Servings:  2,
				DishType:  entities.DishTypeMain,
				Cuisine:   "Middle Eastern",
				Tags:      "eggs, breakfast-for-dinner",
				Rating:    5,
				Notes:     "Best in a cast iron pan.",
				Ingredients: []entities.Ingredient{
					{Name: "Eggs", Amount: 4, Position: 0},
					{Name: "Crushed tomatoes", Amount: 400, Unit: "g", Position: 1},
				},
				Instructions: []entities.Instruction{
					{Text: "Simmer the tomatoes.", Position: 0},
					{Text: "Crack the eggs on top and cover.", Position: 1},
				},
			},
		},
		collections: []entities.Collection{
			{
				ID:        3,
				AccountID: 1,
				Name:      "Weeknight",
				Icon:      "moon",
				Recipes: []entities.CollectionRecipe{
					{CollectionID: 3, RecipeID: 7, Position: 0},
				},
			},
		},
		mealPlans: []entities.MealPlan{
			{
				ID:        5,
				AccountID: 1,
				Name:      "First week of June",
				StartDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2026, 6, 7, 0, 0, 0, 0, time.UTC),
				Meals: []entities.Meal{
					{
						MealPlanID: 5,
						Date:       time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
						Type:       entities.MealTypeDinner,
						Recipes: []entities.MealRecipe{
							{MealID: 1, RecipeID: 7, Servings: 2},
						},
					},
				},
			},
		},
		shoppingLists: []entities.ShoppingList{
			{
				ID:        9,
				AccountID: 1,
				Name:      "Sunday shop",
				Items: []entities.ShoppingListItem{
					{Ingredient: "Eggs", Quantity: 12, Unit: "pcs", Category: "dairy", RecipeID: &recipeID},
					{Ingredient: "Olive oil", Quantity: 1, Checked: true},
				},
			},
		},
	}
}

func TestGeneratorRoundTrip(t *testing.T) {
	outputDir := t.TempDir()
	gen := NewGenerator(seededReader(), outputDir)

	archivePath, size, err := gen.Generate(1, entities.BackupTypeManual)
	require.NoError(t, err)
	require.FileExists(t, archivePath)

	info, err := os.Stat(archivePath)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), size)
	assert.Equal(t, ".zip", filepath.Ext(archivePath))
	assert.True(t, strings.HasPrefix(filepath.Base(archivePath), "mealkeeper-backup-1-"))

	// The intermediate uncompressed document must not survive.
	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	parsed, err := NewParser().Parse(archivePath)
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, parsed.Version)
	assert.Equal(t, entities.BackupTypeManual, parsed.Type)
	_, err = time.Parse(time.RFC3339, parsed.ExportDate)
	assert.NoError(t, err)

	require.NotNil(t, parsed.Statistics)
	assert.Equal(t, parsed.ComputedStatistics(), *parsed.Statistics)
	assert.Equal(t, 4, parsed.TotalEntities())

	require.Len(t, parsed.Recipes, 1)
	recipe := parsed.Recipes[0]
	assert.Equal(t, "7", recipe.OldID)
	assert.Equal(t, "Shakshuka", recipe.Title)
	assert.Equal(t, string(entities.DishTypeMain), recipe.DishType)
	assert.Equal(t, []string{"eggs", "breakfast-for-dinner"}, recipe.Tags)
	require.Len(t, recipe.Ingredients, 2)
	assert.Equal(t, "Eggs", recipe.Ingredients[0].ItemName())
	require.NotNil(t, recipe.Ingredients[1].Amount)
	assert.Equal(t, 400.0, *recipe.Ingredients[1].Amount)
	assert.Equal(t, "g", recipe.Ingredients[1].Unit)
	require.Len(t, recipe.Instructions, 2)
	assert.Equal(t, "Simmer the tomatoes.", recipe.Instructions[0].Text)

	require.Len(t, parsed.Collections, 1)
	collection := parsed.Collections[0]
	assert.Equal(t, "3", collection.OldID)
	assert.Equal(t, "Weeknight", collection.Name)
	assert.Equal(t, []string{"7"}, collection.RecipeIDs)

	require.Len(t, parsed.MealPlans, 1)
	plan := parsed.MealPlans[0]
	assert.Equal(t, "5", plan.OldID)
	assert.Equal(t, "2026-06-01", plan.StartDate)
	assert.Equal(t, "2026-06-07", plan.EndDate)
	require.Len(t, plan.Meals, 1)
	assert.Equal(t, "2026-06-02", plan.Meals[0].Date)
	assert.Equal(t, string(entities.MealTypeDinner), plan.Meals[0].Type)
	require.Len(t, plan.Meals[0].Recipes, 1)
	assert.Equal(t, "7", plan.Meals[0].Recipes[0].RecipeID)
	assert.Equal(t, 2, plan.Meals[0].Recipes[0].Servings)

	require.Len(t, parsed.ShoppingLists, 1)
	list := parsed.ShoppingLists[0]
	assert.Equal(t, "9", list.OldID)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "Eggs", list.Items[0].Ingredient)
	assert.Equal(t, "7", list.Items[0].RecipeID)
	assert.Equal(t, "dairy", list.Items[0].Category)
	assert.True(t, list.Items[1].Checked)
	assert.Empty(t, list.Items[1].RecipeID)
}

func TestGeneratorEmptyAccount(t *testing.T) {
	gen := NewGenerator(&fakeDataReader{}, t.TempDir())

	archivePath, _, err := gen.Generate(42, entities.BackupTypeAutomatic)
	require.NoError(t, err)

	parsed, err := NewParser().Parse(archivePath)
	require.NoError(t, err)

	assert.NotNil(t, parsed.Recipes)
	assert.NotNil(t, parsed.Collections)
	assert.NotNil(t, parsed.MealPlans)
	assert.NotNil(t, parsed.ShoppingLists)
	assert.Equal(t, 0, parsed.TotalEntities())
	require.NotNil(t, parsed.Statistics)
	assert.Equal(t, Statistics{}, *parsed.Statistics)
}
