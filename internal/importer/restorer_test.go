package importer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealkeeper/mealkeeper/internal/bundle"
	"github.com/mealkeeper/mealkeeper/internal/database"
	"github.com/mealkeeper/mealkeeper/internal/entities"
)

func newTestStore(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func amount(v float64) *float64 { return &v }

func importBundle() *bundle.Bundle {
	return &bundle.Bundle{
		Version:    bundle.CurrentVersion,
		ExportDate: "2026-08-30T12:00:00Z",
		Recipes: []bundle.RecipeSnapshot{
			{
				OldID:    "101",
				Title:    "Carbonara",
				DishType: "main",
				Tags:     []string{"pasta", "quick"},
				Ingredients: []bundle.IngredientSnapshot{
					{Name: "Spaghetti", Amount: amount(200), Unit: "g"},
					{Name: "Eggs", Amount: amount(3)},
				},
				Instructions: []bundle.InstructionSnapshot{
					{Text: "Boil the pasta."},
					{Text: "Toss with the sauce."},
				},
			},
			{
				OldID: "102",
				Title: "Greek Salad",
				Ingredients: []bundle.IngredientSnapshot{
					{Name: "Tomatoes", Amount: amount(4)},
				},
				Instructions: []bundle.InstructionSnapshot{
					{Text: "Chop and combine."},
				},
			},
		},
		Collections: []bundle.CollectionSnapshot{
			{
				OldID:     "201",
				Name:      "Favourites",
				RecipeIDs: []string{"101", "999", "102"},
			},
		},
		MealPlans: []bundle.MealPlanSnapshot{
			{
				OldID:     "301",
				Name:      "June week one",
				StartDate: "2026-06-01",
				EndDate:   "2026-06-07",
				Meals: []bundle.MealSnapshot{
					{
						Date: "2026-06-02",
						Type: "dinner",
						Recipes: []bundle.MealRecipeRef{
							{RecipeID: "101", Servings: 2},
							{RecipeID: "999"},
						},
					},
				},
			},
		},
		ShoppingLists: []bundle.ShoppingListSnapshot{
			{
				OldID: "401",
				Name:  "Groceries",
				Items: []bundle.ShoppingListItemSnapshot{
					{Ingredient: "Spaghetti", Quantity: 1, Unit: "pack", RecipeID: "101"},
					{Ingredient: "Milk", Quantity: 2, RecipeID: "999"},
				},
			},
		},
	}
}

func TestRestoreMergeIntoEmptyAccount(t *testing.T) {
	store := newTestStore(t)
	restorer := NewRestorer(store)

	stats, err := restorer.Restore(1, importBundle(), ModeMerge)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalImported)
	assert.Equal(t, 0, stats.TotalSkipped)
	assert.Equal(t, 2, stats.Counts.RecipesImported)
	assert.Equal(t, 1, stats.Counts.CollectionsImported)
	assert.Equal(t, 1, stats.Counts.MealPlansImported)
	assert.Equal(t, 1, stats.Counts.ShoppingListsImported)

	recipes, err := store.RecipesForAccount(1)
	require.NoError(t, err)
	require.Len(t, recipes, 2)

	byTitle := make(map[string]entities.Recipe, len(recipes))
	for _, r := range recipes {
		byTitle[r.Title] = r
	}
	carbonara := byTitle["Carbonara"]
	assert.Equal(t, entities.DishTypeMain, carbonara.DishType)
	assert.Equal(t, "pasta,quick", carbonara.Tags)
	require.Len(t, carbonara.Ingredients, 2)
	assert.Equal(t, "Spaghetti", carbonara.Ingredients[0].Name)
	assert.Equal(t, 0, carbonara.Ingredients[0].Position)
	assert.Equal(t, 1, carbonara.Ingredients[1].Position)
	require.Len(t, carbonara.Instructions, 2)
}

func TestRestoreRemapsReferencesAndDropsUnresolvable(t *testing.T) {
	store := newTestStore(t)

	_, err := NewRestorer(store).Restore(1, importBundle(), ModeMerge)
	require.NoError(t, err)

	recipes, err := store.RecipesForAccount(1)
	require.NoError(t, err)
	newIDs := make(map[string]uint, len(recipes))
	for _, r := range recipes {
		newIDs[r.Title] = r.ID
	}

	collections, err := store.CollectionsForAccount(1)
	require.NoError(t, err)
	require.Len(t, collections, 1)
	// The "999" reference resolves to nothing and is dropped without error.
	require.Len(t, collections[0].Recipes, 2)
	assert.Equal(t, newIDs["Carbonara"], collections[0].Recipes[0].RecipeID)
	assert.Equal(t, newIDs["Greek Salad"], collections[0].Recipes[1].RecipeID)
	assert.Equal(t, 0, collections[0].Recipes[0].Position)
	assert.Equal(t, 1, collections[0].Recipes[1].Position)

	plans, err := store.MealPlansForAccount(1)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.Len(t, plans[0].Meals, 1)
	require.Len(t, plans[0].Meals[0].Recipes, 1)
	assert.Equal(t, newIDs["Carbonara"], plans[0].Meals[0].Recipes[0].RecipeID)
	assert.Equal(t, 2, plans[0].Meals[0].Recipes[0].Servings)

	lists, err := store.ShoppingListsForAccount(1)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	require.Len(t, lists[0].Items, 2)
	require.NotNil(t, lists[0].Items[0].RecipeID)
	assert.Equal(t, newIDs["Carbonara"], *lists[0].Items[0].RecipeID)
	assert.Nil(t, lists[0].Items[1].RecipeID)
}

func TestRestoreMergeIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	restorer := NewRestorer(store)

	first, err := restorer.Restore(1, importBundle(), ModeMerge)
	require.NoError(t, err)
	require.Equal(t, 5, first.TotalImported)

	second, err := restorer.Restore(1, importBundle(), ModeMerge)
	require.NoError(t, err)
	assert.Equal(t, 0, second.TotalImported)
	assert.Equal(t, 5, second.TotalSkipped)

	recipes, err := store.RecipesForAccount(1)
	require.NoError(t, err)
	assert.Len(t, recipes, 2)
}

func TestRestoreReplaceDeletesExistingData(t *testing.T) {
	store := newTestStore(t)

	existing := entities.Recipe{
		AccountID:   1,
		Title:       "Doomed Recipe",
		Ingredients: []entities.Ingredient{{Name: "Dust"}},
	}
	require.NoError(t, store.Session().Create(&existing).Error)
	require.NoError(t, store.Session().Create(&entities.ShoppingList{
		AccountID: 1,
		Name:      "Old list",
		Items:     []entities.ShoppingListItem{{Ingredient: "Candles"}},
	}).Error)

	// Another account's data must survive the replacement.
	require.NoError(t, store.Session().Create(&entities.Recipe{
		AccountID:   2,
		Title:       "Neighbour Recipe",
		Ingredients: []entities.Ingredient{{Name: "Salt"}},
	}).Error)

	stats, err := NewRestorer(store).Restore(1, importBundle(), ModeReplace)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalImported)
	assert.Equal(t, 0, stats.TotalSkipped)

	recipes, err := store.RecipesForAccount(1)
	require.NoError(t, err)
	titles := make([]string, 0, len(recipes))
	for _, r := range recipes {
		titles = append(titles, r.Title)
	}
	assert.ElementsMatch(t, []string{"Carbonara", "Greek Salad"}, titles)

	lists, err := store.ShoppingListsForAccount(1)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "Groceries", lists[0].Name)

	other, err := store.RecipesForAccount(2)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "Neighbour Recipe", other[0].Title)
}

func TestRestoreReplaceIsDeterministic(t *testing.T) {
	store := newTestStore(t)
	restorer := NewRestorer(store)

	_, err := restorer.Restore(1, importBundle(), ModeReplace)
	require.NoError(t, err)
	stats, err := restorer.Restore(1, importBundle(), ModeReplace)
	require.NoError(t, err)

	// Replace never skips duplicates; it always ends at the bundle's state.
	assert.Equal(t, 5, stats.TotalImported)
	assert.Equal(t, 0, stats.TotalSkipped)

	recipes, err := store.RecipesForAccount(1)
	require.NoError(t, err)
	assert.Len(t, recipes, 2)
}

func TestRestoreRollsBackOnFailure(t *testing.T) {
	store := newTestStore(t)

	b := importBundle()
	b.MealPlans[0].StartDate = "not a date"
	b.MealPlans[0].Date = ""

	_, err := NewRestorer(store).Restore(1, b, ModeMerge)
	var txErr *TransactionError
	require.ErrorAs(t, err, &txErr)

	// Recipes were written before the failing meal plan; the rollback
	// must take them with it.
	recipes, err := store.RecipesForAccount(1)
	require.NoError(t, err)
	assert.Empty(t, recipes)
}

func TestRestoreWithoutTransactionsStillCompletes(t *testing.T) {
	store := newTestStore(t)
	store.MarkTransactionsUnsupported()

	stats, err := NewRestorer(store).Restore(1, importBundle(), ModeMerge)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalImported)

	recipes, err := store.RecipesForAccount(1)
	require.NoError(t, err)
	assert.Len(t, recipes, 2)
}

func TestRestoreWithoutTransactionsLeavesPartialWrites(t *testing.T) {
	store := newTestStore(t)
	store.MarkTransactionsUnsupported()

	b := importBundle()
	b.MealPlans[0].StartDate = "not a date"
	b.MealPlans[0].Date = ""

	_, err := NewRestorer(store).Restore(1, b, ModeMerge)
	var txErr *TransactionError
	require.ErrorAs(t, err, &txErr)

	// Recipes land before the failing meal plan and, with no wrapping
	// transaction, they stay behind.
	recipes, err := store.RecipesForAccount(1)
	require.NoError(t, err)
	assert.Len(t, recipes, 2)
}

func TestRestoreRejectsUnknownMode(t *testing.T) {
	store := newTestStore(t)

	_, err := NewRestorer(store).Restore(1, importBundle(), Mode("overwrite"))
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("merge")
	require.NoError(t, err)
	assert.Equal(t, ModeMerge, mode)

	mode, err = ParseMode("replace")
	require.NoError(t, err)
	assert.Equal(t, ModeReplace, mode)

	_, err = ParseMode("upsert")
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestNormalizeDishType(t *testing.T) {
	tests := []struct {
		input string
		want  entities.DishType
	}{
		{"main", entities.DishTypeMain},
		{"Main", entities.DishTypeMain},
		{"  dessert  ", entities.DishTypeDessert},
		{"main course", entities.DishTypeMain},
		{"entree", entities.DishTypeMain},
		{"dinner", entities.DishTypeMain},
		{"starter", entities.DishTypeAppetizer},
		{"beverage", entities.DishTypeDrink},
		{"cocktail", entities.DishTypeDrink},
		{"sou", entities.DishTypeSoup},
		{"", entities.DishTypeOther},
		{"casserole", entities.DishTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDishType(tt.input))
		})
	}
}
