package importer

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mealkeeper/mealkeeper/internal/bundle"
	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// Mode selects the import strategy.
type Mode string

const (
	// ModeMerge adds new entities and skips detected duplicates.
	ModeMerge Mode = "merge"
	// ModeReplace deletes all existing owned data before inserting.
	ModeReplace Mode = "replace"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMerge, ModeReplace:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Counts reports what an import wrote and skipped.
type Counts struct {
	RecipesImported       int           `json:"recipes_imported"`
	CollectionsImported   int           `json:"collections_imported"`
	MealPlansImported     int           `json:"meal_plans_imported"`
	ShoppingListsImported int           `json:"shopping_lists_imported"`
	DuplicatesSkipped     int           `json:"duplicates_skipped"`
	Duration              time.Duration `json:"duration"`
}

// TotalImported sums the per-type imported counts.
func (c Counts) TotalImported() int {
	return c.RecipesImported + c.CollectionsImported + c.MealPlansImported + c.ShoppingListsImported
}

// ImportProcessor writes a validated bundle inside one transaction.
//
// Processing order is fixed: recipes first, building the old-id to new-id
// remapping table, then collections, meal plans and shopping lists, which
// rewrite recipe references through that table. A reference with no
// mapping entry is silently dropped.
type ImportProcessor struct{}

func NewImportProcessor() *ImportProcessor {
	return &ImportProcessor{}
}

// Process writes exactly the non-skipped entities of b for accountID.
// It assumes b was validated; callers must not pass unvalidated input.
// The caller supplies tx: a real transaction handle for atomic imports,
// or a plain session on the degraded path.
func (p *ImportProcessor) Process(tx *gorm.DB, accountID uint, b *bundle.Bundle, mode Mode, skips *SkipSets) (*Counts, error) {
	start := time.Now()

	if mode != ModeMerge && mode != ModeReplace {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if skips == nil {
		skips = newSkipSets()
	}

	if mode == ModeReplace {
		if err := deleteAccountData(tx, accountID); err != nil {
			return nil, fmt.Errorf("failed to clear existing data: %w", err)
		}
	}

	counts := &Counts{DuplicatesSkipped: skips.Total()}

	remap, err := p.importRecipes(tx, accountID, b, skips, counts)
	if err != nil {
		return nil, err
	}
	if err := p.importCollections(tx, accountID, b, skips, remap, counts); err != nil {
		return nil, err
	}
	if err := p.importMealPlans(tx, accountID, b, skips, remap, counts); err != nil {
		return nil, err
	}
	if err := p.importShoppingLists(tx, accountID, b, skips, remap, counts); err != nil {
		return nil, err
	}

	counts.Duration = time.Since(start)
	return counts, nil
}

// deleteAccountData hard-deletes all of the account's recipes,
// collections, meal plans and shopping lists, children first.
func deleteAccountData(tx *gorm.DB, accountID uint) error {
	recipeIDs := tx.Model(&entities.Recipe{}).Select("id").Where("account_id = ?", accountID)
	if err := tx.Where("recipe_id IN (?)", recipeIDs).Delete(&entities.Ingredient{}).Error; err != nil {
		return err
	}
	recipeIDs = tx.Model(&entities.Recipe{}).Select("id").Where("account_id = ?", accountID)
	if err := tx.Where("recipe_id IN (?)", recipeIDs).Delete(&entities.Instruction{}).Error; err != nil {
		return err
	}

	collectionIDs := tx.Model(&entities.Collection{}).Select("id").Where("account_id = ?", accountID)
	if err := tx.Where("collection_id IN (?)", collectionIDs).Delete(&entities.CollectionRecipe{}).Error; err != nil {
		return err
	}

	planIDs := tx.Model(&entities.MealPlan{}).Select("id").Where("account_id = ?", accountID)
	mealIDs := tx.Model(&entities.Meal{}).Select("id").Where("meal_plan_id IN (?)", planIDs)
	if err := tx.Where("meal_id IN (?)", mealIDs).Delete(&entities.MealRecipe{}).Error; err != nil {
		return err
	}
	planIDs = tx.Model(&entities.MealPlan{}).Select("id").Where("account_id = ?", accountID)
	if err := tx.Where("meal_plan_id IN (?)", planIDs).Delete(&entities.Meal{}).Error; err != nil {
		return err
	}

	listIDs := tx.Model(&entities.ShoppingList{}).Select("id").Where("account_id = ?", accountID)
	if err := tx.Where("shopping_list_id IN (?)", listIDs).Delete(&entities.ShoppingListItem{}).Error; err != nil {
		return err
	}

	for _, model := range []any{
		&entities.Recipe{}, &entities.Collection{}, &entities.MealPlan{}, &entities.ShoppingList{},
	} {
		if err := tx.Unscoped().Where("account_id = ?", accountID).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

// importRecipes creates the non-skipped recipes and returns the old-id
// to new-id remapping table.
func (p *ImportProcessor) importRecipes(tx *gorm.DB, accountID uint, b *bundle.Bundle, skips *SkipSets, counts *Counts) (map[string]uint, error) {
	remap := make(map[string]uint, len(b.Recipes))

	for i, snap := range b.Recipes {
		if _, skip := skips.Recipes[i]; skip {
			continue
		}

		recipe := entities.Recipe{
			AccountID: accountID,
			Title:     snap.Title,
			PrepTime:  snap.PrepTime,
			CookTime:  snap.CookTime,
			Servings:  snap.Servings,
			DishType:  NormalizeDishType(snap.DishType),
			Cuisine:   snap.Cuisine,
			Tags:      strings.Join(snap.Tags, ","),
			Rating:    snap.Rating,
			Notes:     snap.Notes,
			SourceURL: snap.SourceURL,
			Locked:    snap.Locked,
		}

		for pos, ing := range snap.Ingredients {
			var amount float64
			if ing.Amount != nil {
				amount = *ing.Amount
			}
			recipe.Ingredients = append(recipe.Ingredients, entities.Ingredient{
				Name:     ing.ItemName(),
				Amount:   amount,
				Unit:     ing.Unit,
				Position: pos,
			})
		}
		for pos, ins := range snap.Instructions {
			recipe.Instructions = append(recipe.Instructions, entities.Instruction{
				Text:     ins.Text,
				Position: pos,
			})
		}

		if err := tx.Create(&recipe).Error; err != nil {
			return nil, fmt.Errorf("failed to create recipe %q: %w", snap.Title, err)
		}

		if snap.OldID != "" {
			remap[snap.OldID] = recipe.ID
		}
		counts.RecipesImported++
	}

	return remap, nil
}

func (p *ImportProcessor) importCollections(tx *gorm.DB, accountID uint, b *bundle.Bundle, skips *SkipSets, remap map[string]uint, counts *Counts) error {
	for i, snap := range b.Collections {
		if _, skip := skips.Collections[i]; skip {
			continue
		}

		collection := entities.Collection{
			AccountID:   accountID,
			Name:        snap.Name,
			Description: snap.Description,
			Icon:        snap.Icon,
			Public:      snap.Public,
		}

		position := 0
		for _, oldID := range snap.RecipeIDs {
			newID, ok := remap[oldID]
			if !ok {
				// Unresolvable reference: dropped, never an error.
				continue
			}
			collection.Recipes = append(collection.Recipes, entities.CollectionRecipe{
				RecipeID: newID,
				Position: position,
			})
			position++
		}

		if err := tx.Create(&collection).Error; err != nil {
			return fmt.Errorf("failed to create collection %q: %w", snap.Name, err)
		}
		counts.CollectionsImported++
	}
	return nil
}

func (p *ImportProcessor) importMealPlans(tx *gorm.DB, accountID uint, b *bundle.Bundle, skips *SkipSets, remap map[string]uint, counts *Counts) error {
	for i, snap := range b.MealPlans {
		if _, skip := skips.MealPlans[i]; skip {
			continue
		}

		start, end, err := planDates(snap)
		if err != nil {
			return fmt.Errorf("failed to parse dates for meal plan %q: %w", snap.Name, err)
		}

		plan := entities.MealPlan{
			AccountID: accountID,
			Name:      snap.Name,
			StartDate: start,
			EndDate:   end,
		}

		for _, mealSnap := range snap.Meals {
			mealDate := start
			if mealSnap.Date != "" {
				if parsed, err := parseDate(mealSnap.Date); err == nil {
					mealDate = parsed
				}
			}

			meal := entities.Meal{
				Date: mealDate,
				Type: entities.MealType(mealSnap.Type),
			}
			for _, ref := range mealSnap.Recipes {
				newID, ok := remap[ref.RecipeID]
				if !ok {
					continue
				}
				servings := ref.Servings
				if servings <= 0 {
					servings = 1
				}
				meal.Recipes = append(meal.Recipes, entities.MealRecipe{
					RecipeID: newID,
					Servings: servings,
				})
			}
			// A meal whose references all dropped is kept with an empty
			// recipe list.
			plan.Meals = append(plan.Meals, meal)
		}

		if err := tx.Create(&plan).Error; err != nil {
			return fmt.Errorf("failed to create meal plan %q: %w", snap.Name, err)
		}
		counts.MealPlansImported++
	}
	return nil
}

func (p *ImportProcessor) importShoppingLists(tx *gorm.DB, accountID uint, b *bundle.Bundle, skips *SkipSets, remap map[string]uint, counts *Counts) error {
	for i, snap := range b.ShoppingLists {
		if _, skip := skips.ShoppingLists[i]; skip {
			continue
		}

		list := entities.ShoppingList{
			AccountID: accountID,
			Name:      snap.Name,
		}

		for _, itemSnap := range snap.Items {
			item := entities.ShoppingListItem{
				Ingredient: itemSnap.Ingredient,
				Quantity:   itemSnap.Quantity,
				Unit:       itemSnap.Unit,
				Category:   itemSnap.Category,
				Checked:    itemSnap.Checked,
			}
			if itemSnap.RecipeID != "" {
				if newID, ok := remap[itemSnap.RecipeID]; ok {
					item.RecipeID = &newID
				}
			}
			list.Items = append(list.Items, item)
		}

		if err := tx.Create(&list).Error; err != nil {
			return fmt.Errorf("failed to create shopping list %q: %w", snap.Name, err)
		}
		counts.ShoppingListsImported++
	}
	return nil
}

// NormalizeDishType maps a free-text dish type onto the fixed enum via
// case-insensitive exact then partial matches, defaulting to "other".
func NormalizeDishType(s string) entities.DishType {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return entities.DishTypeOther
	}

	known := []entities.DishType{
		entities.DishTypeAppetizer,
		entities.DishTypeMain,
		entities.DishTypeSide,
		entities.DishTypeDessert,
		entities.DishTypeBreakfast,
		entities.DishTypeSoup,
		entities.DishTypeSalad,
		entities.DishTypeDrink,
		entities.DishTypeSauce,
	}

	for _, dt := range known {
		if normalized == string(dt) {
			return dt
		}
	}
	for _, dt := range known {
		if strings.Contains(normalized, string(dt)) || strings.Contains(string(dt), normalized) {
			return dt
		}
	}

	// Common aliases seen in older exports.
	switch {
	case strings.Contains(normalized, "entree") || strings.Contains(normalized, "dinner"):
		return entities.DishTypeMain
	case strings.Contains(normalized, "starter"):
		return entities.DishTypeAppetizer
	case strings.Contains(normalized, "beverage") || strings.Contains(normalized, "cocktail"):
		return entities.DishTypeDrink
	}

	return entities.DishTypeOther
}
