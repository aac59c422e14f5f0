package importer

import (
	"sort"
	"strings"
	"time"

	"github.com/mealkeeper/mealkeeper/internal/bundle"
)

// SkipSets holds the bundle-array indices excluded from a merge-mode
// import, one set per entity type. Computed once per import call and
// never persisted.
type SkipSets struct {
	Recipes       map[int]struct{}
	Collections   map[int]struct{}
	MealPlans     map[int]struct{}
	ShoppingLists map[int]struct{}
}

func newSkipSets() *SkipSets {
	return &SkipSets{
		Recipes:       make(map[int]struct{}),
		Collections:   make(map[int]struct{}),
		MealPlans:     make(map[int]struct{}),
		ShoppingLists: make(map[int]struct{}),
	}
}

// Total counts skipped indices across all entity types.
func (s *SkipSets) Total() int {
	if s == nil {
		return 0
	}
	return len(s.Recipes) + len(s.Collections) + len(s.MealPlans) + len(s.ShoppingLists)
}

// RecipeKeyStrategy computes the duplicate key for a recipe. The default
// heuristic (title plus the first ingredient names) carries a known
// false-positive/negative risk, so the policy stays pluggable.
type RecipeKeyStrategy interface {
	Key(title string, ingredientNames []string) string
}

// TitleIngredientsKey matches on case-insensitive title plus the first N
// ingredient names, case-insensitive and order-independent.
type TitleIngredientsKey struct {
	N int
}

func (k TitleIngredientsKey) Key(title string, ingredientNames []string) string {
	n := k.N
	if n <= 0 {
		n = 3
	}
	if len(ingredientNames) > n {
		ingredientNames = ingredientNames[:n]
	}

	names := make([]string, 0, len(ingredientNames))
	for _, name := range ingredientNames {
		names = append(names, strings.ToLower(strings.TrimSpace(name)))
	}
	sort.Strings(names)

	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.Join(names, ",")
}

// DuplicateDetector computes per-entity-type skip-sets against the
// account's existing data. Read-only and side-effect-free; it runs to
// completion before any write begins.
type DuplicateDetector struct {
	reader   bundle.DataReader
	strategy RecipeKeyStrategy
}

func NewDuplicateDetector(reader bundle.DataReader) *DuplicateDetector {
	return &DuplicateDetector{
		reader:   reader,
		strategy: TitleIngredientsKey{N: 3},
	}
}

// WithStrategy overrides the recipe duplicate-key policy.
func (d *DuplicateDetector) WithStrategy(strategy RecipeKeyStrategy) *DuplicateDetector {
	d.strategy = strategy
	return d
}

// Detect builds the skip-sets for b against accountID's existing data.
func (d *DuplicateDetector) Detect(accountID uint, b *bundle.Bundle) (*SkipSets, error) {
	skips := newSkipSets()

	if err := d.detectRecipes(accountID, b, skips); err != nil {
		return nil, err
	}
	if err := d.detectCollections(accountID, b, skips); err != nil {
		return nil, err
	}
	if err := d.detectMealPlans(accountID, b, skips); err != nil {
		return nil, err
	}
	if err := d.detectShoppingLists(accountID, b, skips); err != nil {
		return nil, err
	}

	return skips, nil
}

func (d *DuplicateDetector) detectRecipes(accountID uint, b *bundle.Bundle, skips *SkipSets) error {
	existing, err := d.reader.RecipesForAccount(accountID)
	if err != nil {
		return err
	}

	keys := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		names := make([]string, 0, len(r.Ingredients))
		for _, ing := range r.Ingredients {
			names = append(names, ing.Name)
		}
		keys[d.strategy.Key(r.Title, names)] = struct{}{}
	}

	for i, snap := range b.Recipes {
		names := make([]string, 0, len(snap.Ingredients))
		for _, ing := range snap.Ingredients {
			names = append(names, ing.ItemName())
		}
		if _, ok := keys[d.strategy.Key(snap.Title, names)]; ok {
			skips.Recipes[i] = struct{}{}
		}
	}
	return nil
}

func (d *DuplicateDetector) detectCollections(accountID uint, b *bundle.Bundle, skips *SkipSets) error {
	existing, err := d.reader.CollectionsForAccount(accountID)
	if err != nil {
		return err
	}

	names := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		names[strings.ToLower(strings.TrimSpace(c.Name))] = struct{}{}
	}

	for i, snap := range b.Collections {
		if _, ok := names[strings.ToLower(strings.TrimSpace(snap.Name))]; ok {
			skips.Collections[i] = struct{}{}
		}
	}
	return nil
}

func (d *DuplicateDetector) detectMealPlans(accountID uint, b *bundle.Bundle, skips *SkipSets) error {
	existing, err := d.reader.MealPlansForAccount(accountID)
	if err != nil {
		return err
	}

	type planRange struct {
		start, end time.Time
	}
	ranges := make(map[string][]planRange, len(existing))
	for _, p := range existing {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		ranges[name] = append(ranges[name], planRange{start: p.StartDate, end: p.EndDate})
	}

	for i, snap := range b.MealPlans {
		name := strings.ToLower(strings.TrimSpace(snap.Name))
		candidates, ok := ranges[name]
		if !ok {
			continue
		}

		start, end, err := planDates(snap)
		if err != nil {
			continue
		}
		for _, r := range candidates {
			// Duplicate only when the name matches and the date ranges overlap.
			if !start.After(r.end) && !r.start.After(end) {
				skips.MealPlans[i] = struct{}{}
				break
			}
		}
	}
	return nil
}

func (d *DuplicateDetector) detectShoppingLists(accountID uint, b *bundle.Bundle, skips *SkipSets) error {
	existing, err := d.reader.ShoppingListsForAccount(accountID)
	if err != nil {
		return err
	}

	names := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		names[strings.ToLower(strings.TrimSpace(s.Name))] = struct{}{}
	}

	for i, snap := range b.ShoppingLists {
		if _, ok := names[strings.ToLower(strings.TrimSpace(snap.Name))]; ok {
			skips.ShoppingLists[i] = struct{}{}
		}
	}
	return nil
}
