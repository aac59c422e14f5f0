package bundle

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// DataReader provides read-only access to an account's dataset.
type DataReader interface {
	RecipesForAccount(accountID uint) ([]entities.Recipe, error)
	CollectionsForAccount(accountID uint) ([]entities.Collection, error)
	MealPlansForAccount(accountID uint) ([]entities.MealPlan, error)
	ShoppingListsForAccount(accountID uint) ([]entities.ShoppingList, error)
}

// Generator serializes an account's dataset into a versioned, compressed
// bundle archive.
type Generator struct {
	reader    DataReader
	outputDir string
}

func NewGenerator(reader DataReader, outputDir string) *Generator {
	return &Generator{reader: reader, outputDir: outputDir}
}

// Generate builds the bundle for accountID and writes it as a single-entry
// zip archive. Returns the archive path and its size in bytes. The
// intermediate uncompressed document is removed on every exit path.
func (g *Generator) Generate(accountID uint, backupType entities.BackupType) (string, int64, error) {
	b, err := g.buildBundle(accountID, backupType)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create backup directory: %w", err)
	}

	baseName := fmt.Sprintf("mealkeeper-backup-%d-%s-%s",
		accountID, time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8])

	docPath := filepath.Join(g.outputDir, baseName+".json")
	archivePath := filepath.Join(g.outputDir, baseName+".zip")

	if err := writeDocument(docPath, b); err != nil {
		return "", 0, err
	}
	defer func() {
		if err := os.Remove(docPath); err != nil && !os.IsNotExist(err) {
			log.Printf("Backup generator: failed to remove intermediate document %s: %v", docPath, err)
		}
	}()

	if err := compressDocument(docPath, archivePath); err != nil {
		os.Remove(archivePath)
		return "", 0, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat backup archive: %w", err)
	}

	return archivePath, info.Size(), nil
}

func (g *Generator) buildBundle(accountID uint, backupType entities.BackupType) (*Bundle, error) {
	recipes, err := g.reader.RecipesForAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipes: %w", err)
	}
	collections, err := g.reader.CollectionsForAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read collections: %w", err)
	}
	mealPlans, err := g.reader.MealPlansForAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read meal plans: %w", err)
	}
	shoppingLists, err := g.reader.ShoppingListsForAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read shopping lists: %w", err)
	}

	b := &Bundle{
		Version:       CurrentVersion,
		ExportDate:    time.Now().UTC().Format(time.RFC3339),
		Type:          backupType,
		Recipes:       make([]RecipeSnapshot, 0, len(recipes)),
		Collections:   make([]CollectionSnapshot, 0, len(collections)),
		MealPlans:     make([]MealPlanSnapshot, 0, len(mealPlans)),
		ShoppingLists: make([]ShoppingListSnapshot, 0, len(shoppingLists)),
	}

	for _, r := range recipes {
		b.Recipes = append(b.Recipes, snapshotRecipe(r))
	}
	for _, c := range collections {
		b.Collections = append(b.Collections, snapshotCollection(c))
	}
	for _, m := range mealPlans {
		b.MealPlans = append(b.MealPlans, snapshotMealPlan(m))
	}
	for _, s := range shoppingLists {
		b.ShoppingLists = append(b.ShoppingLists, snapshotShoppingList(s))
	}

	stats := b.ComputedStatistics()
	b.Statistics = &stats

	return b, nil
}

func writeDocument(path string, b *Bundle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create backup document: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("failed to encode backup document: %w", err)
	}
	return nil
}

func compressDocument(docPath, archivePath string) error {
	archive, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create backup archive: %w", err)
	}
	defer archive.Close()

	zw := zip.NewWriter(archive)

	entry, err := zw.Create(ArchiveEntryName)
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to create archive entry: %w", err)
	}

	doc, err := os.Open(docPath)
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to open backup document: %w", err)
	}
	defer doc.Close()

	if _, err := io.Copy(entry, doc); err != nil {
		zw.Close()
		return fmt.Errorf("failed to compress backup document: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize backup archive: %w", err)
	}
	return nil
}

func portableID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func snapshotRecipe(r entities.Recipe) RecipeSnapshot {
	snap := RecipeSnapshot{
		OldID:     portableID(r.ID),
		Title:     r.Title,
		PrepTime:  r.PrepTime,
		CookTime:  r.CookTime,
		Servings:  r.Servings,
		DishType:  string(r.DishType),
		Cuisine:   r.Cuisine,
		Rating:    r.Rating,
		Notes:     r.Notes,
		SourceURL: r.SourceURL,
		Locked:    r.Locked,

		Ingredients:  make([]IngredientSnapshot, 0, len(r.Ingredients)),
		Instructions: make([]InstructionSnapshot, 0, len(r.Instructions)),
	}

	if r.Tags != "" {
		for _, tag := range strings.Split(r.Tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				snap.Tags = append(snap.Tags, tag)
			}
		}
	}

	for _, ing := range r.Ingredients {
		amount := ing.Amount
		snap.Ingredients = append(snap.Ingredients, IngredientSnapshot{
			Name:   ing.Name,
			Amount: &amount,
			Unit:   ing.Unit,
		})
	}
	for _, ins := range r.Instructions {
		snap.Instructions = append(snap.Instructions, InstructionSnapshot{Text: ins.Text})
	}

	return snap
}

func snapshotCollection(c entities.Collection) CollectionSnapshot {
	snap := CollectionSnapshot{
		OldID:       portableID(c.ID),
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		Public:      c.Public,
		RecipeIDs:   make([]string, 0, len(c.Recipes)),
	}
	for _, ref := range c.Recipes {
		snap.RecipeIDs = append(snap.RecipeIDs, portableID(ref.RecipeID))
	}
	return snap
}

func snapshotMealPlan(m entities.MealPlan) MealPlanSnapshot {
	snap := MealPlanSnapshot{
		OldID:     portableID(m.ID),
		Name:      m.Name,
		StartDate: m.StartDate.Format("2006-01-02"),
		EndDate:   m.EndDate.Format("2006-01-02"),
		Meals:     make([]MealSnapshot, 0, len(m.Meals)),
	}
	for _, meal := range m.Meals {
		ms := MealSnapshot{
			Date:    meal.Date.Format("2006-01-02"),
			Type:    string(meal.Type),
			Recipes: make([]MealRecipeRef, 0, len(meal.Recipes)),
		}
		for _, ref := range meal.Recipes {
			ms.Recipes = append(ms.Recipes, MealRecipeRef{
				RecipeID: portableID(ref.RecipeID),
				Servings: ref.Servings,
			})
		}
		snap.Meals = append(snap.Meals, ms)
	}
	return snap
}

func snapshotShoppingList(s entities.ShoppingList) ShoppingListSnapshot {
	snap := ShoppingListSnapshot{
		OldID: portableID(s.ID),
		Name:  s.Name,
		Items: make([]ShoppingListItemSnapshot, 0, len(s.Items)),
	}
	for _, item := range s.Items {
		itemSnap := ShoppingListItemSnapshot{
			Ingredient: item.Ingredient,
			Quantity:   item.Quantity,
			Unit:       item.Unit,
			Category:   item.Category,
			Checked:    item.Checked,
		}
		if item.RecipeID != nil {
			itemSnap.RecipeID = portableID(*item.RecipeID)
		}
		snap.Items = append(snap.Items, itemSnap)
	}
	return snap
}
