package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/mealkeeper/mealkeeper/internal/bundle"
	"github.com/mealkeeper/mealkeeper/internal/config"
	"github.com/mealkeeper/mealkeeper/internal/database"
	"github.com/mealkeeper/mealkeeper/internal/importer"
	"github.com/mealkeeper/mealkeeper/internal/validator"
)

type ImportCommand struct {
	DatabasePath string
	ArchivePath  string
	Mode         string
	AccountID    uint
	DryRun       bool
}

func NewImportCommand() *ImportCommand {
	return &ImportCommand{}
}

func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	var accountID uint64
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.StringVar(&cmd.ArchivePath, "file", "", "Backup archive to import (required)")
	fs.StringVar(&cmd.Mode, "mode", "merge", "Import mode: merge or replace")
	fs.Uint64Var(&accountID, "account", 1, "Account ID to import into")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Parse and validate only, do not write")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import a backup archive into an account.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s import -file ./backup.zip\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s import -file ./backup.zip -mode replace -account 2\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cmd.AccountID = uint(accountID)

	if cmd.ArchivePath == "" {
		fs.Usage()
		return fmt.Errorf("archive file is required")
	}
	if _, err := importer.ParseMode(cmd.Mode); err != nil {
		return err
	}
	return nil
}

func (cmd *ImportCommand) Run() error {
	b, err := bundle.NewParser().Parse(cmd.ArchivePath)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}
	if err := validator.New().Validate(b); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if cmd.DryRun {
		fmt.Printf("Archive is valid: %d recipes, %d collections, %d meal plans, %d shopping lists\n",
			len(b.Recipes), len(b.Collections), len(b.MealPlans), len(b.ShoppingLists))
		return nil
	}

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	mode, _ := importer.ParseMode(cmd.Mode)
	stats, err := importer.NewRestorer(db).Restore(cmd.AccountID, b, mode)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported %d entities (%d duplicates skipped) in %v\n",
		stats.TotalImported, stats.TotalSkipped, stats.Counts.Duration)
	return nil
}
