// Package cli holds the offline commands: exporting and importing
// backup archives directly against a local database, without the HTTP
// server.
package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/mealkeeper/mealkeeper/internal/bundle"
	"github.com/mealkeeper/mealkeeper/internal/config"
	"github.com/mealkeeper/mealkeeper/internal/database"
	"github.com/mealkeeper/mealkeeper/internal/entities"
)

type ExportCommand struct {
	DatabasePath string
	OutputDir    string
	AccountID    uint
}

func NewExportCommand() *ExportCommand {
	return &ExportCommand{}
}

func (cmd *ExportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)

	var accountID uint64
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.StringVar(&cmd.OutputDir, "out", ".", "Directory to write the archive to")
	fs.Uint64Var(&accountID, "account", 1, "Account ID to export")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s export [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate a backup archive for an account.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	cmd.AccountID = uint(accountID)
	return nil
}

func (cmd *ExportCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	generator := bundle.NewGenerator(db, cmd.OutputDir)
	path, size, err := generator.Generate(cmd.AccountID, entities.BackupTypeManual)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("Exported account %d to %s (%d bytes)\n", cmd.AccountID, path, size)
	return nil
}
