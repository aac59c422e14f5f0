// Package database wraps the GORM connection and exposes per-aggregate
// repositories for the recipe dataset, backup schedules and audit trail.
package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

type Database struct {
	DB *gorm.DB

	// txSupported is an explicit, queryable capability: stores without
	// multi-entity transaction support run imports on a degraded path.
	txSupported bool
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.Account{},
		&entities.Recipe{},
		&entities.Ingredient{},
		&entities.Instruction{},
		&entities.Collection{},
		&entities.CollectionRecipe{},
		&entities.MealPlan{},
		&entities.Meal{},
		&entities.MealRecipe{},
		&entities.ShoppingList{},
		&entities.ShoppingListItem{},
		&entities.BackupSchedule{},
		&entities.BackupRecord{},
		&entities.CloudCredential{},
		&entities.UsageStats{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("Database initialized at %s", dbPath)

	return &Database{DB: db, txSupported: true}, nil
}

// Session returns the underlying GORM handle for callers that manage
// their own transaction scope.
func (d *Database) Session() *gorm.DB {
	return d.DB
}

// SupportsTransactions reports whether the backing store can wrap an
// import in one multi-entity transaction.
func (d *Database) SupportsTransactions() bool {
	return d.txSupported
}

// MarkTransactionsUnsupported flags the store as unable to provide
// multi-entity transactions, forcing the degraded non-atomic import path.
func (d *Database) MarkTransactionsUnsupported() {
	d.txSupported = false
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
