package importer

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/mealkeeper/mealkeeper/internal/bundle"
)

// Store is the storage handle the restorer needs: a GORM session plus the
// queryable transaction capability.
type Store interface {
	bundle.DataReader
	Session() *gorm.DB
	SupportsTransactions() bool
}

// Statistics is the aggregate result of a restore.
type Statistics struct {
	TotalImported int    `json:"total_imported"`
	TotalSkipped  int    `json:"total_skipped"`
	Counts        Counts `json:"counts"`
}

// Restorer orchestrates duplicate detection and import processing inside
// one atomic unit of work. When the backing store cannot provide
// multi-entity transactions it proceeds without one and logs the
// degraded-atomicity warning.
type Restorer struct {
	store     Store
	detector  *DuplicateDetector
	processor *ImportProcessor
}

func NewRestorer(store Store) *Restorer {
	return &Restorer{
		store:     store,
		detector:  NewDuplicateDetector(store),
		processor: NewImportProcessor(),
	}
}

// WithDetector overrides the duplicate detector (e.g., to change the
// recipe duplicate-key strategy).
func (r *Restorer) WithDetector(detector *DuplicateDetector) *Restorer {
	r.detector = detector
	return r
}

// Restore imports b for accountID in the given mode and returns aggregate
// statistics. On any failure the transaction is rolled back and no
// statistics are returned.
func (r *Restorer) Restore(accountID uint, b *bundle.Bundle, mode Mode) (*Statistics, error) {
	if mode != ModeMerge && mode != ModeReplace {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	// The skip-sets are computed to completion before any write begins.
	var skips *SkipSets
	if mode == ModeMerge {
		var err error
		skips, err = r.detector.Detect(accountID, b)
		if err != nil {
			return nil, fmt.Errorf("duplicate detection failed: %w", err)
		}
	}

	start := time.Now()
	var counts *Counts

	if r.store.SupportsTransactions() {
		err := r.store.Session().Transaction(func(tx *gorm.DB) error {
			var procErr error
			counts, procErr = r.processor.Process(tx, accountID, b, mode, skips)
			return procErr
		})
		if err != nil {
			return nil, &TransactionError{Err: err}
		}
	} else {
		// Degraded path: partial writes can survive a mid-import failure.
		log.Printf("Restore: WARNING backing store does not support multi-entity transactions, atomicity is degraded for account %d", accountID)
		var procErr error
		counts, procErr = r.processor.Process(r.store.Session(), accountID, b, mode, skips)
		if procErr != nil {
			return nil, &TransactionError{Err: procErr}
		}
	}

	counts.Duration = time.Since(start)

	return &Statistics{
		TotalImported: counts.TotalImported(),
		TotalSkipped:  counts.DuplicatesSkipped,
		Counts:        *counts,
	}, nil
}
