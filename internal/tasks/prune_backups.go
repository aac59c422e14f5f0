package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/storage"
)

// DefaultKeepBackups is how many remote backups are retained per
// account when a schedule does not say otherwise.
const DefaultKeepBackups = 10

// BackupClientResolver returns the storage client for an account's
// configured provider, with a ready token source.
type BackupClientResolver interface {
	ClientFor(ctx context.Context, accountID uint, kind entities.ProviderKind) (storage.Client, error)
}

// PruneBackupsTask deletes the oldest remote backups beyond the keep
// count. It runs after each successful scheduled backup.
type PruneBackupsTask struct {
	AccountID uint   `json:"account_id"`
	Provider  string `json:"provider"`
	Keep      int    `json:"keep"`
}

func (t PruneBackupsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "prune_backups",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PruneBackupsProcessor creates a processor function for PruneBackupsTask.
func PruneBackupsProcessor(resolver BackupClientResolver) backlite.QueueProcessor[PruneBackupsTask] {
	return func(ctx context.Context, task PruneBackupsTask) error {
		if resolver == nil {
			return fmt.Errorf("backup client resolver not configured")
		}

		kind := entities.ProviderKind(task.Provider)
		if !entities.ValidProviderKind(kind) {
			return fmt.Errorf("unknown provider %q", task.Provider)
		}

		keep := task.Keep
		if keep <= 0 {
			keep = DefaultKeepBackups
		}

		client, err := resolver.ClientFor(ctx, task.AccountID, kind)
		if err != nil {
			return fmt.Errorf("resolve storage client: %w", err)
		}

		deleted, err := storage.PruneOldBackups(ctx, client, task.AccountID, keep)
		if err != nil {
			return fmt.Errorf("prune backups: %w", err)
		}

		if deleted > 0 {
			log.Printf("[TASK] Pruned %d old backups for account %d on %s", deleted, task.AccountID, kind)
		}
		return nil
	}
}

// NewPruneBackupsQueue creates a backlite queue for backup pruning.
func NewPruneBackupsQueue(resolver BackupClientResolver) backlite.Queue {
	return backlite.NewQueue(PruneBackupsProcessor(resolver))
}
