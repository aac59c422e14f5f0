// Package storage defines the cloud-provider capability interface used
// for remote backups. One implementation exists per vendor, selected via
// the provider-kind enum stored on each account's schedule.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// BackupInfo describes one remote backup object.
type BackupInfo struct {
	ID        string              `json:"id"`
	Filename  string              `json:"filename"`
	Size      int64               `json:"size"`
	Path      string              `json:"path,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Type      entities.BackupType `json:"type,omitempty"`
}

// Client is the capability interface every storage vendor adapter
// implements. Implementations are responsible for their own token
// refresh.
type Client interface {
	// Kind identifies the vendor.
	Kind() entities.ProviderKind

	// UploadBackup stores the local archive remotely for the account.
	UploadBackup(ctx context.Context, accountID uint, localPath string, backupType entities.BackupType) (*BackupInfo, error)

	// ListBackups returns the account's remote backups, newest first.
	ListBackups(ctx context.Context, accountID uint, limit int) ([]BackupInfo, error)

	// DownloadBackup fetches a remote backup to a local temp file and
	// returns its path. The caller owns the file.
	DownloadBackup(ctx context.Context, accountID uint, backupID string) (string, error)

	// DeleteBackup removes a remote backup.
	DeleteBackup(ctx context.Context, accountID uint, backupID string) error
}

// ProviderError wraps a vendor API failure.
type ProviderError struct {
	Provider entities.ProviderKind
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Registry maps provider kinds to registered clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[entities.ProviderKind]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[entities.ProviderKind]Client)}
}

func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Kind()] = c
}

func (r *Registry) Get(kind entities.ProviderKind) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[kind]
	if !ok {
		return nil, fmt.Errorf("storage provider %q not registered", kind)
	}
	return c, nil
}

func (r *Registry) Kinds() []entities.ProviderKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]entities.ProviderKind, 0, len(r.clients))
	for kind := range r.clients {
		kinds = append(kinds, kind)
	}
	return kinds
}

// PruneOldBackups deletes the oldest remote backups beyond keep. Returns
// the number deleted. Callers treat this as best-effort.
func PruneOldBackups(ctx context.Context, client Client, accountID uint, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	backups, err := client.ListBackups(ctx, accountID, 0)
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	deleted := 0
	for _, b := range backups[keep:] {
		if err := client.DeleteBackup(ctx, accountID, b.ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
