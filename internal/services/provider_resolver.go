package services

import (
	"context"
	"fmt"

	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/oauth2"
	"github.com/mealkeeper/mealkeeper/internal/storage"
	"github.com/mealkeeper/mealkeeper/internal/storage/providers/drive"
	"github.com/mealkeeper/mealkeeper/internal/storage/providers/dropbox"
	"github.com/mealkeeper/mealkeeper/internal/tokenstore"
)

// ProviderResolver builds storage clients bound to an account's stored
// credential. It satisfies the resolver interfaces of the scheduler and
// the task queue.
type ProviderResolver struct {
	registry *oauth2.Registry
	creds    *tokenstore.Store
}

func NewProviderResolver(registry *oauth2.Registry, creds *tokenstore.Store) *ProviderResolver {
	return &ProviderResolver{registry: registry, creds: creds}
}

// ClientFor returns a storage client for the account's provider, with
// token refresh wired in.
func (r *ProviderResolver) ClientFor(ctx context.Context, accountID uint, kind entities.ProviderKind) (storage.Client, error) {
	has, err := r.creds.HasCredential(accountID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to check credential: %w", err)
	}
	if !has {
		return nil, &ProviderNotConnectedError{Provider: string(kind)}
	}

	provider, err := r.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	tokenSource := oauth2.NewStoredTokenSource(provider, r.creds, accountID)

	switch kind {
	case entities.ProviderKindDropbox:
		return dropbox.NewClient(tokenSource), nil
	case entities.ProviderKindDrive:
		return drive.NewClient(tokenSource), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", kind)
	}
}
