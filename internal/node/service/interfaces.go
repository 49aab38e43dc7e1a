package service

import (
	"context"

	"beacon/internal/node/models"
	"beacon/pkg/domain"
	"beacon/pkg/requestcontext"
)

// Store persists node records. Implementations return sentinel.ErrNotFound and
// sentinel.ErrConflict for missing and duplicate handles.
type Store interface {
	Create(ctx context.Context, node *models.Node) error
	Get(ctx context.Context, handle domain.Handle) (*models.Node, error)
	GetMany(ctx context.Context, handles []domain.Handle) ([]*models.Node, error)
	Update(ctx context.Context, handle domain.Handle, fn func(*models.Node) error) (*models.Node, error)
	List(ctx context.Context) ([]*models.Node, error)
}

// TagIndex receives tag changes after they are committed to the store.
type TagIndex interface {
	Replace(ctx context.Context, handle domain.Handle, tags domain.Tags, revision int64) error
}

// TierResolver maps the registering caller's credential to a tier. It never
// fails: unverifiable callers resolve to the lowest tier.
type TierResolver interface {
	ResolveTier(ctx context.Context, cred requestcontext.Credential) domain.Tier
}
