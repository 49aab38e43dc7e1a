package service

import (
	"context"
	"encoding/json"

	accessmodels "beacon/internal/access/models"
	"beacon/internal/audit"
	nodemodels "beacon/internal/node/models"
	"beacon/internal/vector"
	"beacon/pkg/domain"
)

// Authorizer identifies the caller and consumes quota.
type Authorizer interface {
	Authorize(ctx context.Context) (*accessmodels.Decision, error)
}

// TagIndex resolves tags to handles.
type TagIndex interface {
	Lookup(ctx context.Context, tags domain.Tags) (map[domain.Handle]domain.Tags, error)
}

// VectorSearcher finds semantically similar nodes.
type VectorSearcher interface {
	Search(ctx context.Context, text string) ([]vector.Match, error)
}

// NodeReader loads the authoritative records for candidate handles.
type NodeReader interface {
	GetMany(ctx context.Context, handles []domain.Handle) ([]*nodemodels.Node, error)
}

// Enricher fetches a live preview from a node.
type Enricher interface {
	Preview(ctx context.Context, endpoint, query string) (json.RawMessage, error)
}

// AuditRecorder appends the search to the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}
