package tagindex

import (
	"context"

	"beacon/internal/node/models"
	"beacon/pkg/domain"
)

// NodeTagQuerier is the postgres node store's GIN-backed tag query.
type NodeTagQuerier interface {
	ListByAnyTag(ctx context.Context, tags []string) ([]*models.Node, error)
}

// PostgresIndex answers lookups from the nodes table itself, so it is
// consistent with the record store by construction and Replace has nothing to do.
type PostgresIndex struct {
	nodes NodeTagQuerier
}

func NewPostgresIndex(nodes NodeTagQuerier) *PostgresIndex {
	return &PostgresIndex{nodes: nodes}
}

func (p *PostgresIndex) Replace(context.Context, domain.Handle, domain.Tags, int64) error {
	return nil
}

func (p *PostgresIndex) Lookup(ctx context.Context, tags domain.Tags) (map[domain.Handle]domain.Tags, error) {
	out := make(map[domain.Handle]domain.Tags)
	if len(tags) == 0 {
		return out, nil
	}
	nodes, err := p.nodes.ListByAnyTag(ctx, tags)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if matched := n.Tags.Intersect(tags); len(matched) > 0 {
			out[n.Handle] = matched
		}
	}
	return out, nil
}
