package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"beacon/internal/node/models"
	"beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
	txcontext "beacon/pkg/platform/tx"
)

// PostgresStore persists nodes in the nodes table. Tags live in a GIN-indexed
// text[] column, which doubles as the tag index.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const nodeColumns = `handle, endpoint, tags, registered_at, last_heartbeat_at, uptime_hours, data_since, tier, contact_email, revision`

func (s *PostgresStore) Create(ctx context.Context, node *models.Node) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (handle) DO NOTHING`,
		node.Handle.String(), node.Endpoint, pq.Array([]string(node.Tags)),
		node.RegisteredAt, node.LastHeartbeatAt, node.UptimeHours, nullTime(node.DataSince),
		node.Tier.String(), node.ContactEmail, node.Revision,
	)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert node rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, handle domain.Handle) (*models.Node, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE handle = $1`, handle.String())
	node, err := scanNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get node: %w", err)
	}
	return node, nil
}

// Update locks the row for the duration of fn.
func (s *PostgresStore) Update(ctx context.Context, handle domain.Handle, fn func(*models.Node) error) (*models.Node, error) {
	var updated *models.Node
	err := txcontext.RunInTx(ctx, s.db, func(txCtx context.Context) error {
		tx, _ := txcontext.From(txCtx)
		row := tx.QueryRowContext(txCtx, `SELECT `+nodeColumns+` FROM nodes WHERE handle = $1 FOR UPDATE`, handle.String())
		node, err := scanNode(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock node: %w", err)
		}
		if err := fn(node); err != nil {
			return err
		}
		_, err = tx.ExecContext(txCtx, `
			UPDATE nodes
			SET endpoint = $2, tags = $3, last_heartbeat_at = $4, uptime_hours = $5,
			    data_since = $6, tier = $7, contact_email = $8, revision = $9
			WHERE handle = $1`,
			node.Handle.String(), node.Endpoint, pq.Array([]string(node.Tags)), node.LastHeartbeatAt,
			node.UptimeHours, nullTime(node.DataSince), node.Tier.String(), node.ContactEmail, node.Revision,
		)
		if err != nil {
			return fmt.Errorf("update node: %w", err)
		}
		updated = node
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Node, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return collectNodes(rows)
}

// GetMany returns the known nodes among handles. Unknown handles are skipped.
func (s *PostgresStore) GetMany(ctx context.Context, handles []domain.Handle) ([]*models.Node, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	keys := make([]string, len(handles))
	for i, h := range handles {
		keys[i] = h.String()
	}
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE handle = ANY($1)`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("get nodes: %w", err)
	}
	return collectNodes(rows)
}

// ListByAnyTag returns nodes carrying at least one of tags.
func (s *PostgresStore) ListByAnyTag(ctx context.Context, tags []string) ([]*models.Node, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE tags && $1`, pq.Array(tags))
	if err != nil {
		return nil, fmt.Errorf("list nodes by tag: %w", err)
	}
	return collectNodes(rows)
}

func collectNodes(rows *sql.Rows) ([]*models.Node, error) {
	defer rows.Close()
	var out []*models.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return out, nil
}

type nodeRow interface {
	Scan(dest ...any) error
}

func scanNode(row nodeRow) (*models.Node, error) {
	var (
		handle, endpoint, tier, email string
		tags                          []string
		dataSince                     sql.NullTime
		node                          models.Node
	)
	if err := row.Scan(&handle, &endpoint, pq.Array(&tags), &node.RegisteredAt, &node.LastHeartbeatAt,
		&node.UptimeHours, &dataSince, &tier, &email, &node.Revision); err != nil {
		return nil, err
	}
	node.Handle = domain.Handle(handle)
	node.Endpoint = endpoint
	node.Tags = domain.Tags(tags)
	if node.Tags == nil {
		node.Tags = domain.Tags{}
	}
	node.Tier = domain.Tier(tier)
	node.ContactEmail = email
	node.RegisteredAt = node.RegisteredAt.UTC()
	node.LastHeartbeatAt = node.LastHeartbeatAt.UTC()
	if dataSince.Valid {
		ds := dataSince.Time.UTC()
		node.DataSince = &ds
	}
	return &node, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
