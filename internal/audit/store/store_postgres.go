package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"beacon/internal/audit"
	"beacon/pkg/domain"
	txcontext "beacon/pkg/platform/tx"
)

// PostgresStore writes entries to the audit_entries table.
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

func (s *PostgresStore) Append(ctx context.Context, entry audit.Entry) error {
	handles := make([]string, len(entry.MatchedHandles))
	for i, h := range entry.MatchedHandles {
		handles[i] = h.String()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, caller, tier, query_text, tags, matched_handles,
			degraded, client_agent, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.Caller, entry.Tier.String(), entry.QueryText,
		pq.Array([]string(entry.Tags)), pq.Array(handles),
		entry.Degraded, entry.ClientAgent, entry.RequestID, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountMatching(ctx context.Context, since time.Time, tags domain.Tags) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_entries
		WHERE created_at >= $1 AND tags && $2`,
		since, pq.Array([]string(tags)),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, caller, tier, query_text, tags, matched_handles,
		       degraded, client_agent, request_id, created_at
		FROM audit_entries
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e       audit.Entry
			tier    string
			tags    []string
			handles []string
		)
		if err := rows.Scan(&e.ID, &e.Caller, &tier, &e.QueryText, pq.Array(&tags), pq.Array(&handles),
			&e.Degraded, &e.ClientAgent, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Tier = domain.Tier(tier)
		e.Tags = domain.Tags(tags)
		for _, h := range handles {
			e.MatchedHandles = append(e.MatchedHandles, domain.Handle(h))
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
