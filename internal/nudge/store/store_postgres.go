package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"beacon/internal/nudge"
	"beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
	txcontext "beacon/pkg/platform/tx"
)

// PostgresStore writes records to the nudges table, keyed by
// (handle, kind, offline_since).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Recorded(ctx context.Context, handle domain.Handle, offlineSince time.Time) (map[nudge.Kind]bool, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT kind FROM nudges WHERE handle = $1 AND offline_since = $2`,
		handle.String(), offlineSince.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query nudges: %w", err)
	}
	defer rows.Close()

	out := make(map[nudge.Kind]bool)
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return nil, fmt.Errorf("scan nudge kind: %w", err)
		}
		out[nudge.Kind(kind)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nudges: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec nudge.Record) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO nudges (handle, kind, offline_since, sent_at, skipped, search_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (handle, kind, offline_since) DO NOTHING`,
		rec.Handle.String(), string(rec.Kind), rec.OfflineSince.UTC(), rec.SentAt.UTC(),
		rec.Skipped, rec.SearchCount,
	)
	if err != nil {
		return fmt.Errorf("insert nudge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert nudge rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, handle domain.Handle) ([]nudge.Record, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT handle, kind, offline_since, sent_at, skipped, search_count
		FROM nudges WHERE handle = $1`, handle.String())
	if err != nil {
		return nil, fmt.Errorf("list nudges: %w", err)
	}
	defer rows.Close()

	var out []nudge.Record
	for rows.Next() {
		var (
			rec        nudge.Record
			handleText string
			kind       string
		)
		if err := rows.Scan(&handleText, &kind, &rec.OfflineSince, &rec.SentAt, &rec.Skipped, &rec.SearchCount); err != nil {
			return nil, fmt.Errorf("scan nudge: %w", err)
		}
		rec.Handle = domain.Handle(handleText)
		rec.Kind = nudge.Kind(kind)
		rec.OfflineSince = rec.OfflineSince.UTC()
		rec.SentAt = rec.SentAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nudges: %w", err)
	}
	sortRecords(out)
	return out, nil
}
