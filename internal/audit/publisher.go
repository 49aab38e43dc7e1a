package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"beacon/pkg/requestcontext"
)

// Store appends entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
}

// Publisher stamps entries with an id and time and appends them to the store.
// Appends are synchronous: a caller whose entry was not persisted gets the error.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Record appends one entry. ID, CreatedAt, RequestID and ClientAgent are
// filled from the context when unset.
func (p *Publisher) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	if entry.ClientAgent == "" {
		entry.ClientAgent = requestcontext.ClientAgent(ctx)
	}

	if err := p.store.Append(ctx, entry); err != nil {
		p.logger.ErrorContext(ctx, "failed to persist audit entry",
			"audit_id", entry.ID,
			"request_id", entry.RequestID,
			"error", err,
		)
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
