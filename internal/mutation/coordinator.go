// Package mutation validates batch mutation input and forwards it to the
// record store.
package mutation

import (
	"context"
	"log/slog"

	"ecosystem-api/internal/apperr"
	"ecosystem-api/internal/auth"
	"ecosystem-api/internal/logging"
	"ecosystem-api/internal/store"
)

// ReasonEmptyInput marks an add batch rejected for having no rows.
const ReasonEmptyInput = "empty_input"

// Writer is the write side of the record store.
type Writer interface {
	InsertBatch(ctx context.Context, collection string, rows []store.Record) ([]store.Record, error)
	UpdateBatch(ctx context.Context, collection string, rows []store.Record) ([]store.Record, error)
	DeleteBatch(ctx context.Context, collection string, rows []store.Record) ([]store.Record, error)
}

// Coordinator runs add, update and delete batches against a Writer.
// Store failures are returned unchanged and never retried.
type Coordinator struct {
	writer         Writer
	requireSession bool
	observer       BatchObserver
}

// BatchObserver is told about every batch that reaches the store.
type BatchObserver interface {
	RecordMutationBatch(ctx context.Context, operation, collection string, rows int, failed bool)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// RequireSession makes every batch require an authenticated actor.
func RequireSession(required bool) Option {
	return func(c *Coordinator) {
		c.requireSession = required
	}
}

// WithObserver reports each store call to o.
func WithObserver(o BatchObserver) Option {
	return func(c *Coordinator) {
		c.observer = o
	}
}

// NewCoordinator creates a coordinator over writer.
func NewCoordinator(writer Writer, opts ...Option) *Coordinator {
	c := &Coordinator{writer: writer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add inserts rows in one store call. Empty input is rejected before the
// store is reached.
func (c *Coordinator) Add(ctx context.Context, collection string, rows []store.Record) ([]store.Record, error) {
	if err := c.checkSession(ctx); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.Validation(ReasonEmptyInput, "No input data")
	}
	return c.run(ctx, "add", collection, rows, c.writer.InsertBatch)
}

// Update forwards rows to the store without an emptiness check.
func (c *Coordinator) Update(ctx context.Context, collection string, rows []store.Record) ([]store.Record, error) {
	if err := c.checkSession(ctx); err != nil {
		return nil, err
	}
	return c.run(ctx, "update", collection, rows, c.writer.UpdateBatch)
}

// Delete forwards rows to the store without an emptiness check.
func (c *Coordinator) Delete(ctx context.Context, collection string, rows []store.Record) ([]store.Record, error) {
	if err := c.checkSession(ctx); err != nil {
		return nil, err
	}
	return c.run(ctx, "delete", collection, rows, c.writer.DeleteBatch)
}

type batchFunc func(ctx context.Context, collection string, rows []store.Record) ([]store.Record, error)

func (c *Coordinator) run(ctx context.Context, op, collection string, rows []store.Record, fn batchFunc) ([]store.Record, error) {
	logger := logging.FromContext(ctx)
	if actor, ok := auth.ActorFromContext(ctx); ok {
		logger = logger.WithActor(actor.ID)
	}
	out, err := fn(ctx, collection, rows)
	if c.observer != nil {
		c.observer.RecordMutationBatch(ctx, op, collection, len(rows), err != nil)
	}
	if err != nil {
		logger.Warn("batch mutation failed",
			slog.String("operation", op),
			slog.String("collection", collection),
			slog.Int("rows", len(rows)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	logger.Debug("batch mutation applied",
		slog.String("operation", op),
		slog.String("collection", collection),
		slog.Int("rows", len(rows)),
		slog.Int("results", len(out)),
	)
	return out, nil
}

func (c *Coordinator) checkSession(ctx context.Context) error {
	if !c.requireSession {
		return nil
	}
	if _, ok := auth.ActorFromContext(ctx); !ok {
		return apperr.Authentication("Not authenticated, login first", nil)
	}
	return nil
}
