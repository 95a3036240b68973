package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/topicrelay/internal/routing"
)

// Store defines the database operations of the relay.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// LoadRoutingState returns the persisted routing state document, or nil if none was saved.
	LoadRoutingState(ctx context.Context) ([]byte, error)

	// SaveRoutingState overwrites the routing state document.
	SaveRoutingState(ctx context.Context, doc []byte) error

	// RecordDelivery stores the outcome of one dispatched unit.
	RecordDelivery(ctx context.Context, d routing.Delivery) error

	// GetDeliveryStats aggregates deliveries per topic since the given time.
	GetDeliveryStats(ctx context.Context, since time.Time) ([]TopicStat, error)

	// PruneDeliveries deletes deliveries older than before and returns how many were removed.
	PruneDeliveries(ctx context.Context, before time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadRoutingState returns the single stored routing state document.
func (s *sqlxStore) LoadRoutingState(ctx context.Context) ([]byte, error) {
	var doc string
	err := s.db.GetContext(ctx, &doc, `SELECT document FROM routing_state WHERE id = 1`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No routing state stored yet")
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error loading routing state", "error", err)
		return nil, fmt.Errorf("failed to load routing state: %w", err)
	}
	return []byte(doc), nil
}

// SaveRoutingState upserts the routing state document.
func (s *sqlxStore) SaveRoutingState(ctx context.Context, doc []byte) error {
	if len(doc) == 0 {
		return errors.New("cannot save empty routing state")
	}

	query := `
        INSERT INTO routing_state (id, document, updated_at)
        VALUES (1, ?, ?)
        ON CONFLICT (id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at;
    `
	if _, err := s.db.ExecContext(ctx, query, string(doc), time.Now().UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Error saving routing state", "error", err)
		return fmt.Errorf("failed to save routing state: %w", err)
	}
	s.logger.DebugContext(ctx, "Routing state saved", "bytes", len(doc))
	return nil
}

// RecordDelivery inserts a delivery row.
func (s *sqlxStore) RecordDelivery(ctx context.Context, d routing.Delivery) error {
	if d.ID == "" {
		return errors.New("delivery must have an id")
	}
	at := d.At
	if at.IsZero() {
		at = time.Now()
	}
	rec := DeliveryRecord{
		ID:              d.ID,
		SourceMessageID: d.SourceMessageID,
		TopicKey:        d.TopicKey,
		ThreadID:        d.ThreadID,
		ItemCount:       d.Items,
		Mode:            string(d.Mode),
		Status:          d.Status,
		ErrorText:       d.Error,
		CreatedAt:       at.UTC(),
	}

	query := `
        INSERT INTO deliveries (id, source_message_id, topic_key, thread_id, item_count, mode, status, error_text, created_at)
        VALUES (:id, :source_message_id, :topic_key, :thread_id, :item_count, :mode, :status, :error_text, :created_at);
    `
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		s.logger.ErrorContext(ctx, "Error recording delivery", "delivery_id", d.ID, "error", err)
		return fmt.Errorf("failed to record delivery %s: %w", d.ID, err)
	}
	return nil
}

// GetDeliveryStats returns per-topic sent and failed counts, busiest topic first.
func (s *sqlxStore) GetDeliveryStats(ctx context.Context, since time.Time) ([]TopicStat, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `
        SELECT topic_key,
               SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END)   AS sent,
               SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed
        FROM deliveries
        WHERE created_at >= ?
        GROUP BY topic_key
        ORDER BY sent DESC, topic_key ASC;
    `
	var stats []TopicStat
	err := s.db.SelectContext(ctx, &stats, query, since.UTC())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching delivery stats", "error", err)
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting delivery stats", "error", err)
		return nil, fmt.Errorf("failed to get delivery stats: %w", err)
	}
	return stats, nil
}

// PruneDeliveries deletes deliveries created before the cutoff.
func (s *sqlxStore) PruneDeliveries(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM deliveries WHERE created_at < ?`, before.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error pruning deliveries", "error", err)
		return 0, fmt.Errorf("failed to prune deliveries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned deliveries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delivery pruning: %w", err)
	}

	s.logger.InfoContext(ctx, "Pruned old deliveries", "deleted", n, "before", before)
	return n, nil
}

// RunSQLMaintenance runs VACUUM, which SQLite requires outside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)")

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed")
	return nil
}
