package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aradpay/golang_services/internal/platform/database"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

type PgTransactionEventRepository struct {
	db     database.Pool
	logger *slog.Logger
}

func NewPgTransactionEventRepository(db database.Pool, logger *slog.Logger) domain.TransactionEventStore {
	return &PgTransactionEventRepository{db: db, logger: logger.With("component", "transaction_event_repository_pg")}
}

func (r *PgTransactionEventRepository) Append(ctx context.Context, ev *domain.TransactionEvent) error {
	query := `INSERT INTO transaction_events (id, transaction_id, message, event_key, params, internal, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	params := ev.Params
	if params == nil {
		params = []string{}
	}
	if _, err := r.db.Exec(ctx, query, ev.ID, ev.TransactionID, ev.Message, ev.Key, params, ev.Internal, ev.CreatedAt); err != nil {
		r.logger.ErrorContext(ctx, "Error appending transaction event", "transaction_id", ev.TransactionID, "error", err)
		return fmt.Errorf("appending event to transaction %s: %w", ev.TransactionID, err)
	}
	return nil
}

func (r *PgTransactionEventRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.TransactionEvent, error) {
	query := `SELECT id, transaction_id, message, event_key, params, internal, created_at
	          FROM transaction_events WHERE transaction_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, transactionID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing transaction events", "transaction_id", transactionID, "error", err)
		return nil, fmt.Errorf("listing events of transaction %s: %w", transactionID, err)
	}
	defer rows.Close()

	var events []*domain.TransactionEvent
	for rows.Next() {
		var ev domain.TransactionEvent
		if err := rows.Scan(&ev.ID, &ev.TransactionID, &ev.Message, &ev.Key, &ev.Params, &ev.Internal, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction event row: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction event rows: %w", err)
	}
	return events, nil
}
