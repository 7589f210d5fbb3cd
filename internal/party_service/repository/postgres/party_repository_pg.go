// Package postgres reads the consumers, employers and employees the ledger references.
// The tables are owned elsewhere; these repositories only look rows up.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/aradpay/golang_services/internal/core_domain"
	"github.com/aradpay/golang_services/internal/platform/database"
)

type PgConsumerRepository struct {
	db     database.Pool
	logger *slog.Logger
}

func NewPgConsumerRepository(db database.Pool, logger *slog.Logger) core_domain.ConsumerService {
	return &PgConsumerRepository{db: db, logger: logger.With("component", "consumer_repository_pg")}
}

func (r *PgConsumerRepository) GetByID(ctx context.Context, id string) (*core_domain.Consumer, error) {
	c := &core_domain.Consumer{}
	query := `SELECT id, wallet_balance, created_at FROM consumers WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.WalletBalance, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error loading consumer", "consumer_id", id, "error", err)
		return nil, fmt.Errorf("loading consumer %s: %w", id, err)
	}
	return c, nil
}

type PgEmployerRepository struct {
	db     database.Pool
	logger *slog.Logger
}

func NewPgEmployerRepository(db database.Pool, logger *slog.Logger) core_domain.EmployerService {
	return &PgEmployerRepository{db: db, logger: logger.With("component", "employer_repository_pg")}
}

func (r *PgEmployerRepository) GetByID(ctx context.Context, id string) (*core_domain.Employer, error) {
	e := &core_domain.Employer{}
	query := `SELECT id, name, document_number, deposit_matching_name FROM employers WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&e.ID, &e.Name, &e.DocumentNumber, &e.DepositMatchingName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error loading employer", "employer_id", id, "error", err)
		return nil, fmt.Errorf("loading employer %s: %w", id, err)
	}
	return e, nil
}

type PgEmployeeRepository struct {
	db     database.Pool
	logger *slog.Logger
}

func NewPgEmployeeRepository(db database.Pool, logger *slog.Logger) core_domain.EmployeeService {
	return &PgEmployeeRepository{db: db, logger: logger.With("component", "employee_repository_pg")}
}

func (r *PgEmployeeRepository) GetByID(ctx context.Context, id string) (*core_domain.Employee, error) {
	e := &core_domain.Employee{}
	query := `SELECT id, employer_id, consumer_id, name FROM employees WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&e.ID, &e.EmployerID, &e.ConsumerID, &e.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error loading employee", "employee_id", id, "error", err)
		return nil, fmt.Errorf("loading employee %s: %w", id, err)
	}
	return e, nil
}
