package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/aradpay/golang_services/internal/limit_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/platform/database"
)

const profileColumns = `id, name, min_transaction, max_transaction, daily_limit, weekly_limit, monthly_limit, unsettled_exposure_limit, created_at, updated_at`

type PgLimitProfileRepository struct {
	db     database.Pool
	logger *slog.Logger
}

func NewPgLimitProfileRepository(db database.Pool, logger *slog.Logger) domain.LimitProfileRepository {
	return &PgLimitProfileRepository{db: db, logger: logger.With("component", "limit_profile_repository_pg")}
}

func scanProfile(row pgx.Row) (*domain.LimitProfile, error) {
	var p domain.LimitProfile
	var daily, weekly, monthly, exposure decimal.NullDecimal
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.MinTransaction,
		&p.MaxTransaction,
		&daily,
		&weekly,
		&monthly,
		&exposure,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Daily = database.DecimalPtr(daily)
	p.Weekly = database.DecimalPtr(weekly)
	p.Monthly = database.DecimalPtr(monthly)
	p.UnsettledExposure = database.DecimalPtr(exposure)
	return &p, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertProfile(ctx context.Context, db execer, p *domain.LimitProfile) error {
	query := `INSERT INTO limit_profiles (` + profileColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := db.Exec(ctx, query,
		p.ID, p.Name, p.MinTransaction, p.MaxTransaction,
		database.NullDecimal(p.Daily), database.NullDecimal(p.Weekly), database.NullDecimal(p.Monthly), database.NullDecimal(p.UnsettledExposure),
		p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *PgLimitProfileRepository) Create(ctx context.Context, p *domain.LimitProfile) error {
	r.logger.DebugContext(ctx, "Creating limit profile", "profile_id", p.ID, "name", p.Name)
	if err := insertProfile(ctx, r.db, p); err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.NewAlreadyExistsError("limit profile %s already exists", p.Name)
		}
		r.logger.ErrorContext(ctx, "Error creating limit profile", "profile_id", p.ID, "error", err)
		return fmt.Errorf("inserting limit profile %s: %w", p.ID, err)
	}
	return nil
}

func (r *PgLimitProfileRepository) GetByID(ctx context.Context, id string) (*domain.LimitProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM limit_profiles WHERE id = $1`
	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.InfoContext(ctx, "Limit profile not found", "profile_id", id)
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error scanning limit profile", "profile_id", id, "error", err)
		return nil, fmt.Errorf("scanning limit profile %s: %w", id, err)
	}
	return p, nil
}

func (r *PgLimitProfileRepository) List(ctx context.Context) ([]*domain.LimitProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM limit_profiles ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing limit profiles", "error", err)
		return nil, fmt.Errorf("listing limit profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.LimitProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning limit profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating limit profile rows: %w", err)
	}
	return profiles, nil
}

// Update writes only the fields present in the mask and returns the stored row.
func (r *PgLimitProfileRepository) Update(ctx context.Context, id string, update domain.LimitProfileUpdate) (*domain.LimitProfile, error) {
	var sets []string
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if v, ok := update.Name.Get(); ok {
		add("name", v)
	}
	if v, ok := update.MinTransaction.Get(); ok {
		add("min_transaction", v)
	}
	if v, ok := update.MaxTransaction.Get(); ok {
		add("max_transaction", v)
	}
	if v, ok := update.Daily.Get(); ok {
		add("daily_limit", database.NullDecimal(v))
	}
	if v, ok := update.Weekly.Get(); ok {
		add("weekly_limit", database.NullDecimal(v))
	}
	if v, ok := update.Monthly.Get(); ok {
		add("monthly_limit", database.NullDecimal(v))
	}
	if v, ok := update.UnsettledExposure.Get(); ok {
		add("unsettled_exposure_limit", database.NullDecimal(v))
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE limit_profiles SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + profileColumns
	p, err := scanProfile(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewDoesNotExistError("limit profile %s does not exist", id)
		}
		r.logger.ErrorContext(ctx, "Error updating limit profile", "profile_id", id, "error", err)
		return nil, fmt.Errorf("updating limit profile %s: %w", id, err)
	}
	return p, nil
}

func (r *PgLimitProfileRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM limit_profiles WHERE id = $1`, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error deleting limit profile", "profile_id", id, "error", err)
		return fmt.Errorf("deleting limit profile %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewDoesNotExistError("limit profile %s does not exist", id)
	}
	return nil
}
