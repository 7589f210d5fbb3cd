package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/aradpay/golang_services/internal/limit_service/domain"
	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/platform/database"
)

const configurationColumns = `id, is_default, priority, profile_id, criteria, created_at, updated_at`

// singleDefaultConstraint is the partial unique index allowing one is_default row.
const singleDefaultConstraint = "limit_configurations_single_default"

// seedLockKey serialises concurrent seeders across instances.
const seedLockKey int64 = 7_310_001

type PgLimitConfigurationRepository struct {
	db     database.Pool
	logger *slog.Logger
}

func NewPgLimitConfigurationRepository(db database.Pool, logger *slog.Logger) domain.LimitConfigurationRepository {
	return &PgLimitConfigurationRepository{db: db, logger: logger.With("component", "limit_configuration_repository_pg")}
}

func scanConfiguration(row pgx.Row) (*domain.LimitConfiguration, error) {
	var c domain.LimitConfiguration
	var criteria []byte
	if err := row.Scan(&c.ID, &c.IsDefault, &c.Priority, &c.ProfileID, &criteria, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &c.Criteria); err != nil {
			return nil, fmt.Errorf("decoding criteria of configuration %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

func insertConfiguration(ctx context.Context, db execer, c *domain.LimitConfiguration) error {
	criteria, err := json.Marshal(c.Criteria)
	if err != nil {
		return fmt.Errorf("encoding criteria: %w", err)
	}
	query := `INSERT INTO limit_configurations (` + configurationColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = db.Exec(ctx, query, c.ID, c.IsDefault, c.Priority, c.ProfileID, criteria, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *PgLimitConfigurationRepository) Create(ctx context.Context, c *domain.LimitConfiguration) error {
	r.logger.DebugContext(ctx, "Creating limit configuration", "configuration_id", c.ID, "priority", c.Priority, "is_default", c.IsDefault)
	if err := insertConfiguration(ctx, r.db, c); err != nil {
		if database.IsUniqueViolation(err, singleDefaultConstraint) {
			return apperrors.NewAlreadyExistsError("a default limit configuration already exists")
		}
		if database.IsUniqueViolation(err) {
			return apperrors.NewAlreadyExistsError("limit configuration %s already exists", c.ID)
		}
		r.logger.ErrorContext(ctx, "Error creating limit configuration", "configuration_id", c.ID, "error", err)
		return fmt.Errorf("inserting limit configuration %s: %w", c.ID, err)
	}
	return nil
}

func (r *PgLimitConfigurationRepository) GetByID(ctx context.Context, id string) (*domain.LimitConfiguration, error) {
	query := `SELECT ` + configurationColumns + ` FROM limit_configurations WHERE id = $1`
	c, err := scanConfiguration(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.InfoContext(ctx, "Limit configuration not found", "configuration_id", id)
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Error scanning limit configuration", "configuration_id", id, "error", err)
		return nil, fmt.Errorf("scanning limit configuration %s: %w", id, err)
	}
	return c, nil
}

func (r *PgLimitConfigurationRepository) ListAllOrderedByPriorityDesc(ctx context.Context) ([]*domain.LimitConfiguration, error) {
	query := `SELECT ` + configurationColumns + ` FROM limit_configurations ORDER BY priority DESC, created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing limit configurations", "error", err)
		return nil, fmt.Errorf("listing limit configurations: %w", err)
	}
	defer rows.Close()

	var configs []*domain.LimitConfiguration
	for rows.Next() {
		c, err := scanConfiguration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning limit configuration row: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating limit configuration rows: %w", err)
	}
	return configs, nil
}

func (r *PgLimitConfigurationRepository) Update(ctx context.Context, id string, update domain.LimitConfigurationUpdate) (*domain.LimitConfiguration, error) {
	var sets []string
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if v, ok := update.Priority.Get(); ok {
		add("priority", v)
	}
	if v, ok := update.ProfileID.Get(); ok {
		add("profile_id", v)
	}
	if v, ok := update.Criteria.Get(); ok {
		criteria, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding criteria: %w", err)
		}
		add("criteria", criteria)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE limit_configurations SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + configurationColumns
	c, err := scanConfiguration(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewDoesNotExistError("limit configuration %s does not exist", id)
		}
		r.logger.ErrorContext(ctx, "Error updating limit configuration", "configuration_id", id, "error", err)
		return nil, fmt.Errorf("updating limit configuration %s: %w", id, err)
	}
	return c, nil
}

func (r *PgLimitConfigurationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM limit_configurations WHERE id = $1`, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error deleting limit configuration", "configuration_id", id, "error", err)
		return fmt.Errorf("deleting limit configuration %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewDoesNotExistError("limit configuration %s does not exist", id)
	}
	return nil
}

// SeedIfEmpty holds a transaction-scoped advisory lock while it checks and inserts, so two
// instances starting together seed at most once.
func (r *PgLimitConfigurationRepository) SeedIfEmpty(ctx context.Context, profiles []*domain.LimitProfile, configs []*domain.LimitConfiguration) (bool, error) {
	seeded := false
	txErr := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, seedLockKey); err != nil {
			return fmt.Errorf("acquiring seed lock: %w", err)
		}
		var existing int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM limit_configurations`).Scan(&existing); err != nil {
			return fmt.Errorf("counting limit configurations: %w", err)
		}
		if existing > 0 {
			return nil
		}
		for _, p := range profiles {
			if err := insertProfile(ctx, tx, p); err != nil {
				return fmt.Errorf("seeding limit profile %s: %w", p.Name, err)
			}
		}
		for _, c := range configs {
			if err := insertConfiguration(ctx, tx, c); err != nil {
				return fmt.Errorf("seeding limit configuration %s: %w", c.ID, err)
			}
		}
		seeded = true
		return nil
	})
	if txErr != nil {
		r.logger.ErrorContext(ctx, "Seeding limit configurations failed", "error", txErr)
		return false, txErr
	}
	return seeded, nil
}
