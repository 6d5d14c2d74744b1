package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

// the whole tree lives in one row, versioned for optimistic replacement
const stateRowID = 1

const createStateTable = `
	CREATE TABLE IF NOT EXISTS app_state (
		id         SMALLINT PRIMARY KEY,
		version    BIGINT NOT NULL,
		document   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// stateRepository implements domain.StateStore on a single JSONB document
type stateRepository struct {
	db *DB
}

// NewStateRepository creates a new state repository
func NewStateRepository(db *DB) domain.StateStore {
	return &stateRepository{db: db}
}

// Migrate creates the app_state table and seeds it with initial if it is empty
func Migrate(ctx context.Context, db *DB, initial *domain.State) error {
	if _, err := db.ExecContext(ctx, createStateTable); err != nil {
		return fmt.Errorf("failed to create app_state table: %w", err)
	}

	if initial == nil {
		initial = &domain.State{Settings: domain.Settings{Currency: domain.DefaultPivotCurrency}}
	}
	document, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("failed to encode initial state: %w", err)
	}

	query := `
		INSERT INTO app_state (id, version, document)
		VALUES ($1, 0, $2)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := db.ExecContext(ctx, query, stateRowID, document); err != nil {
		return fmt.Errorf("failed to seed app_state: %w", err)
	}
	return nil
}

// Snapshot returns the stored state
func (r *stateRepository) Snapshot(ctx context.Context) (*domain.State, error) {
	query := `SELECT version, document FROM app_state WHERE id = $1`
	return scanState(r.db.QueryRowContext(ctx, query, stateRowID))
}

// Replace swaps the whole document if next was derived from the stored version
func (r *stateRepository) Replace(ctx context.Context, next *domain.State) error {
	return r.mutate(ctx, func(current *domain.State) (*domain.State, error) {
		if next.Version != current.Version {
			return nil, fmt.Errorf("replace at version %d, store is at %d: %w", next.Version, current.Version, domain.ErrStaleState)
		}
		return next, nil
	})
}

// PatchAsset applies a price refresh to a single asset
func (r *stateRepository) PatchAsset(ctx context.Context, assetID uuid.UUID, patch domain.AssetPricePatch) error {
	return r.mutate(ctx, func(current *domain.State) (*domain.State, error) {
		asset := current.FindAsset(assetID)
		if asset == nil {
			return nil, fmt.Errorf("asset %s: %w", assetID, domain.ErrNotFound)
		}
		if err := asset.ApplyPricePatch(patch); err != nil {
			return nil, err
		}
		return current, nil
	})
}

// Update runs fn on the stored state under a row lock and writes the result if fn succeeds
func (r *stateRepository) Update(ctx context.Context, fn func(*domain.State) error) error {
	return r.mutate(ctx, func(current *domain.State) (*domain.State, error) {
		if err := fn(current); err != nil {
			return nil, err
		}
		return current, nil
	})
}

// mutate locks the row, derives the next state from the current one and writes it with version+1
func (r *stateRepository) mutate(ctx context.Context, next func(current *domain.State) (*domain.State, error)) error {
	// Start a database transaction
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `SELECT version, document FROM app_state WHERE id = $1 FOR UPDATE`
	current, err := scanState(dbTx.QueryRowContext(ctx, query, stateRowID))
	if err != nil {
		return err
	}

	updated, err := next(current)
	if err != nil {
		return err
	}
	version := current.Version + 1
	updated.Version = version

	document, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	updateQuery := `
		UPDATE app_state
		SET version = $2, document = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := dbTx.ExecContext(ctx, updateQuery, stateRowID, version, document); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	// Commit the transaction
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanState(row *sql.Row) (*domain.State, error) {
	var (
		version  int64
		document []byte
	)
	if err := row.Scan(&version, &document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("app state: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(document, &state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	state.Version = uint64(version)
	return &state, nil
}
