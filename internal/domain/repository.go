package domain

import (
	"context"

	"github.com/google/uuid"
)

// StateStore defines the AppState persistence contract the core reads from and writes to
type StateStore interface {
	// Snapshot returns a deep copy of the current state
	Snapshot(ctx context.Context) (*State, error)

	// Replace swaps the whole tree in one step.
	// next.Version must equal the stored version, otherwise ErrStaleState is returned and nothing changes.
	Replace(ctx context.Context, next *State) error

	// PatchAsset applies a price refresh to a single asset in place
	// Returns ErrNotFound if the asset no longer exists
	PatchAsset(ctx context.Context, assetID uuid.UUID, patch AssetPricePatch) error

	// Update runs fn against the current state under the store's write lock and persists the result
	// If fn returns an error nothing is written
	Update(ctx context.Context, fn func(*State) error) error
}

// RateProvider defines the exchange-rate source contract
type RateProvider interface {
	// GetRates returns how much of each currency one unit of pivot buys
	GetRates(ctx context.Context, pivot string) (*RateTable, error)
}

// QuoteProvider defines the market-data source contract.
// Implementations return ErrInvalidCredentials (wrapped) once the provider rejects the API key.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}
