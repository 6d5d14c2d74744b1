package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

// stateStore implements domain.StateStore on a single in-process tree
type stateStore struct {
	mu    sync.RWMutex
	state *domain.State
}

// NewStateStore creates a store seeded with a copy of initial (an empty USD tree if nil)
func NewStateStore(initial *domain.State) domain.StateStore {
	if initial == nil {
		initial = &domain.State{Settings: domain.Settings{Currency: domain.DefaultPivotCurrency}}
	}
	return &stateStore{state: initial.Clone()}
}

// Snapshot returns a deep copy of the current state
func (s *stateStore) Snapshot(ctx context.Context) (*domain.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone(), nil
}

// Replace swaps the whole tree if next was derived from the current version
func (s *stateStore) Replace(ctx context.Context, next *domain.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if next.Version != s.state.Version {
		return fmt.Errorf("replace at version %d, store is at %d: %w", next.Version, s.state.Version, domain.ErrStaleState)
	}
	replacement := next.Clone()
	replacement.Version = s.state.Version + 1
	s.state = replacement
	return nil
}

// PatchAsset applies a price refresh to a single asset
func (s *stateStore) PatchAsset(ctx context.Context, assetID uuid.UUID, patch domain.AssetPricePatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	asset := s.state.FindAsset(assetID)
	if asset == nil {
		return fmt.Errorf("asset %s: %w", assetID, domain.ErrNotFound)
	}
	if err := asset.ApplyPricePatch(patch); err != nil {
		return err
	}
	s.state.Version++
	return nil
}

// Update runs fn on a copy and keeps the copy only if fn succeeds
func (s *stateStore) Update(ctx context.Context, fn func(*domain.State) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.Clone()
	if err := fn(working); err != nil {
		return err
	}
	working.Version = s.state.Version + 1
	s.state = working
	return nil
}
