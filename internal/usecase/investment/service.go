package investment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

// TrackedSetNotifier is told when an edit may have changed which assets are price-tracked
type TrackedSetNotifier interface {
	TrackedSetChanged(ctx context.Context) error
}

// AddAssetInput represents the input for creating an asset.
// When Quantity is set the per-unit prices are authoritative, otherwise Value and PurchasePrice are.
type AddAssetInput struct {
	Name                 string
	GroupID              *uuid.UUID
	Currency             string // defaults to the base currency
	Symbol               string
	AutoRefresh          bool
	Quantity             decimal.Decimal
	PricePerUnit         decimal.Decimal
	PurchasePricePerUnit decimal.Decimal
	Value                decimal.Decimal
	PurchasePrice        decimal.Decimal
}

// InvestmentService handles asset and asset-group operations
type InvestmentService struct {
	Store   domain.StateStore
	Tracker TrackedSetNotifier
	now     func() time.Time
}

// NewInvestmentService creates a new InvestmentService instance. tracker may be nil.
func NewInvestmentService(store domain.StateStore, tracker TrackedSetNotifier) *InvestmentService {
	return &InvestmentService{
		Store:   store,
		Tracker: tracker,
		now:     time.Now,
	}
}

// AddAsset validates and stores a new user asset
func (s *InvestmentService) AddAsset(ctx context.Context, input AddAssetInput) (*domain.Asset, error) {
	var created domain.Asset
	err := s.Store.Update(ctx, func(state *domain.State) error {
		asset := domain.Asset{
			ID:            uuid.New(),
			Name:          input.Name,
			GroupID:       input.GroupID,
			Currency:      domain.NormalizeCurrency(input.Currency),
			Symbol:        input.Symbol,
			AutoRefresh:   input.AutoRefresh,
			Value:         domain.RoundAmount(input.Value),
			PurchasePrice: domain.RoundAmount(input.PurchasePrice),
		}
		if asset.Currency == "" {
			asset.Currency = state.Settings.Currency
		}
		if !input.Quantity.IsZero() {
			asset.Units = &domain.AssetUnits{
				Quantity:      input.Quantity,
				CurrentPrice:  input.PricePerUnit,
				PurchasePrice: input.PurchasePricePerUnit,
			}
			asset.SyncAggregates()
		}

		if input.GroupID != nil {
			if *input.GroupID == domain.EmergencyFundGroupID {
				return fmt.Errorf("cannot add assets to the emergency fund: %w", domain.ErrSystemManaged)
			}
			if state.FindAssetGroup(*input.GroupID) == nil {
				return fmt.Errorf("asset group %s: %w", *input.GroupID, domain.ErrNotFound)
			}
		}
		if err := asset.Validate(); err != nil {
			return err
		}

		state.Assets = append(state.Assets, asset)
		created = asset
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.trackedSetChanged(ctx); err != nil {
		return &created, err
	}
	return &created, nil
}

// UpdateAssetPrice records a manually entered price per unit (or total value for assets without units)
// Logic: the cost basis is left untouched and the asset is flagged as not live
func (s *InvestmentService) UpdateAssetPrice(ctx context.Context, assetID uuid.UUID, price decimal.Decimal) (*domain.Asset, error) {
	// Validate price is positive
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("price must be positive")
	}

	var updated domain.Asset
	err := s.Store.Update(ctx, func(state *domain.State) error {
		asset := state.FindAsset(assetID)
		if asset == nil {
			return fmt.Errorf("asset %s: %w", assetID, domain.ErrNotFound)
		}
		if asset.IsEmergencyFund {
			return fmt.Errorf("emergency fund value follows savings accounts: %w", domain.ErrSystemManaged)
		}

		asset.ApplyUnitPrice(price)
		asset.IsConnectedToAPI = false
		asset.LastPriceUpdate = s.now()
		updated = *asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// CalculateProfit calculates the profit/loss for an asset
// Logic: Profit = Value - PurchasePrice
func (s *InvestmentService) CalculateProfit(ctx context.Context, assetID uuid.UUID) (decimal.Decimal, error) {
	state, err := s.Store.Snapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	asset := state.FindAsset(assetID)
	if asset == nil {
		return decimal.Zero, fmt.Errorf("asset %s: %w", assetID, domain.ErrNotFound)
	}
	return asset.Profit(), nil
}

// DeleteAsset removes a user asset. The emergency-fund mirror cannot be deleted.
func (s *InvestmentService) DeleteAsset(ctx context.Context, assetID uuid.UUID) error {
	err := s.Store.Update(ctx, func(state *domain.State) error {
		for i, a := range state.Assets {
			if a.ID != assetID {
				continue
			}
			if a.IsEmergencyFund || a.ID == domain.EmergencyFundAssetID {
				return fmt.Errorf("cannot delete the emergency fund: %w", domain.ErrSystemManaged)
			}
			state.Assets = append(state.Assets[:i], state.Assets[i+1:]...)
			return nil
		}
		return fmt.Errorf("asset %s: %w", assetID, domain.ErrNotFound)
	})
	if err != nil {
		return err
	}

	return s.trackedSetChanged(ctx)
}

// DeleteGroup removes a user group; its assets stay and become ungrouped
func (s *InvestmentService) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	return s.Store.Update(ctx, func(state *domain.State) error {
		group := state.FindAssetGroup(groupID)
		if group == nil {
			return fmt.Errorf("asset group %s: %w", groupID, domain.ErrNotFound)
		}
		if !group.Deletable() {
			return fmt.Errorf("cannot delete group %q: %w", group.Name, domain.ErrSystemManaged)
		}

		for i := range state.Assets {
			if state.Assets[i].GroupID != nil && *state.Assets[i].GroupID == groupID {
				state.Assets[i].GroupID = nil
			}
		}
		groups := state.AssetGroups[:0]
		for _, g := range state.AssetGroups {
			if g.ID != groupID {
				groups = append(groups, g)
			}
		}
		state.AssetGroups = groups
		return nil
	})
}

// trackedSetChanged runs after the write committed, so a failure here leaves the edit in place
func (s *InvestmentService) trackedSetChanged(ctx context.Context) error {
	if s.Tracker == nil {
		return nil
	}
	if err := s.Tracker.TrackedSetChanged(ctx); err != nil {
		return fmt.Errorf("asset saved but price tracking was not updated: %w", err)
	}
	return nil
}
