package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fixed IDs for the system-managed emergency fund (immutable, never user-created)
var (
	EmergencyFundGroupID = uuid.MustParse("00000000-0000-0000-0000-0000000000ef")
	EmergencyFundAssetID = uuid.MustParse("00000000-0000-0000-0000-0000000000e1")
)

// AssetUnits holds the optional per-unit view of an asset.
// When present, Asset.Value == CurrentPrice * Quantity and
// Asset.PurchasePrice == PurchasePrice * Quantity.
type AssetUnits struct {
	Quantity      decimal.Decimal
	CurrentPrice  decimal.Decimal // current price per unit
	PurchasePrice decimal.Decimal // purchase price per unit
}

// Asset represents an investment position, a savings pot, or any other holding with a value.
// Value is what the asset is worth now, PurchasePrice is the total cost basis.
type Asset struct {
	ID            uuid.UUID
	Name          string
	GroupID       *uuid.UUID
	Value         decimal.Decimal
	PurchasePrice decimal.Decimal
	Units         *AssetUnits // nil: aggregate fields are authoritative
	Currency      string

	// Symbol is the externally tracked instrument, empty for manually priced assets
	Symbol string
	// AutoRefresh opts the asset into scheduled price refreshes
	AutoRefresh bool
	// IsConnectedToAPI is true when the current price came from a live quote, false when simulated or manual
	IsConnectedToAPI bool
	LastPriceUpdate  time.Time

	// IsEmergencyFund marks the synthetic asset mirroring savings accounts
	IsEmergencyFund bool
}

// IsTracked reports whether the scheduler should keep this asset's price live
func (a *Asset) IsTracked() bool {
	return a.Symbol != "" && a.AutoRefresh && a.Units != nil && !a.IsEmergencyFund
}

// Profit returns Value - PurchasePrice
func (a *Asset) Profit() decimal.Decimal {
	return a.Value.Sub(a.PurchasePrice)
}

// ApplyUnitPrice sets a new current price per unit and recomputes Value.
// The cost basis is never touched by a price refresh.
func (a *Asset) ApplyUnitPrice(price decimal.Decimal) {
	if a.Units == nil {
		a.Value = RoundAmount(price)
		return
	}
	a.Units.CurrentPrice = price
	a.Value = RoundAmount(price.Mul(a.Units.Quantity))
}

// SyncAggregates recomputes Value and PurchasePrice from the per-unit fields
func (a *Asset) SyncAggregates() {
	if a.Units == nil {
		return
	}
	a.Value = RoundAmount(a.Units.CurrentPrice.Mul(a.Units.Quantity))
	a.PurchasePrice = RoundAmount(a.Units.PurchasePrice.Mul(a.Units.Quantity))
}

// PinEmergencyUnits keeps the emergency-fund mirror at unit price 1 with quantity == value
func (a *Asset) PinEmergencyUnits() {
	one := decimal.NewFromInt(1)
	a.PurchasePrice = a.Value
	a.Units = &AssetUnits{Quantity: a.Value, CurrentPrice: one, PurchasePrice: one}
}

// Validate ensures the asset adheres to domain rules
func (a *Asset) Validate() error {
	if a.Name == "" {
		return errors.New("asset name cannot be empty")
	}
	if !IsSupportedCurrency(a.Currency) {
		return ErrUnsupportedCurrency
	}
	if a.Units != nil {
		if a.Units.Quantity.IsNegative() {
			return errors.New("asset quantity cannot be negative")
		}
		if !a.Value.Equal(RoundAmount(a.Units.CurrentPrice.Mul(a.Units.Quantity))) {
			return errors.New("asset value must equal current price per unit times quantity")
		}
		if !a.PurchasePrice.Equal(RoundAmount(a.Units.PurchasePrice.Mul(a.Units.Quantity))) {
			return errors.New("asset purchase price must equal purchase price per unit times quantity")
		}
	}
	if a.AutoRefresh && a.Symbol == "" {
		return errors.New("auto-refreshed asset must have a symbol")
	}
	return nil
}

// AssetPricePatch is the only mutation the quote scheduler applies to an asset.
// Currency is the currency PricePerUnit is expressed in.
type AssetPricePatch struct {
	PricePerUnit     decimal.Decimal
	Currency         string
	IsConnectedToAPI bool
	UpdatedAt        time.Time
}

// ApplyPricePatch writes a refreshed price. A patch priced in another currency than the
// asset's current one was computed before a base-currency switch and is rejected.
func (a *Asset) ApplyPricePatch(patch AssetPricePatch) error {
	if NormalizeCurrency(patch.Currency) != NormalizeCurrency(a.Currency) {
		return fmt.Errorf("price in %s for asset held in %s: %w", patch.Currency, a.Currency, ErrStaleState)
	}
	a.ApplyUnitPrice(patch.PricePerUnit)
	a.IsConnectedToAPI = patch.IsConnectedToAPI
	a.LastPriceUpdate = patch.UpdatedAt
	return nil
}

// AssetGroup represents a named, colored partition of assets
type AssetGroup struct {
	ID       uuid.UUID
	Name     string
	Color    string
	IsSystem bool
}

// Deletable reports whether a user may remove the group
func (g *AssetGroup) Deletable() bool {
	return !g.IsSystem
}
