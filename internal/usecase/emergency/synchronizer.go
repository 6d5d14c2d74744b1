package emergency

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

const (
	GroupName  = "Emergency Fund"
	GroupColor = "#f59e0b"
	AssetName  = "Emergency Fund (savings)"
)

// AmountConverter re-expresses an amount in another currency
type AmountConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// Synchronizer mirrors the sum of all savings accounts into the single system-managed emergency-fund asset
type Synchronizer struct {
	store     domain.StateStore
	converter AmountConverter
	publisher domain.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Synchronizer)

func WithPublisher(p domain.EventPublisher) Option {
	return func(s *Synchronizer) { s.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// NewSynchronizer creates a new Synchronizer instance
func NewSynchronizer(store domain.StateStore, converter AmountConverter, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:     store,
		converter: converter,
		publisher: domain.DiscardEvents,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync recomputes the mirror asset.
// Logic:
//  1. Convert every savings account balance into the base currency and sum them (clamped at 0)
//  2. Seed the system group if it is missing
//  3. Keep exactly one mirror asset, pinned to unit price 1 with quantity == value
//
// Savings balances are converted outside the store's write lock; if they changed in the meantime
// ErrStaleState is returned and nothing is written.
func (s *Synchronizer) Sync(ctx context.Context) (*domain.Asset, error) {
	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	base := snapshot.Settings.Currency
	total, err := s.savingsTotal(ctx, snapshot.Accounts, base)
	if err != nil {
		return nil, err
	}
	seen := savingsSignature(snapshot.Accounts, base)

	var mirror domain.Asset
	err = s.store.Update(ctx, func(state *domain.State) error {
		if savingsSignature(state.Accounts, state.Settings.Currency) != seen {
			return fmt.Errorf("savings accounts changed during sync: %w", domain.ErrStaleState)
		}
		ensureGroup(state)
		mirror = upsertMirror(state, total, base)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sync emergency fund: %w", err)
	}

	s.logger.Debug("emergency fund synced", "value", mirror.Value.String(), "currency", base)
	s.publisher.Publish(ctx, domain.Event{
		Type:     domain.EventEmergencyFundSynced,
		Time:     s.now(),
		AssetID:  mirror.ID,
		Currency: base,
		Message:  fmt.Sprintf("emergency fund is %s", domain.FormatAmount(mirror.Value, base)),
	})
	return &mirror, nil
}

func (s *Synchronizer) savingsTotal(ctx context.Context, accounts []domain.Account, base string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range accounts {
		if !a.IsSavings() {
			continue
		}
		balance, err := s.converter.Convert(ctx, a.Balance, a.Currency, base)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to convert savings account %s: %w", a.ID, err)
		}
		total = total.Add(balance)
	}
	if total.IsNegative() {
		return decimal.Zero, nil
	}
	return domain.RoundAmount(total), nil
}

func savingsSignature(accounts []domain.Account, base string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, a := range accounts {
		if !a.IsSavings() {
			continue
		}
		fmt.Fprintf(&b, "|%s:%s:%s", a.ID, a.Balance.String(), a.Currency)
	}
	return b.String()
}

func ensureGroup(state *domain.State) {
	if g := state.FindAssetGroup(domain.EmergencyFundGroupID); g != nil {
		g.IsSystem = true
		return
	}
	state.AssetGroups = append(state.AssetGroups, domain.AssetGroup{
		ID:       domain.EmergencyFundGroupID,
		Name:     GroupName,
		Color:    GroupColor,
		IsSystem: true,
	})
}

// upsertMirror drops every duplicate mirror and writes value into the one that remains
func upsertMirror(state *domain.State, value decimal.Decimal, base string) domain.Asset {
	groupID := domain.EmergencyFundGroupID
	mirror := domain.Asset{
		ID:              domain.EmergencyFundAssetID,
		Name:            AssetName,
		GroupID:         &groupID,
		Value:           value,
		Currency:        base,
		IsEmergencyFund: true,
	}
	mirror.PinEmergencyUnits()

	kept := state.Assets[:0]
	placed := false
	for _, a := range state.Assets {
		if !a.IsEmergencyFund && a.ID != domain.EmergencyFundAssetID {
			kept = append(kept, a)
			continue
		}
		if !placed {
			kept = append(kept, mirror)
			placed = true
		}
	}
	if !placed {
		kept = append(kept, mirror)
	}
	state.Assets = kept
	return mirror
}
