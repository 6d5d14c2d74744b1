package income

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

// AmountConverter converts a share into the receiving account's currency
type AmountConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// SavingsSyncer recomputes the emergency fund after savings balances change
type SavingsSyncer interface {
	Sync(ctx context.Context) (*domain.Asset, error)
}

// RecordIncomeInput represents the input for recording an income
type RecordIncomeInput struct {
	Amount      decimal.Decimal
	Description string
	Currency    string    // Optional: defaults to the base currency
	Date        time.Time // Optional: defaults to now

	// Exactly one of AccountID and Split is set
	AccountID *uuid.UUID
	Split     *domain.SplitRule
}

// IncomeService handles income recording operations
type IncomeService struct {
	Store     domain.StateStore
	Converter AmountConverter
	Savings   SavingsSyncer

	now func() time.Time
}

// NewIncomeService creates a new IncomeService instance; savings may be nil
func NewIncomeService(store domain.StateStore, converter AmountConverter, savings SavingsSyncer) *IncomeService {
	return &IncomeService{
		Store:     store,
		Converter: converter,
		Savings:   savings,
		now:       time.Now,
	}
}

// RecordIncome credits an income to one account or splits it across several
// Logic:
//  1. Resolve the split: a single account is a rule with one REMAINDER item
//  2. Call CalculateAllocation to get each account's share, in the income's currency
//  3. Convert every share into its account's currency (outside the write lock)
//  4. Credit every account in one update, rejecting the write if an account changed currency meanwhile
//  5. Resync the emergency fund if a savings account was credited
//
// If the resync fails the income stays recorded; the receipt is returned together with the error.
func (s *IncomeService) RecordIncome(ctx context.Context, input RecordIncomeInput) (*domain.IncomeReceipt, error) {
	// Validate input
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("income amount must be positive")
	}
	rule, err := resolveRule(input)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.Store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	currency := domain.NormalizeCurrency(input.Currency)
	if currency == "" {
		currency = snapshot.Settings.Currency
	}
	if !domain.IsSupportedCurrency(currency) {
		return nil, fmt.Errorf("income currency %q: %w", currency, domain.ErrUnsupportedCurrency)
	}

	receipt := &domain.IncomeReceipt{
		ID:          uuid.New(),
		Description: input.Description,
		Date:        input.Date,
		Amount:      domain.RoundAmount(input.Amount),
		Currency:    currency,
	}
	if receipt.Date.IsZero() {
		receipt.Date = s.now()
	}

	shares, err := CalculateAllocation(receipt.Amount, rule.Items)
	if err != nil {
		return nil, err
	}

	creditsSavings := false
	for _, share := range shares {
		if share.Amount.IsZero() {
			continue
		}
		account := snapshot.FindAccount(share.AccountID)
		if account == nil {
			return nil, fmt.Errorf("account %s: %w", share.AccountID, domain.ErrNotFound)
		}
		if account.IsLiability() {
			return nil, fmt.Errorf("account %q is a credit account and cannot receive income", account.Name)
		}
		credited, err := s.Converter.Convert(ctx, share.Amount, currency, account.Currency)
		if err != nil {
			return nil, fmt.Errorf("failed to convert share for %q: %w", account.Name, err)
		}
		receipt.Credits = append(receipt.Credits, domain.IncomeCredit{
			AccountID: account.ID,
			Allocated: share.Amount,
			Credited:  credited,
			Currency:  account.Currency,
		})
		creditsSavings = creditsSavings || account.IsSavings()
	}

	if err := receipt.Validate(); err != nil {
		return nil, err
	}

	err = s.Store.Update(ctx, func(state *domain.State) error {
		for _, c := range receipt.Credits {
			account := state.FindAccount(c.AccountID)
			if account == nil {
				return fmt.Errorf("account %s: %w", c.AccountID, domain.ErrNotFound)
			}
			if account.Currency != c.Currency {
				return fmt.Errorf("account %q changed currency while recording income: %w", account.Name, domain.ErrStaleState)
			}
			account.Balance = account.Balance.Add(c.Credited)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record income: %w", err)
	}

	if creditsSavings && s.Savings != nil {
		if _, err := s.Savings.Sync(ctx); err != nil {
			return receipt, fmt.Errorf("income recorded but emergency fund not resynced: %w", err)
		}
	}

	return receipt, nil
}

func resolveRule(input RecordIncomeInput) (*domain.SplitRule, error) {
	switch {
	case input.AccountID != nil && input.Split != nil:
		return nil, errors.New("income goes to either one account or a split, not both")
	case input.AccountID != nil:
		return &domain.SplitRule{Items: []domain.SplitRuleItem{
			{TargetAccountID: *input.AccountID, Type: domain.SplitRuleItemTypeRemainder},
		}}, nil
	case input.Split != nil:
		if err := input.Split.Validate(); err != nil {
			return nil, err
		}
		return input.Split, nil
	default:
		return nil, errors.New("income needs a target account or a split rule")
	}
}
