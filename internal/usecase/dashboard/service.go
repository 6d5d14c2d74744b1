package dashboard

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

// AmountConverter re-expresses an amount in another currency.
// It never fails; unconvertible amounts come back unchanged.
type AmountConverter interface {
	ConvertAmount(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal
}

// NetWorthResult represents the calculated net worth, every figure in Currency
type NetWorthResult struct {
	Currency    string
	Total       decimal.Decimal
	Liquidity   decimal.Decimal
	Investments decimal.Decimal
	Property    decimal.Decimal
	Receivables decimal.Decimal
	Liabilities decimal.Decimal
	Profit      decimal.Decimal
}

// DashboardService handles dashboard-related operations
type DashboardService struct {
	Store     domain.StateStore
	Converter AmountConverter
}

// NewDashboardService creates a new DashboardService instance
func NewDashboardService(store domain.StateStore, converter AmountConverter) *DashboardService {
	return &DashboardService{
		Store:     store,
		Converter: converter,
	}
}

// GetNetWorth calculates the total net worth in the base currency
// Logic:
//   - Liquidity: Sum of all non-credit account balances
//   - Investments: Sum of all asset values (the emergency fund mirror is skipped, its savings are already in Liquidity)
//   - Property: Sum of all property values
//   - Receivables: Unsettled personal debts owed to me
//   - Liabilities: Credit account balances + debts + unsettled personal debts I owe
//   - Total: Liquidity + Investments + Property + Receivables - Liabilities
func (s *DashboardService) GetNetWorth(ctx context.Context) (*NetWorthResult, error) {
	state, err := s.Store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	base := state.Settings.Currency
	toBase := func(amount decimal.Decimal, currency string) decimal.Decimal {
		return s.Converter.ConvertAmount(ctx, amount, currency, base)
	}

	result := &NetWorthResult{
		Currency:    base,
		Liquidity:   decimal.Zero,
		Investments: decimal.Zero,
		Property:    decimal.Zero,
		Receivables: decimal.Zero,
		Liabilities: decimal.Zero,
		Profit:      decimal.Zero,
	}

	// 1. Accounts
	for _, a := range state.Accounts {
		if a.IsLiability() {
			result.Liabilities = result.Liabilities.Add(toBase(a.Balance.Abs(), a.Currency))
			continue
		}
		result.Liquidity = result.Liquidity.Add(toBase(a.Balance, a.Currency))
	}

	// 2. Assets
	for _, a := range state.Assets {
		if a.IsEmergencyFund {
			continue
		}
		result.Investments = result.Investments.Add(toBase(a.Value, a.Currency))
		result.Profit = result.Profit.Add(toBase(a.Profit(), a.Currency))
	}

	// 3. Properties
	for _, p := range state.Properties {
		result.Property = result.Property.Add(toBase(p.Value, p.Currency))
	}

	// 4. Debts
	for _, d := range state.Debts {
		result.Liabilities = result.Liabilities.Add(toBase(d.Amount, d.Currency))
	}
	for _, p := range state.PersonalDebts {
		if p.Settled {
			continue
		}
		amount := toBase(p.Amount, p.Currency)
		if p.Direction == domain.PersonalDebtOwedToMe {
			result.Receivables = result.Receivables.Add(amount)
			continue
		}
		result.Liabilities = result.Liabilities.Add(amount)
	}

	// 5. Calculate total
	result.Total = result.Liquidity.
		Add(result.Investments).
		Add(result.Property).
		Add(result.Receivables).
		Sub(result.Liabilities)

	return result, nil
}
