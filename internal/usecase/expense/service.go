package expense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

// AmountConverter re-expresses an amount in another currency
type AmountConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// LogExpenseInput represents the input for logging an expense
type LogExpenseInput struct {
	Amount      decimal.Decimal
	Description string
	Category    string
	Currency    string     // Optional: defaults to the base currency
	Date        time.Time  // Optional: defaults to now
	BudgetID    *uuid.UUID // Optional: budget charged with the expense
}

// ExpenseService handles expense logging operations
type ExpenseService struct {
	Store     domain.StateStore
	Converter AmountConverter
	now       func() time.Time
}

// NewExpenseService creates a new ExpenseService instance
func NewExpenseService(store domain.StateStore, converter AmountConverter) *ExpenseService {
	return &ExpenseService{
		Store:     store,
		Converter: converter,
		now:       time.Now,
	}
}

// LogExpense records an expense and charges its budget
// Logic:
//  1. Validate the amount and resolve currency and date defaults
//  2. If a budget is given, convert the amount into the budget's currency (outside the write lock)
//  3. Append the expense and add the converted amount to the budget's Spent in one update
func (s *ExpenseService) LogExpense(ctx context.Context, input LogExpenseInput) (*domain.Expense, error) {
	// Validate input
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("expense amount must be positive")
	}
	if input.Description == "" {
		return nil, errors.New("expense description cannot be empty")
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
		return nil, fmt.Errorf("expense currency %q: %w", currency, domain.ErrUnsupportedCurrency)
	}

	date := input.Date
	if date.IsZero() {
		date = s.now()
	}

	expense := domain.Expense{
		ID:          uuid.New(),
		Description: input.Description,
		Category:    input.Category,
		Amount:      domain.RoundAmount(input.Amount),
		Currency:    currency,
		Date:        date,
		BudgetID:    input.BudgetID,
	}

	var (
		charge         decimal.Decimal
		budgetCurrency string
	)
	if input.BudgetID != nil {
		budget := snapshot.FindBudget(*input.BudgetID)
		if budget == nil {
			return nil, fmt.Errorf("budget %s: %w", *input.BudgetID, domain.ErrNotFound)
		}
		budgetCurrency = budget.Currency
		charge, err = s.Converter.Convert(ctx, expense.Amount, currency, budgetCurrency)
		if err != nil {
			return nil, fmt.Errorf("failed to convert expense into budget currency: %w", err)
		}
		if expense.Category == "" {
			expense.Category = budget.Category
		}
	}

	err = s.Store.Update(ctx, func(state *domain.State) error {
		if input.BudgetID != nil {
			budget := state.FindBudget(*input.BudgetID)
			if budget == nil {
				return fmt.Errorf("budget %s: %w", *input.BudgetID, domain.ErrNotFound)
			}
			if budget.Currency != budgetCurrency {
				return fmt.Errorf("budget currency changed to %s: %w", budget.Currency, domain.ErrStaleState)
			}
			budget.Spent = budget.Spent.Add(charge)
		}
		state.Expenses = append(state.Expenses, expense)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &expense, nil
}
