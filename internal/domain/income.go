package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IncomeReceipt records how one income was distributed across accounts
type IncomeReceipt struct {
	ID          uuid.UUID
	Description string
	Date        time.Time
	Amount      decimal.Decimal
	Currency    string
	Credits     []IncomeCredit
}

// IncomeCredit is the share of an income one account received
type IncomeCredit struct {
	AccountID uuid.UUID
	Allocated decimal.Decimal // in the income's currency
	Credited  decimal.Decimal // in the account's currency
	Currency  string          // the account's currency
}

// Validate ensures the receipt adheres to domain rules
// CRITICAL: Ensures the allocated shares add up to the income exactly (no penny lost)
func (r *IncomeReceipt) Validate() error {
	if len(r.Credits) == 0 {
		return errors.New("income receipt must have at least one credit")
	}

	total := decimal.Zero
	for _, c := range r.Credits {
		if c.Allocated.LessThanOrEqual(decimal.Zero) {
			return errors.New("credited share must be positive")
		}
		total = total.Add(c.Allocated)
	}

	if !total.Equal(r.Amount) {
		return errors.New("sum of credited shares must equal the income amount")
	}
	return nil
}
