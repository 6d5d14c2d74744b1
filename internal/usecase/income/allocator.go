package income

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

// Share is the part of an income allocated to one account, in the income's currency
type Share struct {
	AccountID uuid.UUID
	Amount    decimal.Decimal
}

// CalculateAllocation calculates the allocation of a total amount across split rule items
// Returns one share per item, in priority order
// Logic:
//  1. Sort items by Priority (Lower = First)
//  2. Deduct FIXED amounts first
//  3. Calculate PERCENT amounts based on the *Remainder* (Total - Fixed), rounded to 2 places
//  4. Assign the final leftover amount to the REMAINDER item
//
// Safety: Ensures total allocation equals total inflow exactly (no penny lost)
func CalculateAllocation(totalAmount decimal.Decimal, items []domain.SplitRuleItem) ([]Share, error) {
	if totalAmount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("total amount must be positive")
	}

	if len(items) == 0 {
		return nil, errors.New("items list cannot be empty")
	}

	// Create a copy of items to avoid mutating the original slice
	sortedItems := make([]domain.SplitRuleItem, len(items))
	copy(sortedItems, items)

	// Sort items by Priority (Lower = First); equal priorities keep their given order
	sort.SliceStable(sortedItems, func(i, j int) bool {
		return sortedItems[i].Priority < sortedItems[j].Priority
	})

	shares := make([]Share, len(sortedItems))
	remaining := totalAmount
	remainderIdx := -1

	// Step 1: Deduct FIXED amounts first
	for i, item := range sortedItems {
		shares[i].AccountID = item.TargetAccountID
		switch item.Type {
		case domain.SplitRuleItemTypeFixed:
			fixed := domain.RoundAmount(item.Value)
			if fixed.GreaterThan(remaining) {
				return nil, errors.New("FIXED amount exceeds remaining balance")
			}
			shares[i].Amount = fixed
			remaining = remaining.Sub(fixed)
		case domain.SplitRuleItemTypeRemainder:
			remainderIdx = i
		}
	}
	if remainderIdx < 0 {
		return nil, errors.New("no REMAINDER item found")
	}

	// Step 2: Calculate PERCENT amounts based on the Remainder
	hundred := decimal.NewFromInt(100)
	allocatedSoFar := totalAmount.Sub(remaining)
	for i, item := range sortedItems {
		if item.Type == domain.SplitRuleItemTypePercent {
			percentAmount := domain.RoundAmount(remaining.Mul(item.Value).Div(hundred))
			shares[i].Amount = percentAmount
			allocatedSoFar = allocatedSoFar.Add(percentAmount)
		}
	}

	// Step 3: Assign the final leftover amount to the REMAINDER item
	remainderAmount := totalAmount.Sub(allocatedSoFar)
	if remainderAmount.IsNegative() {
		return nil, errors.New("PERCENT items exceed the remainder")
	}
	shares[remainderIdx].Amount = remainderAmount

	// Safety check: Ensure total allocation equals total inflow exactly
	totalAllocated := decimal.Zero
	for _, s := range shares {
		totalAllocated = totalAllocated.Add(s.Amount)
	}
	if !totalAllocated.Equal(totalAmount) {
		return nil, errors.New("total allocation does not equal total amount")
	}

	return shares, nil
}
