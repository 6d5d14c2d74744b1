package domain

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SplitRuleItemType represents the type of split rule item
type SplitRuleItemType string

const (
	SplitRuleItemTypeFixed     SplitRuleItemType = "FIXED"
	SplitRuleItemTypePercent   SplitRuleItemType = "PERCENT"
	SplitRuleItemTypeRemainder SplitRuleItemType = "REMAINDER"
)

// SplitRule describes how an income is distributed across accounts.
// FIXED values are expressed in the income's currency.
type SplitRule struct {
	Items []SplitRuleItem
}

// SplitRuleItem represents a single item in a split rule
type SplitRuleItem struct {
	TargetAccountID uuid.UUID
	Type            SplitRuleItemType // 'FIXED', 'PERCENT' (of Remainder), or 'REMAINDER' (Catch-all)
	Value           decimal.Decimal   // Amount for FIXED, percentage (0-100) for PERCENT, ignored for REMAINDER
	Priority        int               // Lower number = Executed first (Important for Fixed logic)
}

// Validate ensures the split rule adheres to domain rules
// CRITICAL: Ensures exactly one item is type 'REMAINDER'
func (sr *SplitRule) Validate() error {
	if len(sr.Items) == 0 {
		return errors.New("split rule must have at least one item")
	}

	remainderCount := 0
	targets := make(map[uuid.UUID]struct{}, len(sr.Items))
	for _, item := range sr.Items {
		if _, dup := targets[item.TargetAccountID]; dup {
			return errors.New("split rule targets each account at most once")
		}
		targets[item.TargetAccountID] = struct{}{}

		switch item.Type {
		case SplitRuleItemTypeRemainder:
			remainderCount++
		case SplitRuleItemTypeFixed:
			if item.Value.LessThanOrEqual(decimal.Zero) {
				return errors.New("FIXED split rule item value must be positive")
			}
		case SplitRuleItemTypePercent:
			if item.Value.LessThan(decimal.Zero) || item.Value.GreaterThan(decimal.NewFromInt(100)) {
				return errors.New("PERCENT split rule item value must be between 0 and 100")
			}
		default:
			return errors.New("split rule item type must be FIXED, PERCENT, or REMAINDER")
		}
	}

	if remainderCount != 1 {
		return errors.New("split rule must have exactly one REMAINDER item")
	}

	return nil
}
