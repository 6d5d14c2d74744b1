package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType represents the kind of account a balance is held in
type AccountType string

const (
	AccountTypeChecking   AccountType = "CHECKING"
	AccountTypeSavings    AccountType = "SAVINGS"
	AccountTypeCredit     AccountType = "CREDIT"
	AccountTypeInvestment AccountType = "INVESTMENT"
	AccountTypeCash       AccountType = "CASH"
)

// Account represents a bank, cash or card account
type Account struct {
	ID       uuid.UUID
	Name     string
	Type     AccountType
	Balance  decimal.Decimal
	Currency string
}

// IsSavings reports whether the account feeds the emergency fund
func (a *Account) IsSavings() bool {
	return a.Type == AccountTypeSavings
}

// IsLiability reports whether the balance is owed rather than held
func (a *Account) IsLiability() bool {
	return a.Type == AccountTypeCredit
}

// Validate ensures the account adheres to domain rules
func (a *Account) Validate() error {
	if a.Name == "" {
		return errors.New("account name cannot be empty")
	}
	switch a.Type {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeCredit, AccountTypeInvestment, AccountTypeCash:
	default:
		return errors.New("account type must be CHECKING, SAVINGS, CREDIT, INVESTMENT, or CASH")
	}
	if !IsSupportedCurrency(a.Currency) {
		return ErrUnsupportedCurrency
	}
	return nil
}

// Budget represents a spending envelope for a category
type Budget struct {
	ID        uuid.UUID
	Category  string
	Allocated decimal.Decimal
	Spent     decimal.Decimal
	Currency  string
}

// Remaining returns Allocated - Spent (may be negative when overspent)
func (b *Budget) Remaining() decimal.Decimal {
	return b.Allocated.Sub(b.Spent)
}

// Expense represents a single recorded spend
type Expense struct {
	ID          uuid.UUID
	Description string
	Category    string
	Amount      decimal.Decimal
	Currency    string
	Date        time.Time
	BudgetID    *uuid.UUID
}

// Debt represents a loan or mortgage
type Debt struct {
	ID             uuid.UUID
	Name           string
	Amount         decimal.Decimal // outstanding principal
	MonthlyPayment decimal.Decimal
	InterestRate   decimal.Decimal // annual, in percent; not monetary
	Currency       string
}

// Property represents real estate or another tangible holding
type Property struct {
	ID            uuid.UUID
	Name          string
	Value         decimal.Decimal
	PurchasePrice decimal.Decimal
	Currency      string
}

// PersonalDebtDirection tells who owes whom
type PersonalDebtDirection string

const (
	PersonalDebtOwedToMe PersonalDebtDirection = "OWED_TO_ME"
	PersonalDebtIOwe     PersonalDebtDirection = "I_OWE"
)

// PersonalDebt represents money lent to or borrowed from a person
type PersonalDebt struct {
	ID        uuid.UUID
	Person    string
	Amount    decimal.Decimal
	Direction PersonalDebtDirection
	Settled   bool
	Currency  string
}
