package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Settings holds user preferences that affect every monetary figure
type Settings struct {
	Currency string // base currency
}

// State is the whole in-memory tree the tracker works on.
// Version is bumped by the store on every write and is used to reject stale replacements.
type State struct {
	Version       uint64
	Settings      Settings
	Accounts      []Account
	Budgets       []Budget
	Expenses      []Expense
	Assets        []Asset
	AssetGroups   []AssetGroup
	Debts         []Debt
	Properties    []Property
	PersonalDebts []PersonalDebt
}

// Clone returns a deep copy; mutations on the copy never reach the original
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Accounts = append([]Account(nil), s.Accounts...)
	c.Budgets = append([]Budget(nil), s.Budgets...)
	c.Expenses = append([]Expense(nil), s.Expenses...)
	for i := range c.Expenses {
		c.Expenses[i].BudgetID = cloneID(c.Expenses[i].BudgetID)
	}
	c.Assets = append([]Asset(nil), s.Assets...)
	for i := range c.Assets {
		c.Assets[i].GroupID = cloneID(c.Assets[i].GroupID)
		if u := c.Assets[i].Units; u != nil {
			units := *u
			c.Assets[i].Units = &units
		}
	}
	c.AssetGroups = append([]AssetGroup(nil), s.AssetGroups...)
	c.Debts = append([]Debt(nil), s.Debts...)
	c.Properties = append([]Property(nil), s.Properties...)
	c.PersonalDebts = append([]PersonalDebt(nil), s.PersonalDebts...)
	return &c
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// FindAccount returns a pointer into s.Accounts, or nil
func (s *State) FindAccount(id uuid.UUID) *Account {
	for i := range s.Accounts {
		if s.Accounts[i].ID == id {
			return &s.Accounts[i]
		}
	}
	return nil
}

// FindAsset returns a pointer into s.Assets, or nil
func (s *State) FindAsset(id uuid.UUID) *Asset {
	for i := range s.Assets {
		if s.Assets[i].ID == id {
			return &s.Assets[i]
		}
	}
	return nil
}

// FindBudget returns a pointer into s.Budgets, or nil
func (s *State) FindBudget(id uuid.UUID) *Budget {
	for i := range s.Budgets {
		if s.Budgets[i].ID == id {
			return &s.Budgets[i]
		}
	}
	return nil
}

// FindAssetGroup returns a pointer into s.AssetGroups, or nil
func (s *State) FindAssetGroup(id uuid.UUID) *AssetGroup {
	for i := range s.AssetGroups {
		if s.AssetGroups[i].ID == id {
			return &s.AssetGroups[i]
		}
	}
	return nil
}

// TrackedAssets returns copies of every asset the quote scheduler should keep live
func (s *State) TrackedAssets() []Asset {
	tracked := make([]Asset, 0)
	for _, a := range s.Assets {
		if a.IsTracked() {
			tracked = append(tracked, a)
		}
	}
	return tracked
}

// MonetaryField addresses one amount inside a State together with the currency it is expressed in
type MonetaryField struct {
	Entity   string
	ID       uuid.UUID
	Field    string
	Currency string
	Amount   *decimal.Decimal
}

// MonetaryFields lists every amount of every entity in the tree.
// The returned pointers alias s, so writing through them mutates s.
func (s *State) MonetaryFields() []MonetaryField {
	fields := make([]MonetaryField, 0, len(s.Accounts)+2*len(s.Budgets)+len(s.Expenses)+4*len(s.Assets))
	add := func(entity string, id uuid.UUID, field, currency string, amount *decimal.Decimal) {
		fields = append(fields, MonetaryField{Entity: entity, ID: id, Field: field, Currency: currency, Amount: amount})
	}

	for i := range s.Accounts {
		a := &s.Accounts[i]
		add("account", a.ID, "balance", a.Currency, &a.Balance)
	}
	for i := range s.Budgets {
		b := &s.Budgets[i]
		add("budget", b.ID, "allocated", b.Currency, &b.Allocated)
		add("budget", b.ID, "spent", b.Currency, &b.Spent)
	}
	for i := range s.Expenses {
		e := &s.Expenses[i]
		add("expense", e.ID, "amount", e.Currency, &e.Amount)
	}
	for i := range s.Assets {
		a := &s.Assets[i]
		add("asset", a.ID, "value", a.Currency, &a.Value)
		add("asset", a.ID, "purchasePrice", a.Currency, &a.PurchasePrice)
		if a.Units != nil {
			add("asset", a.ID, "currentPricePerUnit", a.Currency, &a.Units.CurrentPrice)
			add("asset", a.ID, "purchasePricePerUnit", a.Currency, &a.Units.PurchasePrice)
		}
	}
	for i := range s.Debts {
		d := &s.Debts[i]
		add("debt", d.ID, "amount", d.Currency, &d.Amount)
		add("debt", d.ID, "monthlyPayment", d.Currency, &d.MonthlyPayment)
	}
	for i := range s.Properties {
		p := &s.Properties[i]
		add("property", p.ID, "value", p.Currency, &p.Value)
		add("property", p.ID, "purchasePrice", p.Currency, &p.PurchasePrice)
	}
	for i := range s.PersonalDebts {
		p := &s.PersonalDebts[i]
		add("personalDebt", p.ID, "amount", p.Currency, &p.Amount)
	}
	return fields
}

// SetCurrency relabels every entity and the base currency setting with code.
// Amounts are not touched; callers convert them first.
func (s *State) SetCurrency(code string) {
	s.Settings.Currency = code
	for i := range s.Accounts {
		s.Accounts[i].Currency = code
	}
	for i := range s.Budgets {
		s.Budgets[i].Currency = code
	}
	for i := range s.Expenses {
		s.Expenses[i].Currency = code
	}
	for i := range s.Assets {
		s.Assets[i].Currency = code
	}
	for i := range s.Debts {
		s.Debts[i].Currency = code
	}
	for i := range s.Properties {
		s.Properties[i].Currency = code
	}
	for i := range s.PersonalDebts {
		s.PersonalDebts[i].Currency = code
	}
}
