package domain

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultPivotCurrency is the currency every cross-currency conversion is routed through
const DefaultPivotCurrency = "USD"

// AmountPrecision is the number of decimal places every converted amount is rounded to
const AmountPrecision = 2

// SupportedCurrencies lists the currency codes the tracker accepts as a base currency
var SupportedCurrencies = []string{
	"USD", "EUR", "GBP", "JPY", "CHF", "CAD", "AUD", "NZD",
	"SEK", "NOK", "DKK", "PLN", "CZK", "HUF", "CNY", "HKD",
	"SGD", "INR", "KRW", "BRL", "MXN", "ZAR", "TRY", "ILS",
}

var supportedSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(SupportedCurrencies))
	for _, code := range SupportedCurrencies {
		set[code] = struct{}{}
	}
	return set
}()

// NormalizeCurrency upper-cases and trims a currency code
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsSupportedCurrency reports whether code is both a known ISO 4217 code and in SupportedCurrencies
func IsSupportedCurrency(code string) bool {
	code = NormalizeCurrency(code)
	if _, ok := supportedSet[code]; !ok {
		return false
	}
	return money.GetCurrency(code) != nil
}

// RoundAmount rounds to AmountPrecision places, half away from zero.
// decimal values carry their exact decimal string, so no binary drift is introduced.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPrecision)
}

// FormatAmount renders an amount with the currency's symbol and grouping, e.g. "€15,725.00".
// Unknown codes fall back to "<amount> <code>".
func FormatAmount(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(NormalizeCurrency(code))
	if cur == nil {
		return amount.StringFixed(AmountPrecision) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return cur.Formatter().Format(minor)
}
