package currency

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

// approximate units of each currency per 1 USD, used only when the rate provider is down
var fallbackUSD = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"JPY": 150.0,
	"CHF": 0.88,
	"CAD": 1.36,
	"AUD": 1.52,
	"NZD": 1.64,
	"SEK": 10.5,
	"NOK": 10.6,
	"DKK": 6.87,
	"PLN": 3.98,
	"CZK": 23.1,
	"HUF": 360.0,
	"CNY": 7.2,
	"HKD": 7.82,
	"SGD": 1.34,
	"INR": 83.2,
	"KRW": 1330.0,
	"BRL": 4.97,
	"MXN": 17.1,
	"ZAR": 18.7,
	"TRY": 32.0,
	"ILS": 3.7,
}

// fallbackPrecision is the number of places derived cross rates are kept at
const fallbackPrecision = 8

// fallbackTables holds one static table per possible pivot, derived once from fallbackUSD
var fallbackTables = func() map[string]map[string]decimal.Decimal {
	tables := make(map[string]map[string]decimal.Decimal, len(fallbackUSD))
	for pivot, pivotPerUSD := range fallbackUSD {
		p := decimal.NewFromFloat(pivotPerUSD)
		rates := make(map[string]decimal.Decimal, len(fallbackUSD))
		for code, perUSD := range fallbackUSD {
			rates[code] = decimal.NewFromFloat(perUSD).DivRound(p, fallbackPrecision)
		}
		rates[pivot] = decimal.NewFromInt(1)
		tables[pivot] = rates
	}
	return tables
}()

// FallbackTable returns the static approximate table for pivot.
// Returns false if pivot has no static table.
func FallbackTable(pivot string, now time.Time) (*domain.RateTable, bool) {
	rates, ok := fallbackTables[pivot]
	if !ok {
		return nil, false
	}
	copied := make(map[string]decimal.Decimal, len(rates))
	for code, r := range rates {
		copied[code] = r
	}
	return &domain.RateTable{
		Base:      pivot,
		FetchedAt: now,
		Rates:     copied,
		Source:    domain.RateSourceFallback,
	}, true
}
