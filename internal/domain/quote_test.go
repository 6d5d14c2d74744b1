package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSimulatedQuote_Deterministic(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	a := SimulatedQuote("aapl", at)
	b := SimulatedQuote("AAPL", at.Add(3*time.Hour))

	assert.Equal(t, "AAPL", a.Symbol)
	assert.True(t, a.Price.Equal(b.Price), "same symbol and day must give the same price")
	assert.False(t, a.IsLive)
	assert.Equal(t, DefaultPivotCurrency, a.Currency)
}

func TestSimulatedQuote_BoundedDrift(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, symbol := range []string{"AAPL", "MSFT", "VWCE.DE", "TSLA"} {
		first := SimulatedQuote(symbol, start).Price
		for day := 1; day < 60; day++ {
			q := SimulatedQuote(symbol, start.Add(time.Duration(day)*24*time.Hour))
			assert.True(t, q.Price.IsPositive())

			// every day stays within ±3% of the symbol's base, so any two days differ by < ~6.2%
			ratio := q.Price.Div(first).Sub(decimal.NewFromInt(1)).Abs()
			assert.True(t, ratio.LessThan(decimal.NewFromFloat(0.07)), "%s day %d drifted %s", symbol, day, ratio)
			assert.True(t, q.ChangePercent.Abs().LessThan(decimal.NewFromInt(7)))
		}
	}
}

func TestScheduleEntry_Due(t *testing.T) {
	now := time.Now()
	assert.True(t, ScheduleEntry{NextRefresh: now}.Due(now))
	assert.True(t, ScheduleEntry{NextRefresh: now.Add(-time.Second)}.Due(now))
	assert.False(t, ScheduleEntry{NextRefresh: now.Add(time.Second)}.Due(now))
}

func TestRateTable_Rate(t *testing.T) {
	table := RateTable{Base: "USD", Rates: map[string]decimal.Decimal{"EUR": d("0.85"), "BAD": decimal.Zero}}

	r, ok := table.Rate("USD")
	assert.True(t, ok)
	assert.True(t, r.Equal(decimal.NewFromInt(1)))

	r, ok = table.Rate("EUR")
	assert.True(t, ok)
	assert.True(t, r.Equal(d("0.85")))

	_, ok = table.Rate("BAD")
	assert.False(t, ok)
	_, ok = table.Rate("GBP")
	assert.False(t, ok)
}
