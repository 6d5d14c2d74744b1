package domain

import (
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateSource tells where a rate table came from
type RateSource string

const (
	RateSourceAPI      RateSource = "API"
	RateSourceFallback RateSource = "FALLBACK"
)

// RateTable maps currency codes to the amount of that currency one unit of Base buys
type RateTable struct {
	Base      string
	FetchedAt time.Time
	Rates     map[string]decimal.Decimal
	Source    RateSource
}

// Rate returns the rate for code, 1 for the base itself
func (t *RateTable) Rate(code string) (decimal.Decimal, bool) {
	if code == t.Base {
		return decimal.NewFromInt(1), true
	}
	r, ok := t.Rates[code]
	if !ok || !r.IsPositive() {
		return decimal.Zero, false
	}
	return r, true
}

// Quote is a point-in-time price for a tracked instrument
type Quote struct {
	Symbol        string
	Price         decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	Currency      string
	IsLive        bool // false when the price was simulated
	Timestamp     time.Time
}

// ScheduleEntry is one instrument's slot in the staggered refresh schedule
type ScheduleEntry struct {
	AssetID     uuid.UUID
	Symbol      string
	NextRefresh time.Time
	Interval    time.Duration
}

// Due reports whether the entry should be serviced at now
func (e ScheduleEntry) Due(now time.Time) bool {
	return !now.Before(e.NextRefresh)
}

const (
	simulatedMinPrice = 10
	simulatedSpread   = 500
	simulatedMaxDrift = 0.03
)

// SimulatedQuote returns a deterministic stand-in quote: the same symbol always gets the same
// base price and the same day always gets the same bounded drift around it.
func SimulatedQuote(symbol string, at time.Time) Quote {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	day := at.UTC().Truncate(24 * time.Hour)

	price := simulatedPrice(symbol, day)
	previous := simulatedPrice(symbol, day.Add(-24*time.Hour))
	change := RoundAmount(price.Sub(previous))
	changePercent := decimal.Zero
	if previous.IsPositive() {
		changePercent = change.Div(previous).Mul(decimal.NewFromInt(100)).Round(AmountPrecision)
	}

	return Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		Currency:      DefaultPivotCurrency,
		IsLive:        false,
		Timestamp:     at,
	}
}

func simulatedPrice(symbol string, day time.Time) decimal.Decimal {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	seed := h.Sum64()

	base := float64(simulatedMinPrice + seed%simulatedSpread)
	rng := rand.New(rand.NewPCG(seed, uint64(day.Unix())))
	drift := (rng.Float64()*2 - 1) * simulatedMaxDrift

	return RoundAmount(decimal.NewFromFloat(base * (1 + drift)))
}
