package currency

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

const (
	DefaultRateTTL            = 5 * time.Minute
	DefaultPrecisionTolerance = 0.005
	DefaultRateTimeout        = 10 * time.Second
)

// Converter is the currency conversion engine.
// Every cross-currency conversion is routed through a single pivot currency so that one
// rate table serves every pair.
type Converter struct {
	rates     domain.RateProvider
	store     domain.StateStore
	publisher domain.EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	pivot       string
	tolerance   decimal.Decimal
	rateTimeout time.Duration
	cache       *rateCache

	// converting guards ConvertAllValues against re-entry
	converting atomic.Bool
	// onFallback is true while rates come from the static tables
	onFallback atomic.Bool
}

// Option configures a Converter
type Option func(*Converter)

func WithPivot(code string) Option {
	return func(c *Converter) { c.pivot = domain.NormalizeCurrency(code) }
}

func WithRateTTL(ttl time.Duration) Option {
	return func(c *Converter) { c.cache = newRateCache(ttl) }
}

// WithPrecisionTolerance sets the relative round-trip drift above which a precision warning is emitted
func WithPrecisionTolerance(tolerance float64) Option {
	return func(c *Converter) { c.tolerance = decimal.NewFromFloat(tolerance) }
}

func WithRateTimeout(d time.Duration) Option {
	return func(c *Converter) { c.rateTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

func WithPublisher(p domain.EventPublisher) Option {
	return func(c *Converter) { c.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(c *Converter) { c.now = now }
}

// NewConverter creates a new Converter instance
func NewConverter(rates domain.RateProvider, store domain.StateStore, opts ...Option) *Converter {
	c := &Converter{
		rates:       rates,
		store:       store,
		publisher:   domain.DiscardEvents,
		logger:      slog.Default(),
		now:         time.Now,
		pivot:       domain.DefaultPivotCurrency,
		tolerance:   decimal.NewFromFloat(DefaultPrecisionTolerance),
		rateTimeout: DefaultRateTimeout,
		cache:       newRateCache(DefaultRateTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close drops every cached rate table. The converter stays usable and refetches on demand.
func (c *Converter) Close() {
	c.cache.Clear()
}

// Pivot returns the pivot currency code
func (c *Converter) Pivot() string {
	return c.pivot
}

// IsConverting reports whether a ConvertAllValues call is in flight
func (c *Converter) IsConverting() bool {
	return c.converting.Load()
}

// Rates returns the pivot rate table.
// Logic:
//  1. Serve from cache while the entry is younger than the TTL
//  2. Otherwise fetch from the provider (bounded by the rate timeout) and cache the result
//  3. On fetch failure serve the static fallback table for the pivot (never cached)
func (c *Converter) Rates(ctx context.Context) (*domain.RateTable, error) {
	now := c.now()
	if table, ok := c.cache.Get(c.pivot, now); ok {
		return table, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.rateTimeout)
	defer cancel()

	table, err := c.rates.GetRates(fetchCtx, c.pivot)
	if err == nil && table != nil && len(table.Rates) > 0 {
		table.Base = c.pivot
		table.FetchedAt = now
		table.Source = domain.RateSourceAPI
		c.cache.Set(table)
		if c.onFallback.CompareAndSwap(true, false) {
			c.logger.Info("rate provider recovered", "pivot", c.pivot)
			c.publisher.Publish(ctx, domain.Event{Type: domain.EventRatesRestored, Time: now, Currency: c.pivot,
				Message: "live exchange rates restored"})
		}
		return table, nil
	}
	if err == nil {
		err = fmt.Errorf("empty rate table for %s: %w", c.pivot, domain.ErrRatesUnavailable)
	}

	c.logger.Warn("rate provider unavailable, using fallback rates", "pivot", c.pivot, "error", err)
	fallback, ok := FallbackTable(c.pivot, now)
	if !ok {
		return nil, fmt.Errorf("no fallback rates for pivot %s: %w", c.pivot, domain.ErrRatesUnavailable)
	}
	if c.onFallback.CompareAndSwap(false, true) {
		c.publisher.Publish(ctx, domain.Event{Type: domain.EventRatesFallback, Time: now, Currency: c.pivot,
			Message: "exchange rates are approximate until the provider recovers"})
	}
	return fallback, nil
}

// Convert converts amount from one currency to another and reports why it could not.
// Identical currencies return amount untouched, without a rate lookup and without rounding.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = domain.NormalizeCurrency(from), domain.NormalizeCurrency(to)
	if from == to {
		return amount, nil
	}

	table, err := c.Rates(ctx)
	if err != nil {
		return amount, err
	}

	result, err := convertWith(table, amount, from, to)
	if err != nil {
		return amount, err
	}

	c.checkPrecision(ctx, table, amount, result, from, to)
	return result, nil
}

// ConvertAmount converts amount and never fails: when no usable rate exists the original
// amount is returned unconverted and the degradation is logged.
func (c *Converter) ConvertAmount(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal {
	result, err := c.Convert(ctx, amount, from, to)
	if err != nil {
		c.logger.Warn("conversion failed, returning original amount",
			"amount", amount.String(), "from", from, "to", to, "error", err)
		return amount
	}
	return result
}

// convertWith routes amount through the table's pivot: amount / rate(from) / * rate(to),
// rounding after each step.
func convertWith(table *domain.RateTable, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := table.Rate(from)
	if !ok {
		return amount, fmt.Errorf("no rate for %s: %w", from, domain.ErrUnsupportedCurrency)
	}
	toRate, ok := table.Rate(to)
	if !ok {
		return amount, fmt.Errorf("no rate for %s: %w", to, domain.ErrUnsupportedCurrency)
	}

	inPivot := domain.RoundAmount(amount.Div(fromRate))
	return domain.RoundAmount(inPivot.Mul(toRate)), nil
}

// checkPrecision converts result back and warns when the round trip drifted beyond the tolerance.
// Amounts of 1 unit or less are skipped, rounding noise dominates there.
func (c *Converter) checkPrecision(ctx context.Context, table *domain.RateTable, amount, result decimal.Decimal, from, to string) {
	if amount.Abs().LessThanOrEqual(decimal.NewFromInt(1)) {
		return
	}
	back, err := convertWith(table, result, to, from)
	if err != nil {
		return
	}
	drift := amount.Sub(back).Abs().Div(amount.Abs())
	if drift.LessThanOrEqual(c.tolerance) {
		return
	}

	c.logger.Warn("conversion precision drift",
		"amount", amount.String(), "from", from, "to", to,
		"result", result.String(), "roundTrip", back.String(), "drift", drift.StringFixed(6))
	c.publisher.Publish(ctx, domain.Event{
		Type:     domain.EventPrecisionWarning,
		Time:     c.now(),
		Currency: to,
		Message: fmt.Sprintf("converting %s to %s drifted %s%% on the way back",
			domain.FormatAmount(amount, from), to, drift.Mul(decimal.NewFromInt(100)).StringFixed(2)),
	})
}
