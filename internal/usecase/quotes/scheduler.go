package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

// State is the scheduler's lifecycle state
type State string

const (
	// StateIdle means no timer runs: nothing is tracked or the feature is disabled
	StateIdle State = "IDLE"
	// StateScheduled means the check timer runs
	StateScheduled State = "SCHEDULED"
)

// PriceConverter re-expresses a quoted price in the asset's currency
type PriceConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
	IsConverting() bool
}

// Scheduler keeps tracked assets' prices fresh by refreshing at most one instrument per check tick,
// each instrument no more often than its assigned interval.
type Scheduler struct {
	store     domain.StateStore
	quotes    domain.QuoteProvider
	converter PriceConverter
	publisher domain.EventPublisher
	logger    *slog.Logger
	timer     Timer
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	cfg       Config

	mu        sync.Mutex
	runCtx    context.Context
	state     State
	entries   []*domain.ScheduleEntry
	signature string
	lastSync  time.Time
	dirty     bool
	updating  map[uuid.UUID]struct{}
	errLog    *errorLog

	ticking    atomic.Bool
	refreshing atomic.Bool
	// providerHealthy flips to false once and never back
	providerHealthy atomic.Bool
}

type Option func(*Scheduler)

func WithStore(s domain.StateStore) Option {
	return func(sc *Scheduler) { sc.store = s }
}

func WithQuoteProvider(p domain.QuoteProvider) Option {
	return func(sc *Scheduler) { sc.quotes = p }
}

func WithConverter(c PriceConverter) Option {
	return func(sc *Scheduler) { sc.converter = c }
}

func WithPublisher(p domain.EventPublisher) Option {
	return func(sc *Scheduler) { sc.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(sc *Scheduler) { sc.logger = l }
}

func WithTimer(t Timer) Option {
	return func(sc *Scheduler) { sc.timer = t }
}

func WithClock(now func() time.Time) Option {
	return func(sc *Scheduler) { sc.now = now }
}

// WithSleeper replaces the pause used between ForceRefreshAll calls
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(sc *Scheduler) { sc.sleep = sleep }
}

func WithConfig(cfg Config) Option {
	return func(sc *Scheduler) { sc.cfg = cfg }
}

func (s *Scheduler) IsValid() error {
	switch {
	case s.store == nil:
		return errors.Wrap(ErrInvalidSchedulerConfig, "store cannot be nil")
	case s.quotes == nil:
		return errors.Wrap(ErrInvalidSchedulerConfig, "quote provider cannot be nil")
	case s.converter == nil:
		return errors.Wrap(ErrInvalidSchedulerConfig, "converter cannot be nil")
	case s.publisher == nil:
		return errors.Wrap(ErrInvalidSchedulerConfig, "publisher cannot be nil")
	case s.logger == nil:
		return errors.Wrap(ErrInvalidSchedulerConfig, "logger cannot be nil")
	case s.timer == nil:
		return errors.Wrap(ErrInvalidSchedulerConfig, "timer cannot be nil")
	default:
		return s.cfg.IsValid()
	}
}

// NewScheduler creates an idle scheduler; call Start to begin tracking
func NewScheduler(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		publisher: domain.DiscardEvents,
		logger:    slog.Default(),
		now:       time.Now,
		sleep:     sleepContext,
		cfg:       DefaultConfig(),
		state:     StateIdle,
		updating:  make(map[uuid.UUID]struct{}),
	}
	s.providerHealthy.Store(true)

	for _, opt := range opts {
		opt(s)
	}

	if s.timer == nil {
		s.timer = NewCronTimer()
	}
	if err := s.IsValid(); err != nil {
		return nil, err
	}
	s.errLog = newErrorLog(s.cfg.ErrorLogSize)
	return s, nil
}

// Start reads the tracked set and enters the Scheduled state if anything is tracked.
// ctx bounds every timer-driven tick.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	return s.Sync(ctx)
}

// Stop halts the timer and drops the schedule
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timer.Stop()
	s.state = StateIdle
	s.entries = nil
	s.signature = ""
}

// SetEnabled turns the feature on or off. Disabling stops the timer.
func (s *Scheduler) SetEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	s.cfg.Enabled = enabled
	s.mu.Unlock()

	return s.Sync(ctx)
}

// MarkDirty makes the next tick re-read the tracked set
func (s *Scheduler) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// TrackedSetChanged re-reads the tracked set right away. Ticks only run in the
// Scheduled state, so this is what takes an Idle scheduler back to Scheduled.
func (s *Scheduler) TrackedSetChanged(ctx context.Context) error {
	return s.Sync(ctx)
}

// Sync re-reads the tracked set, rebuilds the schedule if the set changed and
// moves between the Idle and Scheduled states.
func (s *Scheduler) Sync(ctx context.Context) error {
	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read tracked assets: %w", err)
	}
	tracked := snapshot.TrackedAssets()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSync = now
	s.dirty = false

	if !s.cfg.Enabled || len(tracked) == 0 {
		if s.state != StateIdle {
			s.logger.Info("quote scheduler idle", "tracked", len(tracked), "enabled", s.cfg.Enabled)
		}
		s.timer.Stop()
		s.state = StateIdle
		s.entries = nil
		s.signature = ""
		return nil
	}

	if sig := trackedSignature(tracked); sig != s.signature {
		s.entries = buildSchedule(tracked, now, s.cfg)
		s.signature = sig
		s.updating = make(map[uuid.UUID]struct{})
		s.logger.Info("rebuilt quote schedule",
			"tracked", len(tracked), "interval", entryInterval(len(tracked), s.cfg))
	}

	if s.state != StateScheduled || !s.timer.Running() {
		if err := s.timer.Start(s.cfg.CheckInterval, s.onTimer); err != nil {
			return err
		}
		s.state = StateScheduled
	}
	return nil
}

func (s *Scheduler) onTimer() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.Tick(ctx); err != nil {
		s.logger.Error("quote scheduler tick failed", "error", err)
	}
}

// Tick services at most one due entry.
// Logic:
//  1. Skip if a tick, a forced refresh or a currency conversion is in flight
//  2. Re-read the tracked set when marked dirty or when the sync interval elapsed
//  3. Pick the earliest due entry, refresh it and reschedule it one interval from now
//
// Refresh failures go to the error log, only store read failures are returned.
func (s *Scheduler) Tick(ctx context.Context) error {
	if !s.ticking.CompareAndSwap(false, true) {
		s.logger.Debug("quote tick skipped, previous tick still running")
		return nil
	}
	defer s.ticking.Store(false)

	if s.refreshing.Load() || s.converter.IsConverting() {
		s.logger.Debug("quote tick skipped, refresh or conversion in progress")
		return nil
	}

	now := s.now()
	s.mu.Lock()
	needsSync := s.dirty || now.Sub(s.lastSync) >= s.cfg.SyncInterval
	s.mu.Unlock()

	if needsSync {
		if err := s.Sync(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.state != StateScheduled {
		s.mu.Unlock()
		return nil
	}
	entry := earliestDue(s.entries, now)
	if entry == nil {
		s.mu.Unlock()
		return nil
	}
	assetID, symbol := entry.AssetID, entry.Symbol
	entry.NextRefresh = now.Add(entry.Interval)
	s.mu.Unlock()

	if err := s.refreshAsset(ctx, assetID, symbol); err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			s.retryNextTick(assetID)
		}
		s.recordFailure(ctx, assetID, symbol, err)
	}
	return nil
}

// retryNextTick makes an entry due again, for refreshes that lost a race with a currency switch
func (s *Scheduler) retryNextTick(assetID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.AssetID == assetID {
			e.NextRefresh = s.now()
		}
	}
}

// refreshAsset fetches a quote for symbol and writes it into the asset
func (s *Scheduler) refreshAsset(ctx context.Context, assetID uuid.UUID, symbol string) error {
	s.setUpdating(assetID, true)
	defer s.setUpdating(assetID, false)

	quote, err := s.fetchQuote(ctx, symbol)
	if err != nil {
		return err
	}

	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read asset: %w", err)
	}
	asset := snapshot.FindAsset(assetID)
	if asset == nil {
		s.MarkDirty()
		return fmt.Errorf("asset %s: %w", assetID, domain.ErrNotFound)
	}

	price := quote.Price
	quoteCurrency := quote.Currency
	if quoteCurrency == "" {
		quoteCurrency = domain.DefaultPivotCurrency
	}
	if domain.NormalizeCurrency(quoteCurrency) != domain.NormalizeCurrency(asset.Currency) {
		price, err = s.converter.Convert(ctx, price, quoteCurrency, asset.Currency)
		if err != nil {
			return fmt.Errorf("failed to convert %s quote into %s: %w", quoteCurrency, asset.Currency, err)
		}
	}

	// the store rejects the patch if the asset changed currency since the snapshot
	patch := domain.AssetPricePatch{
		PricePerUnit:     price,
		Currency:         asset.Currency,
		IsConnectedToAPI: quote.IsLive,
		UpdatedAt:        s.now(),
	}
	if err := s.store.PatchAsset(ctx, assetID, patch); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.MarkDirty()
		}
		return fmt.Errorf("failed to update asset price: %w", err)
	}

	s.logger.Debug("asset price refreshed", "symbol", symbol, "price", price.String(), "live", quote.IsLive)
	s.publisher.Publish(ctx, domain.Event{
		Type:     domain.EventPriceUpdated,
		Time:     patch.UpdatedAt,
		AssetID:  assetID,
		Symbol:   symbol,
		Currency: asset.Currency,
		Message:  fmt.Sprintf("%s is now %s", symbol, domain.FormatAmount(price, asset.Currency)),
	})
	return nil
}

// fetchQuote asks the provider for a quote, or simulates one once the provider is latched unhealthy
func (s *Scheduler) fetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if !s.providerHealthy.Load() {
		q := domain.SimulatedQuote(symbol, s.now())
		return &q, nil
	}

	quoteCtx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	defer cancel()

	quote, err := s.quotes.GetQuote(quoteCtx, symbol)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		s.degrade(ctx, err)
		q := domain.SimulatedQuote(symbol, s.now())
		return &q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("quote for %s: %w", symbol, err)
	}
	if quote == nil || !quote.Price.IsPositive() {
		return nil, fmt.Errorf("quote for %s: %w", symbol, domain.ErrQuoteUnavailable)
	}
	return quote, nil
}

func (s *Scheduler) degrade(ctx context.Context, cause error) {
	if !s.providerHealthy.CompareAndSwap(true, false) {
		return
	}
	s.logger.Warn("quote provider rejected credentials, switching to simulated quotes", "error", cause)
	s.publisher.Publish(ctx, domain.Event{
		Type:    domain.EventProviderDegraded,
		Time:    s.now(),
		Message: "live quotes unavailable, prices are simulated",
	})
}

func (s *Scheduler) recordFailure(ctx context.Context, assetID uuid.UUID, symbol string, err error) {
	s.logger.Warn("asset price refresh failed", "symbol", symbol, "error", err)

	s.mu.Lock()
	s.errLog.add(fmt.Sprintf("%s: %v", symbol, err))
	s.mu.Unlock()

	s.publisher.Publish(ctx, domain.Event{
		Type:    domain.EventPriceUpdateFailed,
		Time:    s.now(),
		AssetID: assetID,
		Symbol:  symbol,
		Message: err.Error(),
	})
}

func (s *Scheduler) setUpdating(assetID uuid.UUID, updating bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if updating {
		s.updating[assetID] = struct{}{}
		return
	}
	delete(s.updating, assetID)
}

// State returns the current lifecycle state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsUpdating reports whether a quote for the asset is being fetched right now
func (s *Scheduler) IsUpdating(assetID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.updating[assetID]
	return ok
}

// Updating lists the assets whose quote is being fetched right now
func (s *Scheduler) Updating() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.updating))
	for id := range s.updating {
		ids = append(ids, id)
	}
	return ids
}

// RecentErrors returns the most recent refresh failures, oldest first
func (s *Scheduler) RecentErrors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errLog.list()
}

// Schedule returns a copy of the current schedule entries
func (s *Scheduler) Schedule() []domain.ScheduleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]domain.ScheduleEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, *e)
	}
	return entries
}

// ProviderHealthy is false once the quote provider rejected the credentials
func (s *Scheduler) ProviderHealthy() bool {
	return s.providerHealthy.Load()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
