package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/simaogato/wealthflow-core/internal/domain"
)

var (
	ErrInvalidBusConfig = errors.New("invalid event bus config")

	_ domain.EventPublisher = (*Bus)(nil)
)

// Handler consumes one event
type Handler func(ctx context.Context, event domain.Event) error

// Bus fans core events out to subscribers on a single goroutine.
// Publish never blocks: when the buffer is full the event is dropped and counted.
type Bus struct {
	ctx    context.Context
	logger *slog.Logger
	size   int
	ch     chan domain.Event

	mu       sync.RWMutex
	handlers []Handler

	dropped atomic.Uint64
	started atomic.Bool
	done    chan struct{}
}

type Option func(*Bus)

func WithContext(ctx context.Context) Option {
	return func(b *Bus) {
		b.ctx = ctx
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = l
	}
}

func WithBufferSize(n int) Option {
	return func(b *Bus) {
		b.size = n
	}
}

func WithHandler(h Handler) Option {
	return func(b *Bus) {
		b.handlers = append(b.handlers, h)
	}
}

func (b *Bus) IsValid() error {
	switch {
	case b.ctx == nil:
		return errors.Wrap(ErrInvalidBusConfig, "ctx cannot be nil")
	case b.logger == nil:
		return errors.Wrap(ErrInvalidBusConfig, "logger cannot be nil")
	case b.size <= 0:
		return errors.Wrap(ErrInvalidBusConfig, "buffer size must be positive")
	default:
		return nil
	}
}

func New(opts ...Option) (*Bus, error) {
	b := &Bus{
		size: 64,
		done: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	if err := b.IsValid(); err != nil {
		return nil, err
	}
	b.ch = make(chan domain.Event, b.size)
	return b, nil
}

// Subscribe adds a handler; it sees every event published after the call
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish queues the event for delivery
func (b *Bus) Publish(_ context.Context, event domain.Event) {
	select {
	case b.ch <- event:
	default:
		b.dropped.Add(1)
		b.logger.Warn("event bus full, dropping event", "type", event.Type)
	}
}

// Dropped returns how many events were discarded because the buffer was full
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Start delivers queued events until the bus context is done
func (b *Bus) Start() error {
	if !b.started.CompareAndSwap(false, true) {
		return errors.Wrap(ErrInvalidBusConfig, "bus already started")
	}

	go func() {
		defer close(b.done)
		for {
			select {
			case event := <-b.ch:
				b.dispatch(event)
			case <-b.ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Done is closed once the delivery goroutine has exited
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

func (b *Bus) dispatch(event domain.Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(b.ctx, event); err != nil {
			b.logger.Error("event handler error", "type", event.Type, "error", err)
		}
	}
}

// LogHandler writes every event to logger
func LogHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, event domain.Event) error {
		level := slog.LevelInfo
		switch event.Type {
		case domain.EventConversionFailed, domain.EventProviderDegraded:
			level = slog.LevelWarn
		case domain.EventPriceUpdated, domain.EventPrecisionWarning, domain.EventPriceUpdateFailed:
			level = slog.LevelDebug
		}
		logger.Log(ctx, level, event.Message, "event", event.Type, "symbol", event.Symbol, "currency", event.Currency)
		return nil
	}
}
