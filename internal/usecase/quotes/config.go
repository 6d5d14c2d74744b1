package quotes

import (
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidSchedulerConfig = errors.New("invalid quote scheduler config")

// Config holds the scheduler's cadence parameters
type Config struct {
	Enabled bool

	// CheckInterval is how often the timer looks for a due entry
	CheckInterval time.Duration
	// BaseInterval is the window first refreshes are staggered across and the minimum per-instrument interval
	BaseInterval time.Duration
	// MinSpacing is the per-instrument share of the provider quota; N instruments never refresh faster than N*MinSpacing
	MinSpacing time.Duration
	// SyncInterval bounds how often the tracked set is re-read from the store
	SyncInterval time.Duration
	// QuoteTimeout bounds a single provider call
	QuoteTimeout time.Duration
	// ForceRefreshDelay is the pause between provider calls in ForceRefreshAll
	ForceRefreshDelay time.Duration
	// ErrorLogSize is how many recent failures are kept
	ErrorLogSize int
}

// DefaultConfig returns the reference cadence
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		CheckInterval:     10 * time.Second,
		BaseInterval:      3 * time.Minute,
		MinSpacing:        30 * time.Second,
		SyncInterval:      5 * time.Minute,
		QuoteTimeout:      10 * time.Second,
		ForceRefreshDelay: time.Second,
		ErrorLogSize:      10,
	}
}

func (c Config) IsValid() error {
	switch {
	case c.CheckInterval <= 0:
		return errors.Wrap(ErrInvalidSchedulerConfig, "check interval must be positive")
	case c.BaseInterval <= 0:
		return errors.Wrap(ErrInvalidSchedulerConfig, "base interval must be positive")
	case c.MinSpacing < 0:
		return errors.Wrap(ErrInvalidSchedulerConfig, "min spacing cannot be negative")
	case c.SyncInterval <= 0:
		return errors.Wrap(ErrInvalidSchedulerConfig, "sync interval must be positive")
	case c.QuoteTimeout <= 0:
		return errors.Wrap(ErrInvalidSchedulerConfig, "quote timeout must be positive")
	case c.ForceRefreshDelay < 0:
		return errors.Wrap(ErrInvalidSchedulerConfig, "force refresh delay cannot be negative")
	case c.ErrorLogSize <= 0:
		return errors.Wrap(ErrInvalidSchedulerConfig, "error log size must be positive")
	default:
		return nil
	}
}
