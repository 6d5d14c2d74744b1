package quotes

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron"
)

// Timer runs fn on a fixed cadence until stopped
type Timer interface {
	Start(interval time.Duration, fn func()) error
	Stop()
	Running() bool
}

type cronTimer struct {
	mu   sync.Mutex
	cron *cron.Cron
}

// NewCronTimer creates a Timer backed by a cron "@every" job
func NewCronTimer() Timer {
	return &cronTimer{}
}

func (t *cronTimer) Start(interval time.Duration, fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cron != nil {
		t.cron.Stop()
		t.cron = nil
	}

	c := cron.New()
	if err := c.AddFunc("@every "+interval.String(), fn); err != nil {
		return errors.Wrap(err, "failed to schedule quote check")
	}
	c.Start()
	t.cron = c
	return nil
}

func (t *cronTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cron != nil {
		t.cron.Stop()
		t.cron = nil
	}
}

func (t *cronTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cron != nil
}
