package quotes

import (
	"context"
	"fmt"

	"github.com/simaogato/wealthflow-core/internal/domain"
)

// RefreshSummary reports the outcome of a ForceRefreshAll run
type RefreshSummary struct {
	Total     int
	Succeeded int
	Errors    []string
}

// ForceRefreshAll refreshes every tracked asset now, one after the other, pausing
// ForceRefreshDelay between provider calls. The schedule's timestamps are left alone.
// Ticks are skipped while it runs, and it is rejected while a tick is refreshing.
func (s *Scheduler) ForceRefreshAll(ctx context.Context) (*RefreshSummary, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil, domain.ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	// Tick sets ticking before it reads refreshing, so one of the two always backs off
	if s.ticking.Load() {
		return nil, fmt.Errorf("scheduled refresh running: %w", domain.ErrRefreshInProgress)
	}

	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracked assets: %w", err)
	}
	tracked := snapshot.TrackedAssets()

	summary := &RefreshSummary{Total: len(tracked), Errors: make([]string, 0)}
	for i, asset := range tracked {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.ForceRefreshDelay); err != nil {
				return summary, err
			}
		}

		if err := s.refreshAsset(ctx, asset.ID, asset.Symbol); err != nil {
			s.recordFailure(ctx, asset.ID, asset.Symbol, err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", asset.Symbol, err))
			continue
		}
		summary.Succeeded++
	}

	s.logger.Info("forced price refresh finished",
		"total", summary.Total, "succeeded", summary.Succeeded, "failed", len(summary.Errors))
	s.publisher.Publish(ctx, domain.Event{
		Type:      domain.EventRefreshSummary,
		Time:      s.now(),
		Succeeded: summary.Succeeded,
		Failed:    len(summary.Errors),
		Errors:    summary.Errors,
		Message:   fmt.Sprintf("refreshed %d of %d prices", summary.Succeeded, summary.Total),
	})
	return summary, nil
}
