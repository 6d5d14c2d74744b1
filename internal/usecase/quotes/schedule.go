package quotes

import (
	"sort"
	"strings"
	"time"

	"github.com/simaogato/wealthflow-core/internal/domain"
)

// entryInterval is the steady-state interval every entry gets when n instruments are tracked
func entryInterval(n int, cfg Config) time.Duration {
	return max(cfg.BaseInterval, time.Duration(n)*cfg.MinSpacing)
}

// buildSchedule spreads the first refresh of each tracked asset evenly across one base interval
func buildSchedule(tracked []domain.Asset, now time.Time, cfg Config) []*domain.ScheduleEntry {
	n := len(tracked)
	entries := make([]*domain.ScheduleEntry, 0, n)
	if n == 0 {
		return entries
	}

	interval := entryInterval(n, cfg)
	for i, a := range tracked {
		offset := cfg.BaseInterval * time.Duration(i) / time.Duration(n)
		entries = append(entries, &domain.ScheduleEntry{
			AssetID:     a.ID,
			Symbol:      a.Symbol,
			NextRefresh: now.Add(offset),
			Interval:    interval,
		})
	}
	return entries
}

// trackedSignature identifies a tracked set independently of its order
func trackedSignature(tracked []domain.Asset) string {
	keys := make([]string, 0, len(tracked))
	for _, a := range tracked {
		keys = append(keys, a.ID.String()+":"+strings.ToUpper(a.Symbol))
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// earliestDue returns the due entry with the oldest NextRefresh, ties broken by symbol
func earliestDue(entries []*domain.ScheduleEntry, now time.Time) *domain.ScheduleEntry {
	var next *domain.ScheduleEntry
	for _, e := range entries {
		if !e.Due(now) {
			continue
		}
		if next == nil || e.NextRefresh.Before(next.NextRefresh) ||
			(e.NextRefresh.Equal(next.NextRefresh) && e.Symbol < next.Symbol) {
			next = e
		}
	}
	return next
}
