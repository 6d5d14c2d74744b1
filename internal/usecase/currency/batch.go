package currency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/simaogato/wealthflow-core/internal/domain"
)

// ConversionResult summarizes a successful base-currency switch
type ConversionResult struct {
	From            string
	To              string
	FieldsConverted int
	RateSource      domain.RateSource
	Duration        time.Duration
}

// ConvertAllValues re-expresses every monetary field of every entity in newBase and makes
// newBase the base currency.
// Logic:
//  1. Snapshot the state and resolve the pivot rate table once
//  2. Convert every field of a private copy concurrently
//  3. Recompute asset aggregates from per-unit fields so value == price * quantity still holds
//  4. Relabel every entity and the settings, then replace the stored tree in a single write
//
// Either every field ends up in newBase or none does: any failure leaves the store untouched.
func (c *Converter) ConvertAllValues(ctx context.Context, newBase string) (*ConversionResult, error) {
	newBase = domain.NormalizeCurrency(newBase)
	if !domain.IsSupportedCurrency(newBase) {
		return nil, fmt.Errorf("cannot switch to %q: %w", newBase, domain.ErrUnsupportedCurrency)
	}

	if !c.converting.CompareAndSwap(false, true) {
		return nil, domain.ErrConversionInProgress
	}
	defer c.converting.Store(false)

	started := c.now()

	snapshot, err := c.store.Snapshot(ctx)
	if err != nil {
		return nil, c.fail(ctx, newBase, fmt.Errorf("failed to read state: %w", err))
	}
	oldBase := snapshot.Settings.Currency
	if oldBase == newBase {
		return nil, domain.ErrSameCurrency
	}

	c.publisher.Publish(ctx, domain.Event{
		Type:     domain.EventConversionStarted,
		Time:     started,
		Currency: newBase,
		Message:  fmt.Sprintf("converting all values from %s to %s", oldBase, newBase),
	})

	table, err := c.Rates(ctx)
	if err != nil {
		return nil, c.fail(ctx, newBase, err)
	}

	next := snapshot.Clone()
	fields := next.MonetaryFields()
	if err := c.convertFields(ctx, table, fields, newBase); err != nil {
		return nil, c.fail(ctx, newBase, err)
	}

	for i := range next.Assets {
		if next.Assets[i].IsEmergencyFund {
			next.Assets[i].PinEmergencyUnits()
			continue
		}
		next.Assets[i].SyncAggregates()
	}
	next.SetCurrency(newBase)

	if err := c.store.Replace(ctx, next); err != nil {
		return nil, c.fail(ctx, newBase, fmt.Errorf("failed to replace state: %w", err))
	}

	result := &ConversionResult{
		From:            oldBase,
		To:              newBase,
		FieldsConverted: len(fields),
		RateSource:      table.Source,
		Duration:        c.now().Sub(started),
	}
	c.logger.Info("converted all values",
		"from", oldBase, "to", newBase, "fields", len(fields), "rates", table.Source)
	c.publisher.Publish(ctx, domain.Event{
		Type:      domain.EventConversionCompleted,
		Time:      c.now(),
		Currency:  newBase,
		Succeeded: len(fields),
		Message:   fmt.Sprintf("all values are now shown in %s", newBase),
	})
	return result, nil
}

// convertFields writes the converted value through each field pointer.
// Fields are independent, so they run concurrently; the first error wins.
func (c *Converter) convertFields(ctx context.Context, table *domain.RateTable, fields []domain.MonetaryField, to string) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, field := range fields {
		wg.Add(1)
		go func(field domain.MonetaryField) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					setErr(fmt.Errorf("converting %s %s.%s panicked: %v", field.Entity, field.ID, field.Field, r))
				}
			}()

			if err := ctx.Err(); err != nil {
				setErr(err)
				return
			}

			converted, err := convertWith(table, *field.Amount, domain.NormalizeCurrency(field.Currency), to)
			if err != nil {
				setErr(fmt.Errorf("converting %s %s.%s: %w", field.Entity, field.ID, field.Field, err))
				return
			}
			*field.Amount = converted
		}(field)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (c *Converter) fail(ctx context.Context, newBase string, err error) error {
	c.logger.Error("currency conversion aborted, state left unchanged", "to", newBase, "error", err)
	c.publisher.Publish(context.WithoutCancel(ctx), domain.Event{
		Type:     domain.EventConversionFailed,
		Time:     c.now(),
		Currency: newBase,
		Message:  err.Error(),
	})
	return err
}
