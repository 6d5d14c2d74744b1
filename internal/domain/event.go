package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names something the core reports to the presentation layer
type EventType string

const (
	EventConversionStarted   EventType = "conversion.started"
	EventConversionCompleted EventType = "conversion.completed"
	EventConversionFailed    EventType = "conversion.failed"
	EventPrecisionWarning    EventType = "conversion.precision_warning"
	EventPriceUpdated        EventType = "price.updated"
	EventPriceUpdateFailed   EventType = "price.update_failed"
	EventRefreshSummary      EventType = "refresh.summary"
	EventProviderDegraded    EventType = "provider.degraded"
	EventRatesFallback       EventType = "rates.fallback"
	EventRatesRestored       EventType = "rates.restored"
	EventEmergencyFundSynced EventType = "emergency_fund.synced"
)

// Event is a notification emitted by the core. The core never renders anything itself.
type Event struct {
	Type    EventType
	Time    time.Time
	Message string

	// optional context, set depending on Type
	AssetID   uuid.UUID
	Symbol    string
	Currency  string
	Succeeded int
	Failed    int
	Errors    []string
}

// EventPublisher receives core events. Implementations must not block for long.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

// EventPublisherFunc adapts a function to EventPublisher
type EventPublisherFunc func(ctx context.Context, event Event)

func (f EventPublisherFunc) Publish(ctx context.Context, event Event) { f(ctx, event) }

// DiscardEvents drops every event
var DiscardEvents EventPublisher = EventPublisherFunc(func(context.Context, Event) {})
