package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/stayware/bookingcore/internal/infrastructure/observability"
)

// WebhookDispatcher POSTs booking events as JSON to a configured
// endpoint. A circuit breaker sheds deliveries while the endpoint is
// failing so a dead listener cannot slow down bookings.
type WebhookDispatcher struct {
	client  *resty.Client
	url     string
	breaker *gobreaker.CircuitBreaker
	logger  *observability.Logger
}

// NewWebhookDispatcher creates a dispatcher for the given endpoint URL.
func NewWebhookDispatcher(url string, threshold float64, timeout time.Duration, logger *observability.Logger) *WebhookDispatcher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "booking-webhook",
		MaxRequests: 1,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("webhook circuit breaker state change")
		},
	})

	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)

	return &WebhookDispatcher{
		client:  client,
		url:     url,
		breaker: cb,
		logger:  logger,
	}
}

// Dispatch delivers one event through the breaker. Errors are returned
// for logging but callers treat delivery as best-effort.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, evt BookingEvent) error {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		resp, err := d.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(evt).
			Post(d.url)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		d.logger.WithError(err).Logger.Warn().
			Str("event_type", string(evt.Type)).
			Str("booking_id", evt.BookingID).
			Msg("failed to deliver booking event")
		return err
	}

	d.logger.Logger.Debug().
		Str("event_type", string(evt.Type)).
		Str("booking_id", evt.BookingID).
		Msg("booking event delivered")
	return nil
}
