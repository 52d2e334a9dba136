package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/envmonitor/envmonitor/internal/logger"
	"github.com/envmonitor/envmonitor/internal/metrics"
	"github.com/envmonitor/envmonitor/internal/model"
)

// HTTPNotifier delivers alerts to the server's intake endpoint. A circuit
// breaker keeps the ingestion loop from stalling on a dead web process:
// while open, notifications fail fast and alerts stay persisted-only until
// the breaker half-opens.
type HTTPNotifier struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewHTTPNotifier builds a notifier for the given intake URL.
func NewHTTPNotifier(url string, timeout time.Duration) *HTTPNotifier {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "alert-intake",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
	return &HTTPNotifier{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		log:     logger.WithComponent("notifier"),
	}
}

// Notify POSTs the alert payload to the intake endpoint. Any non-2xx
// response is an error; the caller decides what a failed delivery means.
func (n *HTTPNotifier) Notify(ctx context.Context, alert model.Alert) error {
	_, err := n.breaker.Execute(func() (any, error) {
		body, err := json.Marshal(alert)
		if err != nil {
			return nil, fmt.Errorf("encode alert: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("intake request: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("intake status %d", resp.StatusCode)
		}
		return nil, nil
	})

	switch {
	case err == nil:
		metrics.NotificationsSent.WithLabelValues("ok").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.NotificationsSent.WithLabelValues("breaker_open").Inc()
		return fmt.Errorf("notifier: %w", err)
	default:
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("notifier: %w", err)
	}
}
