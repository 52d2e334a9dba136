package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"github.com/envmonitor/envmonitor/internal/model"
)

func sampleAlert() model.Alert {
	return model.Alert{
		Type:      model.AlertHighTemperature,
		Severity:  model.SeverityWarning,
		Message:   "High temperature alert! Current temperature 32.0°C exceeds threshold 30.0°C",
		Timestamp: "2026-09-01T10:00:00Z",
		SensorData: model.Reading{
			Temp:     32.0,
			Humidity: 50.0,
		},
	}
}

func TestHTTPNotifier_Success(t *testing.T) {
	var got model.Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, time.Second)
	require.NoError(t, n.Notify(context.Background(), sampleAlert()))
	require.Equal(t, model.AlertHighTemperature, got.Type)
	require.Equal(t, 32.0, got.SensorData.Temp)
}

func TestHTTPNotifier_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, time.Second)
	err := n.Notify(context.Background(), sampleAlert())
	require.Error(t, err)
	require.Contains(t, err.Error(), "400")
}

func TestHTTPNotifier_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, time.Second)
	for i := 0; i < 5; i++ {
		require.Error(t, n.Notify(context.Background(), sampleAlert()))
	}

	err := n.Notify(context.Background(), sampleAlert())
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.EqualValues(t, 5, hits.Load(), "open breaker never reaches the wire")
}

func TestHTTPNotifier_UnreachableEndpoint(t *testing.T) {
	n := NewHTTPNotifier("http://127.0.0.1:1/api/alerts/notify", 200*time.Millisecond)
	require.Error(t, n.Notify(context.Background(), sampleAlert()))
}
