// Package tsdb mirrors accepted readings into InfluxDB for dashboarding.
// The mirror is best-effort and optional; the SQLite store remains the
// system of record.
package tsdb

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/envmonitor/envmonitor/internal/config"
	"github.com/envmonitor/envmonitor/internal/logger"
	"github.com/envmonitor/envmonitor/internal/model"
)

// Writer wraps the async Influx write API and tracks the last write error
// for the health endpoint.
type Writer struct {
	client      influxdb2.Client
	api         api.WriteAPI
	measurement string
	topic       string

	mu      sync.RWMutex
	lastErr time.Time
}

// New connects the mirror and starts the async error listener. topic is
// recorded as a tag on every point.
func New(cfg config.InfluxConfig, topic string) *Writer {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	w := &Writer{
		client:      client,
		api:         client.WriteAPI(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
		topic:       topic,
		lastErr:     time.Now().Add(-24 * time.Hour),
	}

	log := logger.WithComponent("tsdb")
	go func() {
		for err := range w.api.Errors() {
			if err != nil {
				w.mu.Lock()
				w.lastErr = time.Now()
				w.mu.Unlock()
				log.Warn().Err(err).Msg("influx write error")
			}
		}
	}()

	return w
}

// WriteReading enqueues one reading; errors surface on the listener.
func (w *Writer) WriteReading(r model.Reading) {
	tags := map[string]string{"topic": w.topic}
	fields := map[string]interface{}{
		"temperature": r.Temp,
		"humidity":    r.Humidity,
	}
	w.api.WritePoint(influxdb2.NewPoint(w.measurement, tags, fields, time.Now()))
}

// LastErrorAge returns how long the mirror has been error-free.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// Close flushes pending points and shuts the client down.
func (w *Writer) Close() {
	if w == nil {
		return
	}
	w.api.Flush()
	w.client.Close()
}
