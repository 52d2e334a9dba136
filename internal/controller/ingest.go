// Package controller implements the ingestion side of the pipeline: the
// MQTT subscriber loop that persists readings, evaluates thresholds and
// forwards alerts to the intake boundary.
package controller

import (
	"context"
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/envmonitor/envmonitor/internal/evaluator"
	"github.com/envmonitor/envmonitor/internal/logger"
	"github.com/envmonitor/envmonitor/internal/metrics"
	"github.com/envmonitor/envmonitor/internal/model"
	"github.com/envmonitor/envmonitor/pkg/mqtt"
)

// Store is the slice of persistence the ingestion loop writes through.
type Store interface {
	SaveReading(model.Reading) error
	SaveAlert(model.Alert) (uint, error)
	MarkAlertDelivered(id uint) error
}

// Notifier hands an alert to the fan-out boundary, in-process or over HTTP.
type Notifier interface {
	Notify(ctx context.Context, alert model.Alert) error
}

// ReadingMirror is an optional secondary sink for accepted readings.
type ReadingMirror interface {
	WriteReading(model.Reading)
}

// Service is the ingestion loop. One instance processes the topic's messages
// sequentially, each to completion before the next.
type Service struct {
	consumer   mqtt.IConsumer
	store      Store
	notifier   Notifier
	mirror     ReadingMirror // may be nil
	thresholds evaluator.Thresholds
	log        zerolog.Logger
	now        func() time.Time
}

// NewService wires the ingestion loop. mirror may be nil.
func NewService(consumer mqtt.IConsumer, store Store, notifier Notifier, mirror ReadingMirror, thresholds evaluator.Thresholds) *Service {
	return &Service{
		consumer:   consumer,
		store:      store,
		notifier:   notifier,
		mirror:     mirror,
		thresholds: thresholds,
		log:        logger.WithComponent("ingest"),
		now:        time.Now,
	}
}

// Start binds the message handler and blocks consuming until ctx is
// cancelled.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(func(_ string, msg paho.Message) error {
		s.HandlePayload(ctx, msg.Payload())
		return nil
	})
	s.consumer.ConsumeMessage(ctx)
}

// HandlePayload processes one raw broker payload to completion: parse,
// persist the reading, evaluate thresholds, then persist and deliver each
// alert in rule order. Downstream failures are logged and never abort the
// remaining steps; nothing is retried inline.
func (s *Service) HandlePayload(ctx context.Context, payload []byte) {
	var reading model.Reading
	if err := json.Unmarshal(payload, &reading); err != nil {
		metrics.PayloadParseErrors.Inc()
		s.log.Warn().Err(err).Msg("invalid payload, dropped")
		return
	}
	metrics.ReadingsIngested.Inc()

	if err := s.store.SaveReading(reading); err != nil {
		metrics.StoreWriteErrors.WithLabelValues("sensor_readings").Inc()
		s.log.Error().Err(err).Msg("reading not persisted")
	}
	if s.mirror != nil {
		s.mirror.WriteReading(reading)
	}

	for _, alert := range evaluator.Evaluate(reading, s.thresholds) {
		alert.Timestamp = s.now().UTC().Format(time.RFC3339)
		metrics.AlertsRaised.WithLabelValues(string(alert.Type)).Inc()
		s.log.Warn().
			Str("alert_type", string(alert.Type)).
			Str("message", alert.Message).
			Msg("alert raised")

		id, err := s.store.SaveAlert(alert)
		if err != nil {
			metrics.StoreWriteErrors.WithLabelValues("alert_history").Inc()
			s.log.Error().Err(err).Msg("alert not persisted")
		}

		if err := s.notifier.Notify(ctx, alert); err != nil {
			s.log.Warn().Err(err).Str("alert_type", string(alert.Type)).Msg("intake delivery failed")
			continue
		}
		if id != 0 {
			if err := s.store.MarkAlertDelivered(id); err != nil {
				s.log.Warn().Err(err).Uint("alert_id", id).Msg("delivered flag not updated")
			}
		}
	}
}
