// Package evaluator holds the threshold rule that turns readings into alerts.
package evaluator

import (
	"fmt"

	"github.com/envmonitor/envmonitor/internal/model"
)

// Thresholds are the configured alert limits, read-only after startup.
type Thresholds struct {
	TempMax     float64
	HumidityMin float64
}

// Evaluate applies both threshold rules to a reading and returns zero, one or
// two alerts, temperature rule first. It is a pure function: identical inputs
// always produce identical alerts, and every violating reading produces a
// fresh alert regardless of what preceded it. The caller stamps Timestamp
// when the alert is raised.
func Evaluate(r model.Reading, t Thresholds) []model.Alert {
	var alerts []model.Alert

	if r.Temp > t.TempMax {
		alerts = append(alerts, model.Alert{
			Type:     model.AlertHighTemperature,
			Severity: model.SeverityWarning,
			Message: fmt.Sprintf("High temperature alert! Current temperature %.1f°C exceeds threshold %.1f°C",
				r.Temp, t.TempMax),
			SensorData: r,
		})
	}

	if r.Humidity < t.HumidityMin {
		alerts = append(alerts, model.Alert{
			Type:     model.AlertLowHumidity,
			Severity: model.SeverityWarning,
			Message: fmt.Sprintf("Low humidity alert! Current humidity %.1f%% is below threshold %.1f%%",
				r.Humidity, t.HumidityMin),
			SensorData: r,
		})
	}

	return alerts
}
