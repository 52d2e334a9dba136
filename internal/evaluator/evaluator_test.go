package evaluator_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/envmonitor/envmonitor/internal/evaluator"
	"github.com/envmonitor/envmonitor/internal/model"
)

var thresholds = evaluator.Thresholds{TempMax: 30.0, HumidityMin: 40.0}

func TestEvaluate_NormalReading_NoAlerts(t *testing.T) {
	cases := []model.Reading{
		{Temp: 25.0, Humidity: 60.0},
		{Temp: 30.0, Humidity: 40.0}, // exactly at both thresholds
		{Temp: -5.0, Humidity: 99.0},
	}
	for _, r := range cases {
		if alerts := evaluator.Evaluate(r, thresholds); len(alerts) != 0 {
			t.Errorf("Evaluate(%+v): got %d alerts, want 0", r, len(alerts))
		}
	}
}

func TestEvaluate_HighTemperature(t *testing.T) {
	r := model.Reading{Temp: 32.0, Humidity: 45.0}
	alerts := evaluator.Evaluate(r, thresholds)

	require.Len(t, alerts, 1)
	a := alerts[0]
	require.Equal(t, model.AlertHighTemperature, a.Type)
	require.Equal(t, model.SeverityWarning, a.Severity)
	require.Contains(t, a.Message, "32.0")
	require.Contains(t, a.Message, "30.0")
	require.Equal(t, r, a.SensorData)
}

func TestEvaluate_LowHumidity(t *testing.T) {
	r := model.Reading{Temp: 25.0, Humidity: 25.0}
	alerts := evaluator.Evaluate(r, thresholds)

	require.Len(t, alerts, 1)
	a := alerts[0]
	require.Equal(t, model.AlertLowHumidity, a.Type)
	require.Equal(t, model.SeverityWarning, a.Severity)
	require.Contains(t, a.Message, "25.0")
	require.Contains(t, a.Message, "40.0")
}

func TestEvaluate_BothViolated_TemperatureFirst(t *testing.T) {
	r := model.Reading{Temp: 35.0, Humidity: 20.0}
	alerts := evaluator.Evaluate(r, thresholds)

	require.Len(t, alerts, 2)
	require.Equal(t, model.AlertHighTemperature, alerts[0].Type)
	require.Equal(t, model.AlertLowHumidity, alerts[1].Type)
}

func TestEvaluate_Deterministic(t *testing.T) {
	r := model.Reading{Temp: 35.5, Humidity: 12.3, Timestamp: "2026-01-02T03:04:05Z"}
	first := evaluator.Evaluate(r, thresholds)
	for i := 0; i < 10; i++ {
		if again := evaluator.Evaluate(r, thresholds); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: results differ:\n%+v\n%+v", i, first, again)
		}
	}
}

func TestEvaluate_MessageInterpolation(t *testing.T) {
	r := model.Reading{Temp: 31.25, Humidity: 60.0}
	alerts := evaluator.Evaluate(r, evaluator.Thresholds{TempMax: 30.5, HumidityMin: 40.0})

	require.Len(t, alerts, 1)
	msg := alerts[0].Message
	if !strings.Contains(msg, "31.2") || !strings.Contains(msg, "30.5") {
		t.Errorf("message %q missing observed value or threshold", msg)
	}
}
