package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/envmonitor/envmonitor/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAlert_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	a := model.Alert{
		Type:      model.AlertHighTemperature,
		Severity:  model.SeverityWarning,
		Message:   "High temperature alert! Current temperature 32.0°C exceeds threshold 30.0°C",
		Timestamp: "2026-09-01T10:00:00Z",
		SensorData: model.Reading{
			Temp: 32.0, Humidity: 45.0, Timestamp: "2026-09-01T10:00:00Z",
		},
	}
	id, err := s.SaveAlert(a)
	require.NoError(t, err)
	require.NotZero(t, id)

	rows, total, err := s.RecentAlerts(50, 0, AlertFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, rows, 1)

	got := rows[0]
	require.Equal(t, string(a.Type), got.AlertType)
	require.Equal(t, string(a.Severity), got.Severity)
	require.Equal(t, a.Message, got.Message)
	require.Contains(t, got.SensorData, `"temp":32`)
	require.False(t, got.SentToFrontend)
}

func TestMarkAlertDelivered(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveAlert(model.Alert{Type: model.AlertLowHumidity, Severity: model.SeverityWarning})
	require.NoError(t, err)
	require.NoError(t, s.MarkAlertDelivered(id))

	rows, _, err := s.RecentAlerts(1, 0, AlertFilter{})
	require.NoError(t, err)
	require.True(t, rows[0].SentToFrontend)
}

func TestRecentAlerts_FiltersAndCount(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.SaveAlert(model.Alert{Type: model.AlertHighTemperature, Severity: model.SeverityWarning})
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := s.SaveAlert(model.Alert{Type: model.AlertLowHumidity, Severity: model.SeverityWarning})
		require.NoError(t, err)
	}

	rows, total, err := s.RecentAlerts(1, 0, AlertFilter{Type: string(model.AlertHighTemperature)})
	require.NoError(t, err)
	require.EqualValues(t, 3, total, "count reflects the filtered set, not the page")
	require.Len(t, rows, 1)
	require.Equal(t, "high_temperature", rows[0].AlertType)

	_, total, err = s.RecentAlerts(10, 0, AlertFilter{Severity: "warning"})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)

	_, total, err = s.RecentAlerts(10, 0, AlertFilter{Severity: "error"})
	require.NoError(t, err)
	require.EqualValues(t, 0, total)
}

func TestRecentReadings_NewestFirst(t *testing.T) {
	s := newTestStore(t)

	for _, temp := range []float64{20, 21, 22} {
		require.NoError(t, s.SaveReading(model.Reading{Temp: temp, Humidity: 50}))
	}

	rows, err := s.RecentReadings(2, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 22.0, rows[0].Temp)
	require.Equal(t, 21.0, rows[1].Temp)

	latest, err := s.LatestReading()
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, 22.0, latest.Temp)
}

func TestLatestReading_Empty(t *testing.T) {
	s := newTestStore(t)
	latest, err := s.LatestReading()
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestStatistics_TodayCounts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveReading(model.Reading{Temp: 25, Humidity: 50}))
	_, err := s.SaveAlert(model.Alert{Type: model.AlertHighTemperature, Severity: model.SeverityWarning})
	require.NoError(t, err)

	// One reading backdated two days: counted in totals, not in today.
	old := SensorReading{Temp: 19, Humidity: 55, CreatedAt: time.Now().AddDate(0, 0, -2)}
	require.NoError(t, s.db.Create(&old).Error)

	st, err := s.Statistics()
	require.NoError(t, err)
	require.EqualValues(t, 2, st.TotalReadings)
	require.EqualValues(t, 1, st.TotalAlerts)
	require.EqualValues(t, 1, st.TodayReadings)
	require.EqualValues(t, 1, st.TodayAlerts)
}

func TestAlertStatistics(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 2; i++ {
		_, err := s.SaveAlert(model.Alert{Type: model.AlertHighTemperature, Severity: model.SeverityWarning})
		require.NoError(t, err)
	}
	_, err := s.SaveAlert(model.Alert{Type: model.AlertLowHumidity, Severity: model.SeverityWarning})
	require.NoError(t, err)

	st, err := s.AlertStatistics()
	require.NoError(t, err)
	require.EqualValues(t, 3, st.TotalAlerts)
	require.EqualValues(t, 2, st.ByType["high_temperature"])
	require.EqualValues(t, 1, st.ByType["low_humidity"])
	require.EqualValues(t, 3, st.BySeverity["warning"])
	require.EqualValues(t, 3, st.Last24h)
	require.NotEmpty(t, st.LatestAlertTime)
}

func TestPurgeOlderThan(t *testing.T) {
	s := newTestStore(t)

	old := time.Now().AddDate(0, 0, -40)
	require.NoError(t, s.db.Create(&SensorReading{Temp: 20, Humidity: 50, CreatedAt: old}).Error)
	require.NoError(t, s.db.Create(&AlertRecord{AlertType: "high_temperature", Severity: "warning", CreatedAt: old}).Error)
	require.NoError(t, s.SaveReading(model.Reading{Temp: 25, Humidity: 50}))

	readings, alerts, err := s.PurgeOlderThan(30)
	require.NoError(t, err)
	require.EqualValues(t, 1, readings)
	require.EqualValues(t, 1, alerts)

	st, err := s.Statistics()
	require.NoError(t, err)
	require.EqualValues(t, 1, st.TotalReadings)
	require.EqualValues(t, 0, st.TotalAlerts)
}

func TestReadingStatistics(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveReading(model.Reading{Temp: 20, Humidity: 40}))
	require.NoError(t, s.SaveReading(model.Reading{Temp: 30, Humidity: 60}))

	st, err := s.ReadingStatistics()
	require.NoError(t, err)
	require.EqualValues(t, 2, st.TotalReadings)
	require.NotNil(t, st.AvgTemp)
	require.InDelta(t, 25.0, *st.AvgTemp, 0.001)
	require.InDelta(t, 20.0, *st.MinTemp, 0.001)
	require.InDelta(t, 30.0, *st.MaxTemp, 0.001)
	require.InDelta(t, 50.0, *st.AvgHumidity, 0.001)
}
