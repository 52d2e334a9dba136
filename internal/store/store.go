// Package store provides SQLite-backed durable storage for sensor readings
// and alert history, plus the read paths behind the query endpoints.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/envmonitor/envmonitor/internal/model"
)

// SensorReading is one persisted environmental sample.
type SensorReading struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Temp      float64   `json:"temp"`
	Humidity  float64   `json:"humidity"`
	Timestamp string    `json:"timestamp"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (SensorReading) TableName() string { return "sensor_readings" }

// AlertRecord is one persisted alert with an embedded snapshot of the source
// reading. SentToFrontend tracks whether the alert reached the intake
// boundary at least once, not per-subscriber delivery.
type AlertRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AlertType      string    `gorm:"index" json:"alert_type"`
	Severity       string    `gorm:"index" json:"severity"`
	Message        string    `json:"message"`
	SensorData     string    `json:"sensor_data"`
	Timestamp      string    `json:"timestamp"`
	SentToFrontend bool      `json:"sent_to_frontend"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AlertRecord) TableName() string { return "alert_history" }

// Statistics is the aggregate view over both tables. "Today" is the store's
// local calendar date.
type Statistics struct {
	TotalReadings int64 `json:"total_readings"`
	TotalAlerts   int64 `json:"total_alerts"`
	TodayReadings int64 `json:"today_readings"`
	TodayAlerts   int64 `json:"today_alerts"`
}

// AlertStatistics breaks the alert history down for the statistics endpoint.
type AlertStatistics struct {
	TotalAlerts     int64            `json:"total_alerts"`
	ByType          map[string]int64 `json:"alerts_by_type"`
	BySeverity      map[string]int64 `json:"alerts_by_severity"`
	Last24h         int64            `json:"alerts_last_24h"`
	LatestAlertTime string           `json:"latest_alert_time,omitempty"`
}

// ReadingStatistics aggregates the stored readings.
type ReadingStatistics struct {
	TotalReadings     int64    `json:"total_readings"`
	AvgTemp           *float64 `json:"avg_temp"`
	MinTemp           *float64 `json:"min_temp"`
	MaxTemp           *float64 `json:"max_temp"`
	AvgHumidity       *float64 `json:"avg_humidity"`
	MinHumidity       *float64 `json:"min_humidity"`
	MaxHumidity       *float64 `json:"max_humidity"`
	LatestReadingTime string   `json:"latest_reading_time,omitempty"`
}

// AlertFilter restricts alert queries; empty fields match everything.
type AlertFilter struct {
	Type     string
	Severity string
}

// Store wraps the shared SQLite database. Concurrent writers are serialized
// by the engine (WAL mode, busy timeout); the store adds no locking of its own.
type Store struct {
	db  *gorm.DB
	now func() time.Time // injectable for deterministic tests
}

// Open opens (creating directories and schema as needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}

	if err := db.AutoMigrate(&SensorReading{}, &AlertRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database is reachable, for health probes.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// SaveReading appends one reading.
func (s *Store) SaveReading(r model.Reading) error {
	rec := SensorReading{
		Temp:      r.Temp,
		Humidity:  r.Humidity,
		Timestamp: r.Timestamp,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("store: save reading: %w", err)
	}
	return nil
}

// SaveAlert appends one alert and returns its row id.
func (s *Store) SaveAlert(a model.Alert) (uint, error) {
	snapshot, err := json.Marshal(a.SensorData)
	if err != nil {
		return 0, fmt.Errorf("store: encode sensor data: %w", err)
	}
	rec := AlertRecord{
		AlertType:  string(a.Type),
		Severity:   string(a.Severity),
		Message:    a.Message,
		SensorData: string(snapshot),
		Timestamp:  a.Timestamp,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("store: save alert: %w", err)
	}
	return rec.ID, nil
}

// MarkAlertDelivered flags an alert as handed to the fan-out boundary.
func (s *Store) MarkAlertDelivered(id uint) error {
	res := s.db.Model(&AlertRecord{}).Where("id = ?", id).Update("sent_to_frontend", true)
	if res.Error != nil {
		return fmt.Errorf("store: mark alert delivered: %w", res.Error)
	}
	return nil
}

// RecentReadings returns stored readings, newest first.
func (s *Store) RecentReadings(limit, offset int) ([]SensorReading, error) {
	var out []SensorReading
	err := s.db.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: recent readings: %w", err)
	}
	return out, nil
}

// LatestReading returns the newest reading, or nil when the table is empty.
func (s *Store) LatestReading() (*SensorReading, error) {
	var rec SensorReading
	err := s.db.Order("created_at DESC, id DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest reading: %w", err)
	}
	return &rec, nil
}

// ReadingsByDateRange returns readings whose created-at date falls within
// [start, end], both YYYY-MM-DD, newest first.
func (s *Store) ReadingsByDateRange(start, end string) ([]SensorReading, error) {
	var out []SensorReading
	err := s.db.
		Where("DATE(created_at) BETWEEN ? AND ?", start, end).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: readings by range: %w", err)
	}
	return out, nil
}

// RecentAlerts returns a page of the alert history, newest first, plus the
// total count matching the filter (not the page size).
func (s *Store) RecentAlerts(limit, offset int, f AlertFilter) ([]AlertRecord, int64, error) {
	q := s.filtered(f)

	var total int64
	if err := q.Model(&AlertRecord{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: count alerts: %w", err)
	}

	var out []AlertRecord
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: recent alerts: %w", err)
	}
	return out, total, nil
}

// AlertsByDateRange returns the filtered alert history within [start, end]
// (YYYY-MM-DD) together with the matching count.
func (s *Store) AlertsByDateRange(start, end string, f AlertFilter) ([]AlertRecord, int64, error) {
	q := s.filtered(f).Where("DATE(created_at) BETWEEN ? AND ?", start, end)

	var total int64
	if err := q.Model(&AlertRecord{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: count alerts by range: %w", err)
	}

	var out []AlertRecord
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: alerts by range: %w", err)
	}
	return out, total, nil
}

func (s *Store) filtered(f AlertFilter) *gorm.DB {
	q := s.db.Session(&gorm.Session{})
	if f.Type != "" {
		q = q.Where("alert_type = ?", f.Type)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	return q
}

// Statistics returns the total and today row counts for both tables.
func (s *Store) Statistics() (Statistics, error) {
	var st Statistics
	midnight := s.midnight()

	if err := s.db.Model(&SensorReading{}).Count(&st.TotalReadings).Error; err != nil {
		return st, fmt.Errorf("store: statistics: %w", err)
	}
	if err := s.db.Model(&AlertRecord{}).Count(&st.TotalAlerts).Error; err != nil {
		return st, fmt.Errorf("store: statistics: %w", err)
	}
	if err := s.db.Model(&SensorReading{}).Where("created_at >= ?", midnight).Count(&st.TodayReadings).Error; err != nil {
		return st, fmt.Errorf("store: statistics: %w", err)
	}
	if err := s.db.Model(&AlertRecord{}).Where("created_at >= ?", midnight).Count(&st.TodayAlerts).Error; err != nil {
		return st, fmt.Errorf("store: statistics: %w", err)
	}
	return st, nil
}

// AlertStatistics aggregates the alert history by type and severity.
func (s *Store) AlertStatistics() (AlertStatistics, error) {
	st := AlertStatistics{
		ByType:     make(map[string]int64),
		BySeverity: make(map[string]int64),
	}

	if err := s.db.Model(&AlertRecord{}).Count(&st.TotalAlerts).Error; err != nil {
		return st, fmt.Errorf("store: alert statistics: %w", err)
	}

	type bucket struct {
		Key   string
		Count int64
	}
	var rows []bucket
	err := s.db.Model(&AlertRecord{}).
		Select("alert_type AS key, COUNT(*) AS count").
		Group("alert_type").Scan(&rows).Error
	if err != nil {
		return st, fmt.Errorf("store: alert statistics: %w", err)
	}
	for _, r := range rows {
		st.ByType[r.Key] = r.Count
	}

	rows = rows[:0]
	err = s.db.Model(&AlertRecord{}).
		Select("severity AS key, COUNT(*) AS count").
		Group("severity").Scan(&rows).Error
	if err != nil {
		return st, fmt.Errorf("store: alert statistics: %w", err)
	}
	for _, r := range rows {
		st.BySeverity[r.Key] = r.Count
	}

	dayAgo := s.now().Add(-24 * time.Hour)
	if err := s.db.Model(&AlertRecord{}).Where("created_at >= ?", dayAgo).Count(&st.Last24h).Error; err != nil {
		return st, fmt.Errorf("store: alert statistics: %w", err)
	}

	var latest AlertRecord
	err = s.db.Order("created_at DESC, id DESC").First(&latest).Error
	if err == nil {
		st.LatestAlertTime = latest.CreatedAt.Format(time.RFC3339)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return st, fmt.Errorf("store: alert statistics: %w", err)
	}

	return st, nil
}

// ReadingStatistics aggregates the stored readings.
func (s *Store) ReadingStatistics() (ReadingStatistics, error) {
	var st ReadingStatistics
	err := s.db.Model(&SensorReading{}).
		Select("COUNT(*) AS total_readings, AVG(temp) AS avg_temp, MIN(temp) AS min_temp, MAX(temp) AS max_temp, " +
			"AVG(humidity) AS avg_humidity, MIN(humidity) AS min_humidity, MAX(humidity) AS max_humidity").
		Scan(&st).Error
	if err != nil {
		return st, fmt.Errorf("store: reading statistics: %w", err)
	}

	var latest SensorReading
	err = s.db.Order("created_at DESC, id DESC").First(&latest).Error
	if err == nil {
		st.LatestReadingTime = latest.CreatedAt.Format(time.RFC3339)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return st, fmt.Errorf("store: reading statistics: %w", err)
	}

	return st, nil
}

// PurgeOlderThan deletes rows strictly older than the retention horizon and
// returns the number of deleted readings and alerts.
func (s *Store) PurgeOlderThan(retentionDays int) (readings int64, alerts int64, err error) {
	cutoff := s.now().AddDate(0, 0, -retentionDays)

	res := s.db.Where("created_at < ?", cutoff).Delete(&SensorReading{})
	if res.Error != nil {
		return 0, 0, fmt.Errorf("store: purge readings: %w", res.Error)
	}
	readings = res.RowsAffected

	res = s.db.Where("created_at < ?", cutoff).Delete(&AlertRecord{})
	if res.Error != nil {
		return readings, 0, fmt.Errorf("store: purge alerts: %w", res.Error)
	}
	alerts = res.RowsAffected

	return readings, alerts, nil
}

func (s *Store) midnight() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
