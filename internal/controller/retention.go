package controller

import (
	"context"
	"time"

	"github.com/envmonitor/envmonitor/internal/logger"
	"github.com/envmonitor/envmonitor/internal/metrics"
)

// RetentionStore is the purge operation of the persistence store.
type RetentionStore interface {
	PurgeOlderThan(retentionDays int) (readings int64, alerts int64, err error)
}

// RunRetentionSweep purges rows older than the retention horizon, once at
// startup and then on every tick, until ctx is cancelled.
func RunRetentionSweep(ctx context.Context, store RetentionStore, days int, every time.Duration) {
	log := logger.WithComponent("retention")

	sweep := func() {
		readings, alerts, err := store.PurgeOlderThan(days)
		if err != nil {
			log.Error().Err(err).Msg("retention sweep failed")
			return
		}
		metrics.RowsPurged.WithLabelValues("sensor_readings").Add(float64(readings))
		metrics.RowsPurged.WithLabelValues("alert_history").Add(float64(alerts))
		if readings > 0 || alerts > 0 {
			log.Info().
				Int64("readings_deleted", readings).
				Int64("alerts_deleted", alerts).
				Int("retention_days", days).
				Msg("retention sweep complete")
		}
	}

	sweep()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
