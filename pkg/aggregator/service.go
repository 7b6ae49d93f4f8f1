package aggregator

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NotCoffee418/broute_smart_meter/pkg/meterdb"
	"github.com/sirupsen/logrus"
)

// roundToHourStart returns the Unix timestamp of the start of the hour for the given time
func roundToHourStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Unix()
}

// roundToDayStart returns the Unix timestamp of the start of the day for the given time
func roundToDayStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

// aggregateLivePower averages the live readings of one timeframe and
// stores them as energy. Readings are split by direction, so each
// direction is averaged over all samples of the window.
func aggregateLivePower(store *meterdb.Store, tf Timeframe, start int64) error {
	db := store.DB()
	end := start + int64(tf.duration()/time.Second) - 1

	query := `
		SELECT
			reading_type,
			SUM(watt) as sum_watt,
			COUNT(*) as count
		FROM live_power_readings
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY reading_type
	`

	rows, err := db.Query(query, start, end)
	if err != nil {
		return err
	}
	defer rows.Close()

	sums := make(map[meterdb.MeterDbPowerReadingType]float64)
	var totalSampleCount uint32

	for rows.Next() {
		var readingType meterdb.MeterDbPowerReadingType
		var sumWatt float64
		var count uint32

		if err := rows.Scan(&readingType, &sumWatt, &count); err != nil {
			return err
		}

		sums[readingType] = sumWatt
		totalSampleCount += count
	}

	if err := rows.Err(); err != nil {
		return err
	}

	// Only insert if we have data
	if totalSampleCount == 0 {
		return nil
	}

	hours := tf.duration().Hours()
	consumptionWh := uint32(sums[meterdb.PowerConsumption] / float64(totalSampleCount) * hours)
	productionWh := uint32(sums[meterdb.PowerProduction] / float64(totalSampleCount) * hours)

	_, err = db.Exec(
		"INSERT OR REPLACE INTO "+tf.table()+
			" (start_time, consumption_wh, production_wh, sample_count) VALUES (?, ?, ?, ?)",
		start, consumptionWh, productionWh, totalSampleCount,
	)
	return err
}

// cleanupOldData removes raw data older than the retention window if we have aggregated it
func cleanupOldData(store *meterdb.Store, now time.Time, log logrus.FieldLogger) error {
	db := store.DB()

	cutoff := now.UTC().AddDate(0, -RawRetentionMonths, 0)
	cutoffTimestamp := cutoff.Unix()

	var lastAggregateHour sql.NullInt64
	err := db.QueryRow("SELECT MAX(start_time) FROM aggregate_live_power_hourly").Scan(&lastAggregateHour)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if !lastAggregateHour.Valid || lastAggregateHour.Int64 < cutoffTimestamp {
		// Not caught up yet
		return nil
	}

	res, err := db.Exec("DELETE FROM live_power_readings WHERE timestamp < ?", cutoffTimestamp)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.WithField("rows", n).Infof("Cleaned up data older than %s", cutoff.Format(time.RFC3339))
	}
	return nil
}

// AggregateAndCleanup performs all aggregation and cleanup tasks for the given moment.
// Called hourly by meter_collector.
func AggregateAndCleanup(store *meterdb.Store, now time.Time, log logrus.FieldLogger) error {
	now = now.UTC()

	// Aggregate the previous hour (current hour is still ongoing)
	hourStart := roundToHourStart(now.Add(-time.Hour))
	log.Debugf("Aggregating data for hour starting at %s", time.Unix(hourStart, 0).UTC().Format(time.RFC3339))
	if err := aggregateLivePower(store, Hourly, hourStart); err != nil {
		return fmt.Errorf("%s aggregate: %w", Hourly, err)
	}

	// Aggregate the previous day if it's a new day
	if now.Hour() == 0 {
		dayStart := roundToDayStart(now.AddDate(0, 0, -1))
		log.Debugf("Aggregating data for day starting at %s", time.Unix(dayStart, 0).UTC().Format(time.RFC3339))
		if err := aggregateLivePower(store, Daily, dayStart); err != nil {
			return fmt.Errorf("%s aggregate: %w", Daily, err)
		}
	}

	if err := cleanupOldData(store, now, log); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	log.Debug("Aggregation and cleanup completed")
	return nil
}
