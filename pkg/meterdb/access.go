package meterdb

import (
	"database/sql"
	"errors"

	"github.com/NotCoffee418/broute_smart_meter/pkg/esmutils"
)

// LivePowerReadingFromNet stores a signed net reading by direction.
func LivePowerReadingFromNet(watt int32, timestamp int64) *MeterDbLivePowerReading {
	consumption, production := esmutils.SplitNetPower(watt)
	if production > 0 {
		return &MeterDbLivePowerReading{Timestamp: timestamp, Watt: production, ReadingType: PowerProduction}
	}
	return &MeterDbLivePowerReading{Timestamp: timestamp, Watt: consumption, ReadingType: PowerConsumption}
}

func (s *Store) InsertLivePowerReading(reading *MeterDbLivePowerReading) error {
	_, err := s.db.Exec(
		"INSERT INTO live_power_readings (timestamp, watt, reading_type) "+
			"VALUES (?, ?, ?)",
		reading.Timestamp,
		reading.Watt,
		reading.ReadingType,
	)
	return err
}

// LatestLivePowerReading returns nil when nothing was stored yet.
func (s *Store) LatestLivePowerReading() (*MeterDbLivePowerReading, error) {
	var reading MeterDbLivePowerReading
	err := s.db.QueryRow(
		"SELECT timestamp, watt, reading_type FROM live_power_readings "+
			"ORDER BY timestamp DESC, rowid DESC LIMIT 1",
	).Scan(&reading.Timestamp, &reading.Watt, &reading.ReadingType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

func (s *Store) GetAggregateLivePowerHourly(hourStart int64) (*AggregateLivePowerHourly, error) {
	return s.getAggregate("aggregate_live_power_hourly", hourStart)
}

func (s *Store) GetAggregateLivePowerDaily(dayStart int64) (*AggregateLivePowerDaily, error) {
	return s.getAggregate("aggregate_live_power_daily", dayStart)
}

func (s *Store) getAggregate(table string, start int64) (*AggregateLivePowerTable, error) {
	var agg AggregateLivePowerTable
	err := s.db.QueryRow(
		"SELECT start_time, consumption_wh, production_wh, sample_count FROM "+table+
			" WHERE start_time = ?",
		start,
	).Scan(&agg.StartTime, &agg.ConsumptionWh, &agg.ProductionWh, &agg.SampleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agg, nil
}
