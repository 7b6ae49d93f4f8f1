package meterdb

type MeterDbPowerReadingType uint8

const (
	PowerConsumption MeterDbPowerReadingType = 0
	PowerProduction  MeterDbPowerReadingType = 1
)

type MeterDbLivePowerReading struct {
	Timestamp   int64                   `db:"timestamp"`
	Watt        uint32                  `db:"watt"`
	ReadingType MeterDbPowerReadingType `db:"reading_type"`
}

// Aggregate models - average power over a timeframe, expressed as energy
type AggregateLivePowerTable struct {
	StartTime     int64  `db:"start_time"`
	ConsumptionWh uint32 `db:"consumption_wh"`
	ProductionWh  uint32 `db:"production_wh"`
	SampleCount   uint32 `db:"sample_count"`
}

type AggregateLivePowerHourly = AggregateLivePowerTable
type AggregateLivePowerDaily = AggregateLivePowerTable
