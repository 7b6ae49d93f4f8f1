package aggregator

import "time"

type Timeframe uint8

const (
	Hourly Timeframe = iota
	Daily
)

// Raw readings older than this are removed once aggregated.
const RawRetentionMonths = 3

func (t Timeframe) String() string {
	switch t {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	default:
		return "unknown"
	}
}

func (t Timeframe) table() string {
	if t == Daily {
		return "aggregate_live_power_daily"
	}
	return "aggregate_live_power_hourly"
}

func (t Timeframe) duration() time.Duration {
	if t == Daily {
		return 24 * time.Hour
	}
	return time.Hour
}
