package esmutils

import (
	"time"

	"github.com/NotCoffee418/broute_smart_meter/pkg/types"
)

func WToKw(w uint32) float64 {
	return float64(w) / 1000
}

// SplitNetPower turns a signed net reading into consumption and production.
// At most one of the two is non-zero.
func SplitNetPower(watt int32) (consumption uint32, production uint32) {
	if watt < 0 {
		return 0, uint32(-int64(watt))
	}
	return uint32(watt), 0
}

// NewPowerReading builds the broadcast message for a reading taken at t.
func NewPowerReading(watt int32, t time.Time) *types.PowerReading {
	consumption, production := SplitNetPower(watt)
	return &types.PowerReading{
		Timestamp:            t.UTC().Format(time.RFC3339),
		Watt:                 watt,
		CurrentConsumptionKW: WToKw(consumption),
		CurrentProductionKW:  WToKw(production),
	}
}
