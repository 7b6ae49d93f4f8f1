package esmutils

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitNetPower(t *testing.T) {
	tests := []struct {
		watt        int32
		consumption uint32
		production  uint32
	}{
		{0, 0, 0},
		{735, 735, 0},
		{-1200, 0, 1200},
		{math.MinInt32, 0, 2147483648},
	}
	for _, tt := range tests {
		c, p := SplitNetPower(tt.watt)
		assert.Equal(t, tt.consumption, c, "consumption for %d", tt.watt)
		assert.Equal(t, tt.production, p, "production for %d", tt.watt)
	}
}

func TestKwConversion(t *testing.T) {
	assert.Equal(t, 0.735, WToKw(735))
}

func TestNewPowerReading(t *testing.T) {
	at := time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC)
	r := NewPowerReading(-450, at)
	assert.Equal(t, "2026-10-18T12:30:00Z", r.Timestamp)
	assert.Equal(t, int32(-450), r.Watt)
	assert.Equal(t, 0.0, r.CurrentConsumptionKW)
	assert.Equal(t, 0.45, r.CurrentProductionKW)
}
