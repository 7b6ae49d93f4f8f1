package types

import (
	"encoding/json"
	"time"
)

type PowerReading struct {
	Timestamp string `json:"timestamp"`

	// Net power at the meter, negative while exporting
	Watt int32 `json:"watt"`

	// Net power split by direction
	CurrentConsumptionKW float64 `json:"current_consumption_kw"`
	CurrentProductionKW  float64 `json:"current_production_kw"`
}

func (r *PowerReading) ToJsonBytes() []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return b
}

// Returns nil when the message is not a power reading.
func PowerReadingFromJsonBytes(data []byte) *PowerReading {
	var reading PowerReading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil
	}
	if reading.Timestamp == "" {
		return nil
	}
	return &reading
}

func (r *PowerReading) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Timestamp)
}
