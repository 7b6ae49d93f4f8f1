package metrics

// Sink receives every successfully decoded reading.
type Sink interface {
	RecordPower(watt int32)
}

// Fanout forwards a reading to every sink in order.
type Fanout []Sink

func (f Fanout) RecordPower(watt int32) {
	for _, s := range f {
		s.RecordPower(watt)
	}
}
