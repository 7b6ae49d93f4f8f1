package metrics

import (
	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/sirupsen/logrus"
)

// Gauge name the existing dashboards query.
const StatsdPowerMetric = "power"

type gaugeClient interface {
	Gauge(name string, value float64, tags []string, rate float64) error
}

// StatsdSink sends each reading as a DogStatsD gauge.
type StatsdSink struct {
	client gaugeClient
	log    logrus.FieldLogger
}

func NewStatsdSink(address string, log logrus.FieldLogger) (*StatsdSink, *statsd.Client, error) {
	client, err := statsd.New(address)
	if err != nil {
		return nil, nil, err
	}
	return &StatsdSink{client: client, log: log}, client, nil
}

func (s *StatsdSink) RecordPower(watt int32) {
	if err := s.client.Gauge(StatsdPowerMetric, float64(watt), nil, 1); err != nil {
		s.log.WithError(err).Warn("statsd gauge failed")
	}
}
