package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusSink exposes the latest reading as a gauge on its own registry.
type PrometheusSink struct {
	registry *prometheus.Registry

	Power    prometheus.Gauge
	Readings prometheus.Counter
}

func NewPrometheusSink() *PrometheusSink {
	s := &PrometheusSink{
		registry: prometheus.NewRegistry(),
		Power: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "broute_power_watts",
			Help: "Instantaneous power reported by the smart meter, negative when exporting.",
		}),
		Readings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "broute_readings_total",
			Help: "Number of current power readings received.",
		}),
	}
	s.registry.MustRegister(
		s.Power,
		s.Readings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

func (s *PrometheusSink) RecordPower(watt int32) {
	s.Power.Set(float64(watt))
	s.Readings.Inc()
}

// Handler serves the registry for /metrics.
func (s *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
