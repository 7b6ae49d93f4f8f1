package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	got []int32
}

func (r *recordingSink) RecordPower(watt int32) {
	r.got = append(r.got, watt)
}

type gaugeCall struct {
	name  string
	value float64
}

type fakeGaugeClient struct {
	calls []gaugeCall
}

func (f *fakeGaugeClient) Gauge(name string, value float64, tags []string, rate float64) error {
	f.calls = append(f.calls, gaugeCall{name, value})
	return nil
}

func TestFanoutForwardsToAllSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	sink := Fanout{a, b}
	sink.RecordPower(735)
	sink.RecordPower(-20)

	assert.Equal(t, []int32{735, -20}, a.got)
	assert.Equal(t, []int32{735, -20}, b.got)
}

func TestPrometheusSink(t *testing.T) {
	s := NewPrometheusSink()
	s.RecordPower(735)
	s.RecordPower(-312)

	assert.Equal(t, float64(-312), testutil.ToFloat64(s.Power))
	assert.Equal(t, float64(2), testutil.ToFloat64(s.Readings))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "broute_power_watts -312"))
}

func TestStatsdSink(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client := &fakeGaugeClient{}
	s := &StatsdSink{client: client, log: logger}

	s.RecordPower(735)
	assert.Equal(t, []gaugeCall{{"power", 735}}, client.calls)
}
