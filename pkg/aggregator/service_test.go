package aggregator

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/NotCoffee418/broute_smart_meter/pkg/meterdb"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *meterdb.Store {
	t.Helper()
	store, err := meterdb.Open(filepath.Join(t.TempDir(), "meter.db"))
	require.NoError(t, err)
	require.NoError(t, store.ApplySchema())
	t.Cleanup(func() { store.Close() })
	return store
}

func insert(t *testing.T, store *meterdb.Store, ts time.Time, watt int32) {
	t.Helper()
	require.NoError(t, store.InsertLivePowerReading(meterdb.LivePowerReadingFromNet(watt, ts.Unix())))
}

func TestRounding(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC).Unix(), roundToHourStart(ts))
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC).Unix(), roundToDayStart(ts))
}

func TestTimeframe(t *testing.T) {
	assert.Equal(t, "hourly", Hourly.String())
	assert.Equal(t, "daily", Daily.String())
	assert.Equal(t, time.Hour, Hourly.duration())
	assert.Equal(t, 24*time.Hour, Daily.duration())
}

func TestAggregateAndCleanupHourly(t *testing.T) {
	store := newTestStore(t)
	log, _ := test.NewNullLogger()

	hour := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	insert(t, store, hour.Add(1*time.Minute), 1000)
	insert(t, store, hour.Add(2*time.Minute), 600)
	insert(t, store, hour.Add(3*time.Minute), -400)
	insert(t, store, hour.Add(4*time.Minute), 0)
	// Outside of the hour
	insert(t, store, hour.Add(time.Hour), 9000)

	require.NoError(t, AggregateAndCleanup(store, hour.Add(90*time.Minute), log))

	agg, err := store.GetAggregateLivePowerHourly(hour.Unix())
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, uint32(400), agg.ConsumptionWh)
	assert.Equal(t, uint32(100), agg.ProductionWh)
	assert.Equal(t, uint32(4), agg.SampleCount)

	daily, err := store.GetAggregateLivePowerDaily(roundToDayStart(hour))
	require.NoError(t, err)
	assert.Nil(t, daily)
}

func TestAggregateAndCleanupDailyAtMidnight(t *testing.T) {
	store := newTestStore(t)
	log, _ := test.NewNullLogger()

	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	insert(t, store, day.Add(6*time.Hour), 500)
	insert(t, store, day.Add(18*time.Hour), 1500)

	require.NoError(t, AggregateAndCleanup(store, day.AddDate(0, 0, 1).Add(5*time.Minute), log))

	agg, err := store.GetAggregateLivePowerDaily(day.Unix())
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, uint32(24000), agg.ConsumptionWh)
	assert.Equal(t, uint32(0), agg.ProductionWh)
	assert.Equal(t, uint32(2), agg.SampleCount)
}

func TestAggregateEmptyHourStoresNothing(t *testing.T) {
	store := newTestStore(t)
	log, _ := test.NewNullLogger()

	now := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	require.NoError(t, AggregateAndCleanup(store, now, log))

	agg, err := store.GetAggregateLivePowerHourly(roundToHourStart(now.Add(-time.Hour)))
	require.NoError(t, err)
	assert.Nil(t, agg)
}

func countLive(t *testing.T, store *meterdb.Store) int {
	var n int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM live_power_readings").Scan(&n))
	return n
}

func TestCleanupWaitsForAggregates(t *testing.T) {
	store := newTestStore(t)
	log, _ := test.NewNullLogger()

	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	insert(t, store, now.AddDate(0, -4, 0), 300)

	// No aggregates at all, nothing is removed
	require.NoError(t, cleanupOldData(store, now, log))
	assert.Equal(t, 1, countLive(t, store))

	// Aggregating the previous hour catches up, old rows go
	insert(t, store, now.Add(-time.Hour), 200)
	require.NoError(t, AggregateAndCleanup(store, now, log))
	assert.Equal(t, 1, countLive(t, store))

	latest, err := store.LatestLivePowerReading()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, now.Add(-time.Hour).Unix(), latest.Timestamp)
}
