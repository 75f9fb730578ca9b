package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rwa_oracle/pkg/data"
)

func newTestLedger(t *testing.T, maxAge time.Duration) *Ledger {
	t.Helper()
	ledger, err := NewLedger(maxAge, zap.NewNop())
	require.NoError(t, err)
	return ledger
}

func TestNewLedgerConfig(t *testing.T) {
	_, err := NewLedger(0, zap.NewNop())
	assert.ErrorIs(t, err, data.ErrInvalidInput)
}

func TestPublish(t *testing.T) {
	ledger := newTestLedger(t, time.Hour)

	record, err := ledger.Publish("pool-1", 100, "oracle-1")
	require.NoError(t, err)
	assert.Equal(t, data.DefaultConfidence, record.Confidence)
	assert.Equal(t, data.DefaultValuationSource, record.Source)
	assert.True(t, record.Active)

	_, err = ledger.Publish("pool-1", 0, "oracle-1")
	assert.ErrorIs(t, err, data.ErrInvalidInput)

	_, err = ledger.Publish("", 100, "oracle-1")
	assert.ErrorIs(t, err, data.ErrInvalidInput)

	_, err = ledger.Publish("pool-1", 100, "")
	assert.ErrorIs(t, err, data.ErrInvalidInput)
}

func TestCurrent(t *testing.T) {
	ledger := newTestLedger(t, time.Hour)

	// Never-published pool yields the zero value
	assert.Zero(t, ledger.Current("pool-1").Value)
	assert.True(t, ledger.Current("pool-1").Timestamp.IsZero())

	_, err := ledger.Publish("pool-1", 100, "oracle-1")
	require.NoError(t, err)
	_, err = ledger.Publish("pool-1", 110, "oracle-2")
	require.NoError(t, err)

	current := ledger.Current("pool-1")
	assert.Equal(t, 110.0, current.Value)
	assert.Equal(t, "oracle-2", current.Oracle)

	history := ledger.History("pool-1")
	require.Len(t, history, 2)
	assert.Equal(t, 100.0, history[0].Value)
	assert.Equal(t, 110.0, history[1].Value)
}

func TestHistorical(t *testing.T) {
	ledger := newTestLedger(t, time.Hour)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Empty history returns 0 for any query timestamp
	assert.Zero(t, ledger.Historical("pool-1", base))

	ledger.now = func() time.Time { return base }
	_, err := ledger.Publish("pool-1", 100, "oracle-1")
	require.NoError(t, err)

	// A single active record answers every query
	assert.Equal(t, 100.0, ledger.Historical("pool-1", base.Add(-24*time.Hour)))
	assert.Equal(t, 100.0, ledger.Historical("pool-1", base.Add(24*time.Hour)))

	ledger.now = func() time.Time { return base.Add(10 * time.Minute) }
	_, err = ledger.Publish("pool-1", 110, "oracle-1")
	require.NoError(t, err)

	assert.Equal(t, 100.0, ledger.Historical("pool-1", base.Add(time.Minute)))
	assert.Equal(t, 110.0, ledger.Historical("pool-1", base.Add(9*time.Minute)))

	// Equidistant query: the record appended first wins
	assert.Equal(t, 100.0, ledger.Historical("pool-1", base.Add(5*time.Minute)))
}

func TestHistoricalSkipsInactive(t *testing.T) {
	ledger := newTestLedger(t, time.Hour)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	ledger.now = func() time.Time { return base }
	_, err := ledger.Publish("pool-1", 100, "oracle-1")
	require.NoError(t, err)

	ledger.mu.Lock()
	ledger.history["pool-1"][0].Active = false
	ledger.mu.Unlock()

	assert.Zero(t, ledger.Historical("pool-1", base))
}

func TestIsFresh(t *testing.T) {
	ledger := newTestLedger(t, time.Hour)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Never published means never fresh
	assert.False(t, ledger.IsFresh("pool-1"))

	ledger.now = func() time.Time { return base }
	_, err := ledger.Publish("pool-1", 100, "oracle-1")
	require.NoError(t, err)

	assert.True(t, ledger.IsFresh("pool-1"))

	// Exactly at the age boundary is still fresh
	ledger.now = func() time.Time { return base.Add(time.Hour) }
	assert.True(t, ledger.IsFresh("pool-1"))

	// Past the boundary is stale
	ledger.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	assert.False(t, ledger.IsFresh("pool-1"))

	// Publishing again resets freshness and the current slot
	_, err = ledger.Publish("pool-1", 110, "oracle-1")
	require.NoError(t, err)
	assert.True(t, ledger.IsFresh("pool-1"))
	assert.Equal(t, 110.0, ledger.Current("pool-1").Value)
}

func TestOutOfOrderPublishAccepted(t *testing.T) {
	ledger := newTestLedger(t, time.Hour)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	ledger.now = func() time.Time { return base.Add(time.Minute) }
	_, err := ledger.Publish("pool-1", 100, "oracle-1")
	require.NoError(t, err)

	// An earlier-stamped publication still overwrites the current slot
	ledger.now = func() time.Time { return base }
	_, err = ledger.Publish("pool-1", 90, "oracle-2")
	require.NoError(t, err)

	assert.Equal(t, 90.0, ledger.Current("pool-1").Value)
	assert.Len(t, ledger.History("pool-1"), 2)
}

func TestPoolsAndStats(t *testing.T) {
	ledger := newTestLedger(t, time.Hour)

	_, err := ledger.Publish("pool-1", 100, "oracle-1")
	require.NoError(t, err)
	_, err = ledger.Publish("pool-1", 110, "oracle-1")
	require.NoError(t, err)
	_, err = ledger.Publish("pool-2", 50, "oracle-1")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"pool-1", "pool-2"}, ledger.Pools())

	stats := ledger.GetStats()
	assert.Equal(t, 2, stats.Pools)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, int64(3), stats.Published)
}

func TestSetMaxAge(t *testing.T) {
	ledger := newTestLedger(t, time.Hour)

	assert.ErrorIs(t, ledger.SetMaxAge(0), data.ErrInvalidInput)

	require.NoError(t, ledger.SetMaxAge(2*time.Hour))
	assert.Equal(t, 2*time.Hour, ledger.MaxAge())
}
