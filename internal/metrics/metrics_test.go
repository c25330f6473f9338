package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackConflictQuery(t *testing.T) {
	clearCount := conflictQueries.WithLabelValues("room", "clear")
	conflictCount := conflictQueries.WithLabelValues("room", "conflict")
	beforeClear := testutil.ToFloat64(clearCount)
	beforeConflict := testutil.ToFloat64(conflictCount)

	TrackConflictQuery("room", 0)
	TrackConflictQuery("room", 2)
	TrackConflictQuery("room", 1)

	assert.Equal(t, beforeClear+1, testutil.ToFloat64(clearCount))
	assert.Equal(t, beforeConflict+2, testutil.ToFloat64(conflictCount))
}

func TestTrackRefresh(t *testing.T) {
	counter := storeRefreshes.WithLabelValues("cache")
	before := testutil.ToFloat64(counter)

	TrackRefresh("cache", 12)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, float64(12), testutil.ToFloat64(storeEvents))

	SetStoreSize(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(storeEvents))
}

func TestTrackBackendWrite(t *testing.T) {
	failed := backendWrites.WithLabelValues("create", "error")
	before := testutil.ToFloat64(failed)

	TrackBackendWrite("create", errors.New("timeout"))

	assert.Equal(t, before+1, testutil.ToFloat64(failed))
}
