package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("*/5 * * * *"))
	assert.NoError(t, Validate("@every 10m"))
	assert.Error(t, Validate("not-a-cron"))
	assert.Error(t, Validate("* * *"))
}

func TestStartRejectsBadInput(t *testing.T) {
	_, err := Start(context.Background(), "nope", time.UTC, func(context.Context) {})
	assert.Error(t, err)

	_, err = Start(context.Background(), "@every 1m", time.UTC, nil)
	assert.Error(t, err)
}

func TestStartRunsJobAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	r, err := Start(ctx, "@every 1s", time.UTC, func(jobCtx context.Context) {
		assert.NotNil(t, jobCtx)
		runs.Add(1)
	})
	require.NoError(t, err)
	assert.False(t, r.Next().IsZero())

	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
