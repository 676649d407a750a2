package async

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatlens/seatlens/pkg/observability"
)

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
}

func TestSafeGo_Success(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)
	executed := atomic.Bool{}

	waitDone(t, SafeGo(context.Background(), logger, time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	}))

	assert.True(t, executed.Load())
	assert.Empty(t, buf.String())
}

func TestSafeGo_LogsError(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	waitDone(t, SafeGo(context.Background(), logger, time.Second, "snapshot", func(ctx context.Context) error {
		return errors.New("redis down")
	}))

	assert.Contains(t, buf.String(), "Background task failed")
	assert.Contains(t, buf.String(), "redis down")
	assert.Contains(t, buf.String(), "snapshot")
}

func TestSafeGo_Timeout(t *testing.T) {
	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})
	var got error

	waitDone(t, SafeGo(context.Background(), logger, 20*time.Millisecond, "slow task", func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	}))

	require.Error(t, got)
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestSafeGo_ParentCanceled(t *testing.T) {
	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var got error

	waitDone(t, SafeGo(ctx, logger, time.Minute, "canceled task", func(ctx context.Context) error {
		got = ctx.Err()
		return nil
	}))

	assert.ErrorIs(t, got, context.Canceled)
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	waitDone(t, SafeGo(context.Background(), logger, time.Second, "panicky task", func(ctx context.Context) error {
		panic("boom")
	}))

	assert.Contains(t, buf.String(), "PANIC recovered")
	assert.Contains(t, buf.String(), "boom")
}
