package snapshot

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seatlens/seatlens/pkg/analytics"
	"github.com/seatlens/seatlens/pkg/observability"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// setupStore starts miniredis and returns a store over it
func setupStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis, *observability.Metrics) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewStore(client, ttl, metrics), mr, metrics
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "invalid://url")
	assert.ErrorContains(t, err, "invalid redis URL")
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), "redis://"+addr)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestStore_SaveAndLatest(t *testing.T) {
	store, mr, metrics := setupStore(t, time.Hour)
	ctx := context.Background()

	want := &Snapshot{
		Days:        30,
		GeneratedAt: fixedNow,
		Partial:     true,
		Summary: analytics.SummaryReport{
			ReportGeneratedAt:   fixedNow,
			TotalUsers:          4,
			ActiveUsers:         3,
			InactiveUsers:       1,
			TotalCopilotActions: 120,
		},
	}
	require.NoError(t, store.Save(ctx, want))

	assert.True(t, mr.Exists("seatlens:summary:30"))
	assert.Equal(t, time.Hour, mr.TTL("seatlens:summary:30"))

	got, err := store.Latest(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, want.Days, got.Days)
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
	assert.True(t, got.Partial)
	assert.Equal(t, 120, got.Summary.TotalCopilotActions)
	assert.Equal(t, 3, got.Summary.ActiveUsers)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RedisCommandsTotal.WithLabelValues("set", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RedisCommandsTotal.WithLabelValues("get", "success")))
}

func TestStore_SnapshotExpires(t *testing.T) {
	store, mr, _ := setupStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Snapshot{Days: 7, GeneratedAt: fixedNow}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Latest(ctx, 7)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestStore_LatestMissing(t *testing.T) {
	store, _, metrics := setupStore(t, 0)

	_, err := store.Latest(context.Background(), 90)

	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RedisCommandsTotal.WithLabelValues("get", "error")))
}

func TestStore_CorruptEntryIsDropped(t *testing.T) {
	store, mr, _ := setupStore(t, 0)
	require.NoError(t, mr.Set(Key(30), "{not json"))

	_, err := store.Latest(context.Background(), 30)

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoSnapshot))
	assert.False(t, mr.Exists(Key(30)))
}

func TestStore_RedisDown(t *testing.T) {
	store, mr, metrics := setupStore(t, 0)
	mr.Close()

	err := store.Save(context.Background(), &Snapshot{Days: 30})
	assert.ErrorContains(t, err, "redis set failed")
	assert.Error(t, store.Ping(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RedisCommandsTotal.WithLabelValues("set", "error")))
}

type stubSource struct {
	reports map[int]analytics.SummaryReport
	err     error
	calls   []int
}

func (s *stubSource) GetUsageSummary(ctx context.Context, days int) (*analytics.Result[analytics.SummaryReport], error) {
	s.calls = append(s.calls, days)
	if s.err != nil {
		return nil, s.err
	}
	report, ok := s.reports[days]
	if !ok {
		return nil, errors.New("no report")
	}
	return &analytics.Result[analytics.SummaryReport]{Data: report, GeneratedAt: fixedNow}, nil
}

func TestPublisher_PublishAll(t *testing.T) {
	store, _, metrics := setupStore(t, time.Hour)
	source := &stubSource{reports: map[int]analytics.SummaryReport{
		7:  {TotalUsers: 10, ActiveUsers: 4, TotalCopilotActions: 90},
		30: {TotalUsers: 10, ActiveUsers: 7, TotalCopilotActions: 210},
	}}
	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
	pub := NewPublisher(source, store, logger, metrics)
	ctx := context.Background()

	err := pub.PublishAll(ctx, []int{7, 30, 90})

	require.Error(t, err, "window 90 has no report")
	assert.Equal(t, []int{7, 30, 90}, source.calls)

	s, err := store.Latest(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 210, s.Summary.TotalCopilotActions)
	_, err = store.Latest(ctx, 90)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.ActiveUsers.WithLabelValues("7")))
	assert.Equal(t, 210.0, testutil.ToFloat64(metrics.TotalActions.WithLabelValues("30")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SnapshotPublishTotal.WithLabelValues("30", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SnapshotPublishTotal.WithLabelValues("90", "error")))
}

func TestPublisher_StopsWhenCanceled(t *testing.T) {
	store, _, _ := setupStore(t, time.Hour)
	source := &stubSource{reports: map[int]analytics.SummaryReport{7: {}}}
	pub := NewPublisher(source, store, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.PublishAll(ctx, []int{7, 30})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, source.calls)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "seatlens:summary:30", Key(30))
}
