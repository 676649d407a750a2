package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/seatlens/seatlens/pkg/analytics"
	"github.com/seatlens/seatlens/pkg/observability"
)

// KeyPrefix namespaces every snapshot key
const KeyPrefix = "seatlens:summary:"

// ErrNoSnapshot is returned when no snapshot exists for a window
var ErrNoSnapshot = errors.New("no snapshot for window")

// Snapshot is a stored usage summary for one activity window
type Snapshot struct {
	Days        int                     `json:"days"`
	GeneratedAt time.Time               `json:"generatedAt"`
	Partial     bool                    `json:"partial"`
	Summary     analytics.SummaryReport `json:"summary"`
}

// Connect opens a redis client from a URL and checks it answers
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Store keeps the latest summary per window in redis
type Store struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewStore creates a snapshot store. A zero ttl keeps snapshots until they
// are overwritten.
func NewStore(client *redis.Client, ttl time.Duration, metrics *observability.Metrics) *Store {
	return &Store{
		client:  client,
		ttl:     ttl,
		metrics: metrics,
	}
}

// Key returns the redis key for a window
func Key(days int) string {
	return fmt.Sprintf("%s%d", KeyPrefix, days)
}

// Save replaces the snapshot for s.Days
func (st *Store) Save(ctx context.Context, s *Snapshot) (err error) {
	start := time.Now()
	defer func() { st.observe("set", start, err) }()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := st.client.Set(ctx, Key(s.Days), data, st.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Latest returns the stored snapshot for a window or ErrNoSnapshot
func (st *Store) Latest(ctx context.Context, days int) (_ *Snapshot, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrNoSnapshot) {
			st.observe("get", start, nil)
			return
		}
		st.observe("get", start, err)
	}()

	key := Key(days)
	data, err := st.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%d days: %w", days, ErrNoSnapshot)
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		// Corrupt entries are dropped so the next publish starts clean
		st.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// Ping checks redis connectivity
func (st *Store) Ping(ctx context.Context) error {
	return st.client.Ping(ctx).Err()
}

func (st *Store) observe(command string, start time.Time, err error) {
	if st.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	st.metrics.RedisCommandsTotal.WithLabelValues(command, status).Inc()
	st.metrics.RedisCommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}
