package attempts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces tracker keys in a shared Redis.
const KeyPrefix = "login_attempts:"

// Redis is a Tracker shared by every replica pointing at the same server.
type Redis struct {
	client redis.UniversalClient
	window time.Duration
}

var _ Tracker = (*Redis)(nil)

// NewRedis returns a tracker backed by client. A non-positive window uses
// DefaultWindow.
func NewRedis(client redis.UniversalClient, window time.Duration) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{client: client, window: window}
}

func (r *Redis) Count(ctx context.Context, key string) (int, error) {
	n, err := r.client.Get(ctx, KeyPrefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return max(n, 0), nil
}

func (r *Redis) TrackFailedAttempt(ctx context.Context, key string) (int, error) {
	var incr *redis.IntCmd

	// INCR and PEXPIRE run as one MULTI so the window always slides with
	// the count.
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, KeyPrefix+key)
		pipe.PExpire(ctx, KeyPrefix+key, r.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(incr.Val()), nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, KeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping checks the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
