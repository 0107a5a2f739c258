// Package attempts counts failed logins per key (normally the client IP)
// inside a sliding window. Every failure pushes the window's end out again,
// so a key only clears after a full window without failures.
package attempts

import (
	"context"
	"errors"
	"time"
)

// DefaultWindow is how long a key keeps its count after its last failure.
const DefaultWindow = 15 * time.Minute

// ErrUnavailable wraps backend failures.
var ErrUnavailable = errors.New("attempts: backend unavailable")

// Tracker is safe for concurrent use. Increments are atomic per key.
type Tracker interface {
	// Count returns the failures recorded for key, zero when absent or expired.
	Count(ctx context.Context, key string) (int, error)

	// TrackFailedAttempt increments key, restarts its window and returns the
	// new count.
	TrackFailedAttempt(ctx context.Context, key string) (int, error)

	// Reset forgets key.
	Reset(ctx context.Context, key string) error
}

// Pinger is implemented by trackers whose backend can be health checked.
type Pinger interface {
	Ping(ctx context.Context) error
}
