package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable reports that Redis did not answer the connect-time ping.
var ErrUnavailable = errors.New("platform/cache: redis unavailable")

const pingTimeout = 5 * time.Second

// New dials Redis at addr and checks it with a ping. When the ping fails the
// client is closed and the returned error wraps ErrUnavailable; callers then
// hand a nil client to NewVersioned and read straight from the database.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: no address configured", ErrUnavailable)
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: pingTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrUnavailable, addr, err)
	}
	return client, nil
}
