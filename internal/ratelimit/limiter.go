// Package ratelimit counts requests per caller in fixed windows stored in
// Redis so that every replica shares one quota.
package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow bumps the window counter, arming its expiry on first use, and
// returns the new count.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	Limit   int
	// Remaining is the quota left in the window after this call.
	Remaining int
	// Reset is the time until the window rolls over.
	Reset time.Duration
	// Err is set when Redis could not be consulted. The call is denied.
	Err error
}

// Limiter allows Limit calls per key in each Window.
type Limiter struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// New builds a limiter on a shared Redis client.
func New(client redis.Scripter, prefix string, limit int, window time.Duration) (*Limiter, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client required")
	}
	if limit <= 0 || window < time.Millisecond {
		return nil, errors.New("ratelimit: limit and window must be positive")
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "ratelimit"
	}
	return &Limiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}, nil
}

// Allow counts one call for key.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}
	windowMs := l.window.Milliseconds()
	nowMs := l.now().UnixMilli()
	slot := nowMs / windowMs
	d := Decision{
		Limit: l.limit,
		Reset: time.Duration((slot+1)*windowMs-nowMs) * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	redisKey := l.prefix + ":" + key + ":" + strconv.FormatInt(slot, 10)
	n, err := incrWindow.Run(ctx, l.client, []string{redisKey}, windowMs).Int()
	if err != nil {
		d.Err = err
		return d
	}
	d.Allowed = n <= l.limit
	d.Remaining = max(l.limit-n, 0)
	return d
}
