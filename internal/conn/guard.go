package conn

import (
	"context"
	"time"
)

// guard decorates a raw connection so that every data operation flows through
// a single checked path. When an operation fails with a connectivity error the
// guard reports it and returns the original error unchanged; it never retries
// and never swallows the failure. Recovery only affects future selections.
type guard struct {
	raw       Conn
	onFailure func()
}

// Guard wraps raw in a command guard. onFailure is invoked exactly once per
// guarded operation that fails with a connectivity error.
func Guard(raw Conn, onFailure func()) Conn {
	return &guard{raw: raw, onFailure: onFailure}
}

// IsGuarded reports whether c is already owned by a pool.
func IsGuarded(c Conn) bool {
	_, ok := c.(*guard)
	return ok
}

func (g *guard) observe(err error) error {
	if IsConnectivity(err) {
		g.onFailure()
	}
	return err
}

func (g *guard) Get(ctx context.Context, key string) (string, error) {
	v, err := g.raw.Get(ctx, key)
	return v, g.observe(err)
}

func (g *guard) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return g.observe(g.raw.Set(ctx, key, value, ttl))
}

func (g *guard) Incr(ctx context.Context, key string) (int64, error) {
	v, err := g.raw.Incr(ctx, key)
	return v, g.observe(err)
}

func (g *guard) ZAdd(ctx context.Context, key string, score int64, member string) error {
	return g.observe(g.raw.ZAdd(ctx, key, score, member))
}

func (g *guard) ZRevRangeByScore(ctx context.Context, key string, max, min float64) ([]ScoredMember, error) {
	members, err := g.raw.ZRevRangeByScore(ctx, key, max, min)
	return members, g.observe(err)
}

// Ping is the health probe; a failed probe is handled by the penalty box, not
// reported as a new failure.
func (g *guard) Ping(ctx context.Context) error {
	return g.raw.Ping(ctx)
}

// Do bypasses the guard. Callers issuing raw commands manage failures
// themselves.
func (g *guard) Do(ctx context.Context, args ...any) (any, error) {
	return g.raw.Do(ctx, args...)
}

func (g *guard) Close() error {
	return g.raw.Close()
}
