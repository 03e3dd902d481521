package conn

import (
	"context"
	"time"
)

// ScoredMember is one element of a scored set together with its integer score.
type ScoredMember struct {
	Member string `json:"member"`
	Score  int64  `json:"score"`
}

// Conn is the capability surface of a single backend connection. The pool
// treats it as opaque: it only needs to invoke operations and observe whether
// they failed because the backend is unreachable.
//
// Data operations are routed through the command guard once the connection is
// owned by a pool. Administrative operations are deliberately left unguarded:
// Ping is the health probe itself, and Do is the raw command escape hatch that
// every data operation bottoms out in, so neither provides an independent
// signal worth reporting.
type Conn interface {
	// Data operations.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	ZAdd(ctx context.Context, key string, score int64, member string) error
	ZRevRangeByScore(ctx context.Context, key string, max, min float64) ([]ScoredMember, error)

	// Administrative operations.
	Ping(ctx context.Context) error
	Do(ctx context.Context, args ...any) (any, error)

	Close() error
}
