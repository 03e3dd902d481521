// Package conntest provides an in-memory conn.Conn for tests.
package conntest

import (
	"context"
	"time"

	"github.com/shardpool/shardpool/internal/conn"
)

// Fake is an in-memory backend whose reachability the test controls. While
// Down is set every operation fails with a connectivity error; Data and ZSets
// can be inspected or seeded directly.
type Fake struct {
	Down  bool
	Data  map[string]string
	ZSets map[string][]conn.ScoredMember
}

var _ conn.Conn = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Data:  make(map[string]string),
		ZSets: make(map[string][]conn.ScoredMember),
	}
}

func (f *Fake) unreachable(op string) error {
	return &conn.ConnError{Op: op}
}

func (f *Fake) Get(ctx context.Context, key string) (string, error) {
	if f.Down {
		return "", f.unreachable("get")
	}
	v, ok := f.Data[key]
	if !ok {
		return "", conn.ErrNotFound
	}
	return v, nil
}

func (f *Fake) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.Down {
		return f.unreachable("set")
	}
	f.Data[key] = value
	return nil
}

func (f *Fake) Incr(ctx context.Context, key string) (int64, error) {
	if f.Down {
		return 0, f.unreachable("incr")
	}
	f.Data[key] += "+"
	return int64(len(f.Data[key])), nil
}

func (f *Fake) ZAdd(ctx context.Context, key string, score int64, member string) error {
	if f.Down {
		return f.unreachable("zadd")
	}
	f.ZSets[key] = append(f.ZSets[key], conn.ScoredMember{Member: member, Score: score})
	return nil
}

func (f *Fake) ZRevRangeByScore(ctx context.Context, key string, max, min float64) ([]conn.ScoredMember, error) {
	if f.Down {
		return nil, f.unreachable("zrevrangebyscore")
	}
	var members []conn.ScoredMember
	for _, m := range f.ZSets[key] {
		if float64(m.Score) >= min && float64(m.Score) <= max {
			members = append(members, m)
		}
	}
	return members, nil
}

func (f *Fake) Ping(ctx context.Context) error {
	if f.Down {
		return f.unreachable("ping")
	}
	return nil
}

func (f *Fake) Do(ctx context.Context, args ...any) (any, error) {
	if f.Down {
		return nil, f.unreachable("do")
	}
	return "OK", nil
}

func (f *Fake) Close() error { return nil }
