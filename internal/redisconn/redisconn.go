package redisconn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shardpool/shardpool/internal/conn"
)

// Conn adapts a go-redis client to the pool's connection interface.
type Conn struct {
	client *redis.Client
}

func New(client *redis.Client) *Conn {
	return &Conn{client: client}
}

// Dial creates a connection to the given host:port address with the client's
// default timeouts. go-redis dials lazily, so an unreachable backend is only
// noticed on first use.
func Dial(addr string) *Conn {
	return New(redis.NewClient(&redis.Options{Addr: addr}))
}

func (c *Conn) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, key).Result()
	return v, c.wrap("get", err)
}

func (c *Conn) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.wrap("set", c.client.Set(ctx, key, value, ttl).Err())
}

func (c *Conn) Incr(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Incr(ctx, key).Result()
	return v, c.wrap("incr", err)
}

func (c *Conn) ZAdd(ctx context.Context, key string, score int64, member string) error {
	err := c.client.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member}).Err()
	return c.wrap("zadd", err)
}

func (c *Conn) ZRevRangeByScore(ctx context.Context, key string, max, min float64) ([]conn.ScoredMember, error) {
	zs, err := c.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Max: formatBound(max),
		Min: formatBound(min),
	}).Result()
	if err != nil {
		return nil, c.wrap("zrevrangebyscore", err)
	}

	members := make([]conn.ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("redisconn: unexpected member type %T", z.Member)
		}
		members = append(members, conn.ScoredMember{
			Member: member,
			Score:  int64(z.Score),
		})
	}
	return members, nil
}

func (c *Conn) Ping(ctx context.Context) error {
	return c.wrap("ping", c.client.Ping(ctx).Err())
}

func (c *Conn) Do(ctx context.Context, args ...any) (any, error) {
	v, err := c.client.Do(ctx, args...).Result()
	return v, c.wrap("do", err)
}

func (c *Conn) Close() error {
	return c.client.Close()
}

// wrap translates go-redis errors into the pool's taxonomy: redis.Nil becomes
// ErrNotFound, a closed client becomes a connectivity error. Network errors
// already satisfy net.Error and need no translation.
func (c *Conn) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return conn.ErrNotFound
	}
	if errors.Is(err, redis.ErrClosed) {
		return &conn.ConnError{Op: op, Err: err}
	}
	return err
}

func formatBound(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}
