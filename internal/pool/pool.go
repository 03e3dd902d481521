package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/shardpool/shardpool/internal/conn"
	"github.com/shardpool/shardpool/internal/penaltybox"
	"github.com/shardpool/shardpool/internal/status"
)

var (
	// ErrPoolExhausted is returned when every node is down.
	ErrPoolExhausted = errors.New("pool: all nodes are down")

	// ErrDuplicateRegistration is returned at construction time when a
	// connection already belongs to a pool.
	ErrDuplicateRegistration = errors.New("pool: connection already belongs to a pool")
)

// Node is one backend in the pool. Its id is its position in the initial
// connection list and never changes; nodes only ever move between the active
// set and the penalty box.
type Node struct {
	id int
	c  conn.Conn
}

// ID returns the node's stable position in the initial node list.
func (n *Node) ID() int { return n.id }

// Conn returns the guarded connection. Operations on it that fail with a
// connectivity error evict the node as a side effect; the error itself is
// still returned to the caller.
func (n *Node) Conn() conn.Conn { return n.c }

// Ping probes the backend. It bypasses the guard.
func (n *Node) Ping(ctx context.Context) error { return n.c.Ping(ctx) }

// Options configure a pool.
type Options struct {
	PenaltyBox penaltybox.Options
	Logger     *slog.Logger

	// Events, when set, receives selection/eviction/recovery events. Sends
	// are non-blocking; a full channel drops events.
	Events chan<- status.Event
}

// Pool is a self-healing pool over a fixed set of independent key-value
// backends. There is no consistent hashing and no rebalancing: when a node
// goes down its keys land elsewhere until it comes back, so the pool is only
// suitable for ephemeral, duplication-tolerant data such as caches.
//
// A pool assumes a single logical owner. It has no internal locking; callers
// that share a pool across goroutines must serialize access themselves.
type Pool struct {
	initial []*Node
	active  []*Node
	box     *penaltybox.Box

	// cursor is the global position of the unbounded traversal, shared by
	// every caller of Next.
	cursor int

	// cursors holds one traversal position per requester, created lazily and
	// never evicted. With many distinct requester identities this grows
	// without bound.
	cursors map[string]*cursor

	logger *slog.Logger
	events chan<- status.Event
}

// New builds a pool over the given connections. Each connection is wrapped in
// a command guard and assigned a pool id equal to its index; a connection
// that is already guarded belongs to another pool and is rejected. All nodes
// start active.
func New(conns []conn.Conn, opts Options) (*Pool, error) {
	if len(conns) == 0 {
		return nil, errors.New("pool: at least one connection is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	box, err := penaltybox.New(opts.PenaltyBox, logger)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		box:     box,
		cursors: make(map[string]*cursor),
		logger:  logger,
		events:  opts.Events,
	}

	seen := make(map[conn.Conn]struct{}, len(conns))
	for i, c := range conns {
		if conn.IsGuarded(c) {
			return nil, fmt.Errorf("%w: connection %d", ErrDuplicateRegistration, i)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: connection %d appears twice", ErrDuplicateRegistration, i)
		}
		seen[c] = struct{}{}
		n := &Node{id: i}
		n.c = conn.Guard(c, func() { p.ReportFailure(n) })
		p.initial = append(p.initial, n)
		p.active = append(p.active, n)
	}

	return p, nil
}

// FromAddrs builds a pool by dialing every address with the given factory.
func FromAddrs(addrs []string, dial func(addr string) conn.Conn, opts Options) (*Pool, error) {
	conns := make([]conn.Conn, 0, len(addrs))
	for _, addr := range addrs {
		conns = append(conns, dial(addr))
	}
	return New(conns, opts)
}

// SelectForKey returns the node responsible for the given shard key.
//
// The preferred node is hash(key) mod the initial node count, so assignment
// stays stable no matter which other nodes are down. Only when the preferred
// node itself is penalized does selection fall back to hash(key) mod the
// active node count. The fallback is a deliberate approximation, not
// consistent hashing: while the preferred node is down, changes in the active
// count can move unrelated keys too.
func (p *Pool) SelectForKey(ctx context.Context, shardKey []byte) (*Node, error) {
	p.refresh(ctx)

	if len(p.active) == 0 {
		return nil, ErrPoolExhausted
	}

	hashed := int64(int32(murmur3.Sum32(shardKey)))
	if n := p.initial[mod(hashed, len(p.initial))]; p.isActive(n) {
		p.emit(status.EventNodeSelected, n.ID())
		return n, nil
	}

	n := p.active[mod(hashed, len(p.active))]
	p.emit(status.EventNodeSelected, n.ID())
	return n, nil
}

// ReportFailure removes the node from the active set and hands it to the
// penalty box. Reporting a node that is not active (a racing report, or one
// already penalized) is a no-op.
func (p *Pool) ReportFailure(n *Node) {
	i := p.activeIndex(n)
	if i < 0 {
		p.logger.Info("node is not in the active list", slog.Int("node", n.ID()))
		return
	}

	p.logger.Warn("node marked down", slog.Int("node", n.ID()))
	p.active = append(p.active[:i], p.active[i+1:]...)
	p.box.Add(n)
	p.sortActive()
	p.emit(status.EventNodeDown, n.ID())
}

// Nodes returns the initial node list in pool-id order.
func (p *Pool) Nodes() []*Node {
	nodes := make([]*Node, len(p.initial))
	copy(nodes, p.initial)
	return nodes
}

// Active returns the nodes currently believed reachable, in pool-id order.
// Recovered nodes are merged in first, so the answer is never stale beyond
// this call.
func (p *Pool) Active(ctx context.Context) []*Node {
	p.refresh(ctx)
	nodes := make([]*Node, len(p.active))
	copy(nodes, p.active)
	return nodes
}

// Close closes every connection in the pool.
func (p *Pool) Close() error {
	var firstErr error
	for _, n := range p.initial {
		if err := n.c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// refresh merges nodes the penalty box has released back into the active set.
// It runs at the start of every externally visible operation, so the
// staleness window is bounded by call frequency rather than a timer.
func (p *Pool) refresh(ctx context.Context) {
	recovered := p.box.Poll(ctx)
	if len(recovered) == 0 {
		return
	}

	for _, r := range recovered {
		n := r.(*Node)
		p.logger.Info("node is back up", slog.Int("node", n.ID()))
		p.active = append(p.active, n)
		p.emit(status.EventNodeRestored, n.ID())
	}
	p.sortActive()
}

// sortActive keeps the active set ordered by pool id so the fallback hash and
// traversal order stay deterministic.
func (p *Pool) sortActive() {
	sort.Slice(p.active, func(i, j int) bool {
		return p.active[i].id < p.active[j].id
	})
}

func (p *Pool) activeIndex(n *Node) int {
	for i, a := range p.active {
		if a == n {
			return i
		}
	}
	return -1
}

func (p *Pool) isActive(n *Node) bool {
	return p.activeIndex(n) >= 0
}

func (p *Pool) emit(t status.EventType, node int) {
	if p.events == nil {
		return
	}
	select {
	case p.events <- status.Event{Type: t, Time: time.Now(), Node: node}:
	default:
	}
}

// mod reduces a signed hash into [0, n), matching Python's modulo so key
// placement agrees with the original implementation.
func mod(hashed int64, n int) int {
	m := int(hashed % int64(n))
	if m < 0 {
		m += n
	}
	return m
}
