package penaltybox

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default backoff parameters, matching the pool's construction defaults.
const (
	DefaultMinWait    = 10 * time.Second
	DefaultMaxWait    = 300 * time.Second
	DefaultMultiplier = 1.5
)

// Node is the penalty box's view of a pool member: a stable identity plus the
// health probe.
type Node interface {
	ID() int
	Ping(ctx context.Context) error
}

// Options configure the backoff schedule. MinWait is the initial penalty
// duration, MaxWait the backoff ceiling, and Multiplier the growth factor
// applied after each failed probe.
type Options struct {
	MinWait    time.Duration
	MaxWait    time.Duration
	Multiplier float64
}

type entry struct {
	release time.Time
	wait    time.Duration
	node    Node
}

// entryHeap orders entries by release time so the earliest-due entry is
// always checked first.
type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].release.Before(h[j].release) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)         { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Box holds nodes that failed and schedules their re-probing with exponential
// backoff. Probing is lazy: nothing happens until Poll is called, and only
// entries whose release time has passed are probed.
type Box struct {
	entries entryHeap
	members map[int]struct{}
	opts    Options
	logger  *slog.Logger
}

// New creates a penalty box. Zero option fields fall back to the defaults.
func New(opts Options, logger *slog.Logger) (*Box, error) {
	if opts.MinWait == 0 {
		opts.MinWait = DefaultMinWait
	}
	if opts.MaxWait == 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.Multiplier == 0 {
		opts.Multiplier = DefaultMultiplier
	}

	if opts.Multiplier <= 1 {
		return nil, fmt.Errorf("penaltybox: multiplier must be > 1, got %v", opts.Multiplier)
	}
	if opts.MinWait > opts.MaxWait {
		return nil, fmt.Errorf("penaltybox: min wait %v exceeds max wait %v", opts.MinWait, opts.MaxWait)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Box{
		members: make(map[int]struct{}),
		opts:    opts,
		logger:  logger,
	}, nil
}

// Add inserts a node with a release time of now + MinWait. Adding a node that
// is already present is a logged no-op: a node cannot be penalized twice.
func (b *Box) Add(n Node) {
	if _, ok := b.members[n.ID()]; ok {
		b.logger.Info("node is already in the penalty box, ignoring",
			slog.Int("node", n.ID()))
		return
	}

	heap.Push(&b.entries, &entry{
		release: time.Now().Add(b.opts.MinWait),
		wait:    b.opts.MinWait,
		node:    n,
	})
	b.members[n.ID()] = struct{}{}
}

// Poll probes every due entry and returns the nodes whose probe succeeded.
// A node that fails its probe is re-scheduled with wait = min(wait *
// Multiplier, MaxWait); the failure is never surfaced, only logged. Entries
// not yet due are left untouched, so the scan stops at the first entry whose
// release time has not passed.
func (b *Box) Poll(ctx context.Context) []Node {
	var recovered []Node

	for len(b.entries) > 0 && b.entries[0].release.Before(time.Now()) {
		e := heap.Pop(&b.entries).(*entry)

		probeStart := time.Now()
		if err := e.node.Ping(ctx); err != nil {
			wait := time.Duration(float64(e.wait) * b.opts.Multiplier)
			if wait > b.opts.MaxWait {
				wait = b.opts.MaxWait
			}
			e.wait = wait
			e.release = time.Now().Add(wait)
			heap.Push(&b.entries, e)

			b.logger.Info("node is still down, rescheduling probe",
				slog.Int("node", e.node.ID()),
				slog.Duration("probe_took", time.Since(probeStart)),
				slog.Duration("retry_in", wait),
				slog.String("error", err.Error()))
			continue
		}

		delete(b.members, e.node.ID())
		recovered = append(recovered, e.node)
	}

	return recovered
}

// Contains reports whether the node with the given id is currently penalized.
func (b *Box) Contains(id int) bool {
	_, ok := b.members[id]
	return ok
}

// Len returns the number of penalized nodes.
func (b *Box) Len() int {
	return len(b.entries)
}
