package pool

import (
	"context"
	"iter"
)

// cursor is a position in the fixed cyclic order over the initial node list.
// Filtering to active nodes happens at traversal time; the underlying order
// never changes.
type cursor struct {
	pos int
}

// seq yields nodes from the cursor's position forever, advancing it one
// underlying step per element. The position survives early termination, so a
// later traversal resumes where the previous one stopped.
func (c *cursor) seq(nodes []*Node) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for {
			n := nodes[c.pos]
			c.pos = (c.pos + 1) % len(nodes)
			if !yield(n) {
				return
			}
		}
	}
}

func (p *Pool) cursorFor(requester string) *cursor {
	c, ok := p.cursors[requester]
	if !ok {
		c = &cursor{}
		p.cursors[requester] = c
	}
	return c
}

// Next advances the pool's global cursor to the next active node. Every
// caller of Next shares the same cursor; it is never reset, only resumed.
func (p *Pool) Next(ctx context.Context) (*Node, error) {
	p.refresh(ctx)

	if len(p.active) == 0 {
		return nil, ErrPoolExhausted
	}

	for {
		n := p.initial[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.initial)
		if p.isActive(n) {
			return n, nil
		}
	}
}

// Iter is the unbounded traversal over active nodes. All iterations share the
// pool's global cursor. When the active set is empty the iterator yields
// ErrPoolExhausted and stops; it never retries on the caller's behalf.
func (p *Pool) Iter(ctx context.Context) iter.Seq2[*Node, error] {
	return func(yield func(*Node, error) bool) {
		for {
			n, err := p.Next(ctx)
			if !yield(n, err) || err != nil {
				return
			}
		}
	}
}

// Cycle yields active nodes from the traversal belonging to requester,
// stopping after rounds full laps. A lap is counted when the traversal
// returns to its starting node in the underlying, unfiltered order, so one
// lap always advances the same number of underlying steps regardless of how
// many nodes are down.
//
// The requester's cursor is created on first use and persists across calls;
// distinct requesters never perturb each other's position. The penalty box is
// polled once per call, not per element. If the active set becomes empty
// mid-traversal the next element is ErrPoolExhausted.
func (p *Pool) Cycle(ctx context.Context, requester string, rounds int) iter.Seq2[*Node, error] {
	return func(yield func(*Node, error) bool) {
		p.refresh(ctx)
		cur := p.cursorFor(requester)

		for n := range BoundedRounds(cur.seq(p.initial), rounds) {
			if len(p.active) == 0 {
				yield(nil, ErrPoolExhausted)
				return
			}
			if !p.isActive(n) {
				continue
			}
			if !yield(n, nil) {
				return
			}
		}
	}
}

// BoundedRounds truncates a cyclic sequence after rounds full laps back to
// the first element observed. The element that would begin the extra lap is
// not yielded.
func BoundedRounds[T comparable](seq iter.Seq[T], rounds int) iter.Seq[T] {
	return func(yield func(T) bool) {
		var start T
		started := false
		completed := 0

		for v := range seq {
			if !started {
				start = v
				started = true
			} else if v == start {
				completed++
			}
			if completed == rounds {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}
