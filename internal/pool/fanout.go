package pool

import (
	"context"
)

// MaxScores issues the same scored-range read to every active node and merges
// the results, keeping the highest score seen for each member. Because keys
// can be duplicated across nodes after a topology change, the merged view is
// the best approximation of the cluster-wide state.
//
// The first error aborts the fan-out and is returned as-is; a connectivity
// failure will also have evicted the node that caused it.
func (p *Pool) MaxScores(ctx context.Context, key string, max, min float64) (map[string]int64, error) {
	p.refresh(ctx)

	if len(p.active) == 0 {
		return nil, ErrPoolExhausted
	}

	// Snapshot the active set: a connectivity failure mid-loop mutates it.
	nodes := make([]*Node, len(p.active))
	copy(nodes, p.active)

	scores := make(map[string]int64)
	for _, n := range nodes {
		members, err := n.Conn().ZRevRangeByScore(ctx, key, max, min)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if cur, ok := scores[m.Member]; !ok || m.Score > cur {
				scores[m.Member] = m.Score
			}
		}
	}

	return scores, nil
}
