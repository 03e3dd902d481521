package pool_test

import (
	"context"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shardpool/shardpool/internal/conn"
	"github.com/shardpool/shardpool/internal/conn/conntest"
	"github.com/shardpool/shardpool/internal/penaltybox"
	"github.com/shardpool/shardpool/internal/pool"
)

// Short waits so recovery tests run quickly.
var testBoxOptions = penaltybox.Options{
	MinWait:    30 * time.Millisecond,
	MaxWait:    120 * time.Millisecond,
	Multiplier: 2.0,
}

func newTestPool(fakes []*conntest.Fake) *pool.Pool {
	conns := make([]conn.Conn, len(fakes))
	for i, f := range fakes {
		conns[i] = f
	}
	p, err := pool.New(conns, pool.Options{
		PenaltyBox: testBoxOptions,
		Logger:     slog.Default(),
	})
	Expect(err).NotTo(HaveOccurred())
	return p
}

var _ = Describe("Pool", func() {
	var (
		fakes []*conntest.Fake
		p     *pool.Pool
		ctx   context.Context
	)

	BeforeEach(func() {
		fakes = []*conntest.Fake{conntest.New(), conntest.New(), conntest.New()}
		p = newTestPool(fakes)
		ctx = context.Background()
	})

	// kill makes the fake behind n unreachable and reports the failure the
	// way production code does: through a guarded operation.
	kill := func(n *pool.Node) {
		fakes[n.ID()].Down = true
		_, err := n.Conn().Get(ctx, "any")
		Expect(conn.IsConnectivity(err)).To(BeTrue())
	}

	Describe("New", func() {
		It("should start with every node active", func() {
			Expect(p.Active(ctx)).To(HaveLen(3))
			Expect(p.Nodes()).To(HaveLen(3))
		})

		It("should assign unique sequential pool ids", func() {
			ids := make(map[int]bool)
			for _, n := range p.Nodes() {
				ids[n.ID()] = true
			}
			Expect(ids).To(HaveLen(3))
			for i := range 3 {
				Expect(ids).To(HaveKey(i))
			}
		})

		It("should reject an empty connection list", func() {
			_, err := pool.New(nil, pool.Options{})
			Expect(err).To(HaveOccurred())
		})

		It("should reject a connection that already belongs to a pool", func() {
			owned := p.Nodes()[0].Conn()
			_, err := pool.New([]conn.Conn{owned}, pool.Options{})
			Expect(err).To(MatchError(pool.ErrDuplicateRegistration))
		})

		It("should reject the same connection listed twice", func() {
			c := conntest.New()
			_, err := pool.New([]conn.Conn{c, c}, pool.Options{})
			Expect(err).To(MatchError(pool.ErrDuplicateRegistration))
		})

		It("should reject invalid penalty box options", func() {
			_, err := pool.New([]conn.Conn{conntest.New()}, pool.Options{
				PenaltyBox: penaltybox.Options{
					MinWait:    time.Second,
					MaxWait:    time.Minute,
					Multiplier: 0.5,
				},
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SelectForKey", func() {
		It("should return the same node for the same key", func() {
			first, err := p.SelectForKey(ctx, []byte("session:42"))
			Expect(err).NotTo(HaveOccurred())

			for range 10 {
				n, err := p.SelectForKey(ctx, []byte("session:42"))
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(first))
			}
		})

		It("should fall back to another node while the preferred one is down", func() {
			preferred, err := p.SelectForKey(ctx, []byte("hot-key"))
			Expect(err).NotTo(HaveOccurred())

			kill(preferred)

			fallback, err := p.SelectForKey(ctx, []byte("hot-key"))
			Expect(err).NotTo(HaveOccurred())
			Expect(fallback).NotTo(Equal(preferred))
			Expect(p.Active(ctx)).To(HaveLen(2))
		})

		It("should return to the preferred node once it recovers", func() {
			preferred, err := p.SelectForKey(ctx, []byte("hot-key"))
			Expect(err).NotTo(HaveOccurred())

			kill(preferred)
			fakes[preferred.ID()].Down = false

			// The next pool operation after the penalty wait re-probes and
			// restores the node before selecting.
			time.Sleep(40 * time.Millisecond)
			n, err := p.SelectForKey(ctx, []byte("hot-key"))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(preferred))
			Expect(p.Active(ctx)).To(HaveLen(3))
		})

		It("should fail with ErrPoolExhausted when every node is down", func() {
			for _, n := range p.Nodes() {
				kill(n)
			}

			_, err := p.SelectForKey(ctx, []byte("any"))
			Expect(err).To(MatchError(pool.ErrPoolExhausted))
		})

		It("should become usable again once one node recovers", func() {
			for _, n := range p.Nodes() {
				kill(n)
			}
			fakes[1].Down = false

			time.Sleep(40 * time.Millisecond)
			n, err := p.SelectForKey(ctx, []byte("any"))
			Expect(err).NotTo(HaveOccurred())
			Expect(n.ID()).To(Equal(1))
		})
	})

	Describe("ReportFailure", func() {
		It("should move the node from the active set to the penalty box", func() {
			n := p.Nodes()[1]
			p.ReportFailure(n)

			active := p.Active(ctx)
			Expect(active).To(HaveLen(2))
			Expect(active).NotTo(ContainElement(n))
		})

		It("should keep the active set sorted by pool id", func() {
			p.ReportFailure(p.Nodes()[1])

			active := p.Active(ctx)
			Expect(active[0].ID()).To(Equal(0))
			Expect(active[1].ID()).To(Equal(2))
		})

		It("should ignore a node that was already reported", func() {
			n := p.Nodes()[1]
			p.ReportFailure(n)
			p.ReportFailure(n)
			Expect(p.Active(ctx)).To(HaveLen(2))
		})

		It("should ignore racing reports from multiple guarded calls", func() {
			n := p.Nodes()[0]
			fakes[0].Down = true
			for range 3 {
				_, _ = n.Conn().Get(ctx, "k")
			}
			Expect(p.Active(ctx)).To(HaveLen(2))
		})
	})
})
