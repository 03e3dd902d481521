package penaltybox_test

import (
	"context"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shardpool/shardpool/internal/conn"
	"github.com/shardpool/shardpool/internal/penaltybox"
)

// probeNode fails its first failures probes, then succeeds.
type probeNode struct {
	id       int
	failures int
	probes   int
}

func (n *probeNode) ID() int { return n.id }

func (n *probeNode) Ping(ctx context.Context) error {
	n.probes++
	if n.probes <= n.failures {
		return &conn.ConnError{Op: "ping"}
	}
	return nil
}

var _ = Describe("PenaltyBox", func() {
	var (
		box *penaltybox.Box
		ctx context.Context
	)

	newBox := func(opts penaltybox.Options) *penaltybox.Box {
		b, err := penaltybox.New(opts, slog.Default())
		Expect(err).NotTo(HaveOccurred())
		return b
	}

	BeforeEach(func() {
		ctx = context.Background()
		box = newBox(penaltybox.Options{
			MinWait:    30 * time.Millisecond,
			MaxWait:    120 * time.Millisecond,
			Multiplier: 2.0,
		})
	})

	Describe("New", func() {
		It("should apply defaults for zero options", func() {
			b, err := penaltybox.New(penaltybox.Options{}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).NotTo(BeNil())
		})

		It("should reject a multiplier that cannot back off", func() {
			_, err := penaltybox.New(penaltybox.Options{
				MinWait:    time.Second,
				MaxWait:    time.Minute,
				Multiplier: 1.0,
			}, nil)
			Expect(err).To(HaveOccurred())
		})

		It("should reject min wait above max wait", func() {
			_, err := penaltybox.New(penaltybox.Options{
				MinWait:    time.Minute,
				MaxWait:    time.Second,
				Multiplier: 1.5,
			}, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Add", func() {
		It("should hold the node until the initial wait elapses", func() {
			node := &probeNode{id: 0}
			box.Add(node)

			Expect(box.Poll(ctx)).To(BeEmpty())
			Expect(node.probes).To(Equal(0))
			Expect(box.Contains(0)).To(BeTrue())

			time.Sleep(40 * time.Millisecond)
			Expect(box.Poll(ctx)).To(Equal([]penaltybox.Node{node}))
			Expect(box.Contains(0)).To(BeFalse())
			Expect(box.Len()).To(Equal(0))
		})

		It("should ignore a node that is already penalized", func() {
			node := &probeNode{id: 7}
			box.Add(node)
			box.Add(node)
			Expect(box.Len()).To(Equal(1))
		})

		It("should track distinct nodes independently", func() {
			box.Add(&probeNode{id: 1})
			box.Add(&probeNode{id: 2})
			Expect(box.Len()).To(Equal(2))
			Expect(box.Contains(1)).To(BeTrue())
			Expect(box.Contains(2)).To(BeTrue())
		})
	})

	Describe("Poll", func() {
		It("should back off after a failed probe", func() {
			node := &probeNode{id: 0, failures: 1}
			box.Add(node)

			// First probe fails; the wait doubles to 60ms.
			time.Sleep(40 * time.Millisecond)
			Expect(box.Poll(ctx)).To(BeEmpty())
			Expect(node.probes).To(Equal(1))
			Expect(box.Contains(0)).To(BeTrue())

			// Not due again after only the initial wait.
			time.Sleep(40 * time.Millisecond)
			Expect(box.Poll(ctx)).To(BeEmpty())
			Expect(node.probes).To(Equal(1))

			time.Sleep(40 * time.Millisecond)
			Expect(box.Poll(ctx)).To(Equal([]penaltybox.Node{node}))
		})

		It("should cap the wait at the maximum", func() {
			capped := newBox(penaltybox.Options{
				MinWait:    20 * time.Millisecond,
				MaxWait:    50 * time.Millisecond,
				Multiplier: 100,
			})

			node := &probeNode{id: 0, failures: 1}
			capped.Add(node)

			time.Sleep(30 * time.Millisecond)
			Expect(capped.Poll(ctx)).To(BeEmpty())
			Expect(node.probes).To(Equal(1))

			// Rescheduled at the 50ms ceiling, not 20ms * 100.
			time.Sleep(70 * time.Millisecond)
			Expect(capped.Poll(ctx)).To(Equal([]penaltybox.Node{node}))
		})

		It("should not probe entries that are not yet due", func() {
			early := &probeNode{id: 0}
			box.Add(early)

			time.Sleep(40 * time.Millisecond)
			late := &probeNode{id: 1}
			box.Add(late)

			Expect(box.Poll(ctx)).To(Equal([]penaltybox.Node{early}))
			Expect(late.probes).To(Equal(0))
			Expect(box.Contains(1)).To(BeTrue())
		})
	})
})
