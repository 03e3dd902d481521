package conn_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shardpool/shardpool/internal/conn"
)

// stubConn returns a fixed error (possibly nil) from every operation.
type stubConn struct {
	err   error
	calls []string
}

func (s *stubConn) record(op string) { s.calls = append(s.calls, op) }

func (s *stubConn) Get(ctx context.Context, key string) (string, error) {
	s.record("get")
	return "value", s.err
}

func (s *stubConn) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.record("set")
	return s.err
}

func (s *stubConn) Incr(ctx context.Context, key string) (int64, error) {
	s.record("incr")
	return 1, s.err
}

func (s *stubConn) ZAdd(ctx context.Context, key string, score int64, member string) error {
	s.record("zadd")
	return s.err
}

func (s *stubConn) ZRevRangeByScore(ctx context.Context, key string, max, min float64) ([]conn.ScoredMember, error) {
	s.record("zrevrangebyscore")
	return nil, s.err
}

func (s *stubConn) Ping(ctx context.Context) error {
	s.record("ping")
	return s.err
}

func (s *stubConn) Do(ctx context.Context, args ...any) (any, error) {
	s.record("do")
	return nil, s.err
}

func (s *stubConn) Close() error { return nil }

var _ = Describe("Guard", func() {
	var (
		raw      *stubConn
		guarded  conn.Conn
		failures int
		ctx      context.Context
	)

	BeforeEach(func() {
		raw = &stubConn{}
		failures = 0
		guarded = conn.Guard(raw, func() { failures++ })
		ctx = context.Background()
	})

	Context("when operations succeed", func() {
		It("should delegate and report nothing", func() {
			v, err := guarded.Get(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("value"))
			Expect(failures).To(Equal(0))
		})
	})

	Context("when an operation fails with a connectivity error", func() {
		BeforeEach(func() {
			raw.err = &conn.ConnError{Op: "get", Err: errors.New("broken pipe")}
		})

		It("should report the failure and return the original error", func() {
			_, err := guarded.Get(ctx, "k")
			Expect(err).To(Equal(raw.err))
			Expect(failures).To(Equal(1))
		})

		It("should report once per failed operation", func() {
			guarded.Set(ctx, "k", "v", 0)
			guarded.Incr(ctx, "k")
			guarded.ZAdd(ctx, "k", 1, "m")
			_, _ = guarded.ZRevRangeByScore(ctx, "k", 10, 0)
			Expect(failures).To(Equal(4))
		})
	})

	Context("when an operation fails with an application error", func() {
		BeforeEach(func() {
			raw.err = errors.New("wrong type")
		})

		It("should pass the error through without reporting", func() {
			_, err := guarded.Get(ctx, "k")
			Expect(err).To(Equal(raw.err))
			Expect(failures).To(Equal(0))
		})
	})

	Context("administrative operations", func() {
		BeforeEach(func() {
			raw.err = &conn.ConnError{Op: "admin"}
		})

		It("should never report a failed ping", func() {
			Expect(guarded.Ping(ctx)).To(HaveOccurred())
			Expect(failures).To(Equal(0))
		})

		It("should never report a failed raw command", func() {
			_, err := guarded.Do(ctx, "DEBUG", "SLEEP", "0")
			Expect(err).To(HaveOccurred())
			Expect(failures).To(Equal(0))
		})
	})

	Describe("IsGuarded", func() {
		It("should identify guarded connections", func() {
			Expect(conn.IsGuarded(guarded)).To(BeTrue())
			Expect(conn.IsGuarded(raw)).To(BeFalse())
		})
	})
})

var _ = Describe("IsConnectivity", func() {
	DescribeTable("classification",
		func(err error, want bool) {
			Expect(conn.IsConnectivity(err)).To(Equal(want))
		},
		Entry("nil", nil, false),
		Entry("ConnError", &conn.ConnError{Op: "get"}, true),
		Entry("wrapped ConnError", fmt.Errorf("read: %w", &conn.ConnError{Op: "get"}), true),
		Entry("net.OpError", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true),
		Entry("connection reset", syscall.ECONNRESET, true),
		Entry("broken pipe", syscall.EPIPE, true),
		Entry("EOF", io.EOF, true),
		Entry("deadline exceeded", context.DeadlineExceeded, true),
		Entry("application error", errors.New("wrong type"), false),
		Entry("not found", conn.ErrNotFound, false),
	)
})
