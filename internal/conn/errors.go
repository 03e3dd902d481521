package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrNotFound is returned by Get when the key does not exist on the backend.
// It is an application-level condition and never evicts a node.
var ErrNotFound = errors.New("conn: key not found")

// ConnError marks a failure as a connectivity problem. Adapters wrap
// backend-specific "connection is gone" errors in it so that the guard can
// classify them without importing the client library.
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("conn: %s: connection failure", e.Op)
	}
	return fmt.Sprintf("conn: %s: %v", e.Op, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err indicates the backend is unreachable,
// as opposed to an application-level failure returned by a healthy backend.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}

	var connErr *ConnError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, context.DeadlineExceeded)
}
