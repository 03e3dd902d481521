// Package conn defines the capability interface of a single key-value backend
// connection, connectivity-error classification, and the command guard that
// intercepts operations on behalf of the pool.
package conn
