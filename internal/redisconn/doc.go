// Package redisconn adapts go-redis clients to the connection interface the
// pool wraps. The core packages never import it; only the binary does.
package redisconn
