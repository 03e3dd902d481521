// Package handler implements the HTTP surface over the node pool. It maps
// keys to nodes, executes backend operations, retries once when a node dies
// mid-request, and serves the cluster-wide score aggregation.
package handler
