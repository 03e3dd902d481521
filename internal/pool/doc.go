// Package pool implements a self-healing pool of independent key-value
// backends used to shard ephemeral data.
//
// Node selection hashes the shard key against the fixed initial node list, so
// assignment does not shift merely because some other node went down. Nodes
// whose connections fail are evicted into a penalty box and re-probed with
// exponential backoff; they rejoin the active set on the next pool operation
// after a successful probe. Round-robin traversal over the active set is
// available both through a shared global cursor and through independent
// per-requester cursors with a round limit.
package pool
