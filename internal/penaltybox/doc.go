// Package penaltybox implements the holding area for unreachable nodes.
//
// Failed nodes are kept in a min-heap keyed by release time. Each Poll probes
// only the entries whose release time has passed; a node that is still down
// has its wait multiplied (up to a ceiling) and is rescheduled. There is no
// background timer: probing happens exactly as often as the pool is used.
package penaltybox
