package status

import (
	"sync"
	"time"
)

type EventType string

const (
	EventNodeSelected EventType = "node_selected"
	EventNodeDown     EventType = "node_down"
	EventNodeRestored EventType = "node_restored"
)

// Event is one observation emitted by the pool. Sends are non-blocking on the
// pool side, so an overloaded collector drops events rather than slowing the
// request path.
type Event struct {
	Type EventType
	Time time.Time
	Node int
}

type Status struct {
	mutex      sync.RWMutex
	selections map[int]int64
	evictions  map[int]int64
	recoveries map[int]int64
	healthy    map[int]bool
	startTime  time.Time
}

type Snapshot struct {
	Uptime time.Duration      `json:"uptime"`
	Nodes  map[int]NodeStatus `json:"nodes"`
}

type NodeStatus struct {
	Selections int64 `json:"selections"`
	Evictions  int64 `json:"evictions"`
	Recoveries int64 `json:"recoveries"`
	Healthy    bool  `json:"healthy"`
}

func NewStatus() *Status {
	return &Status{
		selections: make(map[int]int64),
		evictions:  make(map[int]int64),
		recoveries: make(map[int]int64),
		healthy:    make(map[int]bool),
		startTime:  time.Now(),
	}
}

func (s *Status) RecordSelection(node int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.selections[node]++
	if _, ok := s.healthy[node]; !ok {
		s.healthy[node] = true
	}
}

func (s *Status) RecordEviction(node int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.evictions[node]++
	s.healthy[node] = false
}

func (s *Status) RecordRecovery(node int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.recoveries[node]++
	s.healthy[node] = true
}

func (s *Status) Snapshot() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snap := Snapshot{
		Uptime: time.Since(s.startTime),
		Nodes:  make(map[int]NodeStatus),
	}

	nodes := make(map[int]bool)
	for node := range s.selections {
		nodes[node] = true
	}
	for node := range s.evictions {
		nodes[node] = true
	}
	for node := range s.recoveries {
		nodes[node] = true
	}
	for node := range s.healthy {
		nodes[node] = true
	}

	for node := range nodes {
		healthy, seen := s.healthy[node]
		snap.Nodes[node] = NodeStatus{
			Selections: s.selections[node],
			Evictions:  s.evictions[node],
			Recoveries: s.recoveries[node],
			Healthy:    healthy || !seen,
		}
	}

	return snap
}
