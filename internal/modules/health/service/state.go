package service

import (
	"sync"
	"sync/atomic"
	"time"
)

// TickSnapshot — счётчики последнего тика планировщика для /healthz.
type TickSnapshot struct {
	Scored             int           `json:"scored"`
	Skipped            int           `json:"skipped"`
	Qualified          int           `json:"qualified"`
	Mutated            int           `json:"mutated"`
	Created            int           `json:"created"`
	Eliminated         int           `json:"eliminated"`
	EliminationBlocked int           `json:"eliminationBlocked"`
	Duration           time.Duration `json:"durationNs"`
}

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	feedConnected atomic.Bool
	lastTickUnix  atomic.Int64 // unix seconds
	conflicts     atomic.Int64 // repaired classification conflicts since start

	mu       sync.RWMutex
	lastTick TickSnapshot
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetFeedConnected(v bool) { s.feedConnected.Store(v) }
func (s *State) FeedConnected() bool     { return s.feedConnected.Load() }

func (s *State) AddConflict()     { s.conflicts.Add(1) }
func (s *State) Conflicts() int64 { return s.conflicts.Load() }

func (s *State) TouchTick(t time.Time, snap TickSnapshot) {
	s.lastTickUnix.Store(t.Unix())
	s.mu.Lock()
	s.lastTick = snap
	s.mu.Unlock()
}

func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) LastSnapshot() TickSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
