package game

import (
	"sync"
	"time"
)

// TimerSink receives fired deadlines. It is the coordinator's timeout entry
// point: fired timers travel the same event path as user actions and carry
// the phase token they were scheduled against.
type TimerSink func(roomID string, token int64)

// RoundScheduler schedules one-shot deadline callbacks. A room has at most
// one outstanding deadline (round end XOR vote end XOR destroy), so
// scheduling replaces any previous one for the same room.
type RoundScheduler interface {
	Schedule(roomID string, at time.Time, token int64)
	Cancel(roomID string)
}

// DeadlineScheduler is the in-process RoundScheduler.
type DeadlineScheduler struct {
	mu     sync.Mutex
	sink   TimerSink
	timers map[string]*time.Timer
	closed bool
}

func NewDeadlineScheduler() *DeadlineScheduler {
	return &DeadlineScheduler{timers: make(map[string]*time.Timer)}
}

// Bind sets the sink. Must be called before the first Schedule; split from
// the constructor because the coordinator and the scheduler reference each
// other.
func (s *DeadlineScheduler) Bind(sink TimerSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

func (s *DeadlineScheduler) Schedule(roomID string, at time.Time, token int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.sink == nil {
		return
	}
	if prev, ok := s.timers[roomID]; ok {
		prev.Stop()
	}

	sink := s.sink
	s.timers[roomID] = time.AfterFunc(time.Until(at), func() {
		s.mu.Lock()
		delete(s.timers, roomID)
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			sink(roomID, token)
		}
	})
}

func (s *DeadlineScheduler) Cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[roomID]; ok {
		t.Stop()
		delete(s.timers, roomID)
	}
}

// Close stops every outstanding timer. Late firings become no-ops.
func (s *DeadlineScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
