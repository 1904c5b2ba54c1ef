package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Clock whose time only moves when the test advances it.
// Callbacks scheduled with AfterFunc run synchronously inside Advance, in
// deadline order, without the internal lock held.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	pending []*manualTimer
}

// NewManual returns a Manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc registers fn to fire once the clock advances past d from now.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.nextID++
	timer := &manualTimer{
		clock:    m,
		id:       m.nextID,
		deadline: m.now.Add(d),
		fn:       fn,
	}
	m.pending = append(m.pending, timer)
	return timer
}

// Advance moves the clock forward by d, firing every timer whose deadline is
// reached. Callbacks may schedule or stop timers; newly scheduled timers that
// fall within the advance window fire in the same call.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	for {
		timer := m.popDueLocked(target)
		if timer == nil {
			break
		}
		if timer.deadline.After(m.now) {
			m.now = timer.deadline
		}
		m.mu.Unlock()
		timer.fn()
		m.mu.Lock()
	}
	m.now = target
	m.mu.Unlock()
}

func (m *Manual) popDueLocked(target time.Time) *manualTimer {
	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].deadline.Equal(m.pending[j].deadline) {
			return m.pending[i].id < m.pending[j].id
		}
		return m.pending[i].deadline.Before(m.pending[j].deadline)
	})
	for i, timer := range m.pending {
		if timer.deadline.After(target) {
			return nil
		}
		m.pending = append(m.pending[:i], m.pending[i+1:]...)
		return timer
	}
	return nil
}

func (m *Manual) remove(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, timer := range m.pending {
		if timer.id == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return true
		}
	}
	return false
}

type manualTimer struct {
	clock    *Manual
	id       int
	deadline time.Time
	fn       func()
}

func (t *manualTimer) Stop() bool {
	return t.clock.remove(t.id)
}
