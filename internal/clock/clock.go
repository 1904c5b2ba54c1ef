package clock

import "time"

// Clock abstracts time measurement and callback scheduling so components can
// be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn to run after d on its own goroutine and returns
	// a cancellation handle. Stop is idempotent.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the pending callback. It reports whether the call
	// prevented the callback from firing; stopping an already-fired or
	// already-stopped timer is a no-op.
	Stop() bool
}

// System returns a Clock backed by the runtime clock.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{timer: time.AfterFunc(d, fn)}
}

type systemTimer struct {
	timer *time.Timer
}

func (t systemTimer) Stop() bool {
	return t.timer.Stop()
}
