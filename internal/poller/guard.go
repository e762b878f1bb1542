package poller

import "sync/atomic"

// Guard runs a launch function at most once, no matter how many callers race.
// The zero value is ready to use.
type Guard struct {
	started atomic.Bool
}

// Launch runs fn if this is the first call and reports whether it did.
// Losing callers return false immediately without waiting for fn.
func (g *Guard) Launch(fn func()) bool {
	if !g.started.CompareAndSwap(false, true) {
		return false
	}
	fn()
	return true
}

// Started reports whether Launch has been won.
func (g *Guard) Started() bool {
	return g.started.Load()
}
