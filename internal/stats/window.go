package stats

import "time"

// Window remembers the previous sample so each observation yields the rate since then.
// It is owned by a single goroutine.
type Window struct {
	lastTime    time.Time
	lastSuccess uint64
	primed      bool
}

// Observe records a sample. The first call only sets the baseline and reports ok=false.
func (w *Window) Observe(now time.Time, success uint64) (rate float64, ok bool) {
	if !w.primed {
		w.primed = true
		w.lastTime = now
		w.lastSuccess = success
		return 0, false
	}

	elapsed := now.Sub(w.lastTime).Seconds()
	delta := success - w.lastSuccess
	w.lastTime = now
	w.lastSuccess = success

	if elapsed <= 0 {
		return 0, false
	}
	return float64(delta) / elapsed, true
}

// Primed reports whether a baseline sample exists.
func (w *Window) Primed() bool {
	return w.primed
}
