package logic

import "time"

// Tracker fuses the directional beams and the overhead clearance reading
// into a single human-present fact.
//
// The fusion is deliberately biased: a false "present" only delays the
// gate, while a false "clear" could close it on a person. An accepted exit
// therefore takes effect only after a grace period, modeled as a stored
// deadline checked on each update so the caller's control cycle never
// blocks. While an exit is pending no beam decision is accepted; only the
// overhead check can change the outcome, and only toward "present".
type Tracker struct {
	debounce   time.Duration
	clearDelay time.Duration
	height     float64

	present       bool
	lastEntry     time.Time
	lastExit      time.Time
	clearDeadline time.Time // zero when no exit is pending
}

// NewTracker creates a presence tracker with the given beam debounce
// interval, exit clearance delay, and overhead presence height in cm.
func NewTracker(debounce, clearDelay time.Duration, height float64) *Tracker {
	return &Tracker{
		debounce:   debounce,
		clearDelay: clearDelay,
		height:     height,
	}
}

// Update consumes one cycle's presence signals and returns the new
// human-present fact.
func (t *Tracker) Update(entry, exit bool, clearance float64, now time.Time) bool {
	if !t.clearDeadline.IsZero() {
		// Exit pending: beam events are ignored until the grace period
		// runs out, so a beam glitch cannot flip the conclusion mid-exit.
		if !now.Before(t.clearDeadline) {
			t.present = false
			t.lastExit = t.clearDeadline
			t.clearDeadline = time.Time{}
		}
	} else {
		if entry && now.Sub(t.lastEntry) >= t.debounce {
			t.present = true
			t.lastEntry = now
		}
		// An exit is accepted only if both beams have been quiet for the
		// debounce interval: an exit beam broken moments after an entry is
		// the same person still near the sensors, not a departure.
		if exit && t.present &&
			now.Sub(t.lastExit) >= t.debounce &&
			now.Sub(t.lastEntry) >= t.debounce {
			t.clearDeadline = now.Add(t.clearDelay)
		}
	}

	// Overhead confirmation runs last so it can only strengthen the
	// "present" conclusion. Something under the clearance sensor while an
	// exit is pending means the structure is not empty: the pending exit
	// is discarded.
	if clearance < t.height {
		t.present = true
		t.clearDeadline = time.Time{}
	}

	return t.present
}

// Present returns the current human-present fact without consuming input.
func (t *Tracker) Present() bool {
	return t.present
}

// ExitPending reports whether an accepted exit is waiting out its
// clearance delay.
func (t *Tracker) ExitPending() bool {
	return !t.clearDeadline.IsZero()
}
