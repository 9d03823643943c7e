// Package timestep converts wall-clock frame times into a whole number of
// fixed simulation ticks.
package timestep

import "time"

// Accumulator banks elapsed time and pays it out in fixed steps.
// The zero value is not usable; construct with New.
type Accumulator struct {
	step     time.Duration
	maxSteps int
	banked   time.Duration
	dropped  uint64
}

// New creates an accumulator producing ticks of length step. maxSteps caps how
// many ticks one Advance may return; time beyond the cap is discarded so a
// long stall cannot snowball into an ever-growing backlog.
func New(step time.Duration, maxSteps int) *Accumulator {
	if step <= 0 {
		step = time.Second / 60
	}
	if maxSteps < 1 {
		maxSteps = 1
	}
	return &Accumulator{step: step, maxSteps: maxSteps}
}

// Advance adds elapsed time and returns how many ticks are now due.
func (a *Accumulator) Advance(elapsed time.Duration) int {
	if elapsed > 0 {
		a.banked += elapsed
	}
	n := int(a.banked / a.step)
	if n > a.maxSteps {
		a.dropped += uint64(n - a.maxSteps)
		n = a.maxSteps
		a.banked = 0
		return n
	}
	a.banked -= time.Duration(n) * a.step
	return n
}

// UntilNext returns how long until the next tick is due.
func (a *Accumulator) UntilNext() time.Duration {
	return a.step - a.banked
}

// Dropped reports how many ticks were skipped by the cap.
func (a *Accumulator) Dropped() uint64 {
	return a.dropped
}

// Reset discards banked time, e.g. after the simulation was paused.
func (a *Accumulator) Reset() {
	a.banked = 0
}

// Step returns the tick length.
func (a *Accumulator) Step() time.Duration {
	return a.step
}
