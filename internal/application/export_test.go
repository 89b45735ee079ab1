package application

import "time"

// SetRunClock replaces the run ID generator and clock for deterministic tests.
func (p *Pipeline) SetRunClock(newRunID func() string, now func() time.Time) {
	p.newRunID = newRunID
	p.now = now
}
