package jobs

import "time"

// SetClock overrides the registry's time source for tests.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

// SetClock overrides the sweeper's time source for tests.
func (s *ExpirySweeper) SetClock(now func() time.Time) { s.now = now }
