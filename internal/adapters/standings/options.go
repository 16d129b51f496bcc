package standings

import "time"

// Option applies a configuration option to Standings.
type Option func(*Standings)

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Standings) {
		if now != nil {
			s.now = now
		}
	}
}
