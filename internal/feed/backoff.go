package feed

import "time"

// Backoff is an exponential reconnect delay: Base * 2^retry, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff starts at one second and caps at a minute.
var DefaultBackoff = Backoff{Base: time.Second, Max: 60 * time.Second}

// Delay returns the wait before attempt retry. A negative retry counts as the first.
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	// 2^30 seconds is far beyond any sane cap; stop shifting there
	if retry > 30 {
		return b.Max
	}
	d := b.Base * time.Duration(1<<retry)
	if d > b.Max || d <= 0 {
		return b.Max
	}
	return d
}
