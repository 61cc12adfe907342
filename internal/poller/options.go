package poller

import (
	"encoding/json"
	"time"
)

// Default timing applied to zero-valued Options fields.
const (
	DefaultInterval        = 2 * time.Second
	DefaultDeadline        = 3 * time.Minute
	DefaultMaxErrorBackoff = 30 * time.Second
)

// Tick describes a non-terminal fetch. Err is set when the fetch failed, in
// which case Status and Partial are empty.
type Tick struct {
	Attempt int
	Status  string
	Partial json.RawMessage
	Err     error
}

// Options bound a single polling run.
type Options struct {
	// Interval is the spacing between status fetches while pending.
	Interval time.Duration
	// Deadline is the wall-clock budget measured from Start.
	Deadline time.Duration
	// ErrorBackoff is the base delay after a failed fetch. Consecutive failures
	// grow it linearly up to MaxErrorBackoff. Defaults to twice Interval.
	ErrorBackoff    time.Duration
	MaxErrorBackoff time.Duration
	// Start anchors the deadline. Zero means the clock's current time.
	Start time.Time
	// OnTick receives each non-terminal fetch: pending observations with any
	// partial payload, and failed fetches with Err set.
	OnTick func(Tick)
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Deadline <= 0 {
		o.Deadline = DefaultDeadline
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = 2 * o.Interval
	}
	if o.MaxErrorBackoff <= 0 {
		o.MaxErrorBackoff = DefaultMaxErrorBackoff
	}
	if o.ErrorBackoff > o.MaxErrorBackoff {
		o.ErrorBackoff = o.MaxErrorBackoff
	}
	return o
}

// errorDelay is the linear backoff for the nth consecutive failed fetch.
func (o Options) errorDelay(failures int) time.Duration {
	if failures <= 0 {
		return o.Interval
	}
	d := time.Duration(failures) * o.ErrorBackoff
	if d > o.MaxErrorBackoff {
		return o.MaxErrorBackoff
	}
	return d
}
