// Package clock declares the time source used by the sync core so debounce
// and cache expiry can be driven deterministically in tests.
package clock

import "time"

// Clock returns the current time and schedules deferred callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}
