package progress

import "time"

// Hydrate sources reported to observers.
const (
	SourceCache  = "cache"
	SourceRemote = "remote"
)

// Outcome labels reported to observers.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// Observer receives sync lifecycle signals for metrics and logging.
// Implementations must be cheap and must not call back into the Syncer.
type Observer interface {
	// Hydrated reports a hydrate served from source with the given result.
	Hydrated(source, result string)
	// Flushed reports a batch of size updates and how the request ended.
	Flushed(size int, result string, dur time.Duration)
	// RetryScheduled reports an automatic retry armed after delay.
	RetryScheduled(attempt int, delay time.Duration)
	// PendingChanged reports the current pending-set size.
	PendingChanged(n int)
}

// NopObserver ignores every signal.
type NopObserver struct{}

// Hydrated implements Observer.
func (NopObserver) Hydrated(string, string) {}

// Flushed implements Observer.
func (NopObserver) Flushed(int, string, time.Duration) {}

// RetryScheduled implements Observer.
func (NopObserver) RetryScheduled(int, time.Duration) {}

// PendingChanged implements Observer.
func (NopObserver) PendingChanged(int) {}

// Observers fans signals out to several observers.
type Observers []Observer

// Hydrated implements Observer.
func (o Observers) Hydrated(source, result string) {
	for _, obs := range o {
		obs.Hydrated(source, result)
	}
}

// Flushed implements Observer.
func (o Observers) Flushed(size int, result string, dur time.Duration) {
	for _, obs := range o {
		obs.Flushed(size, result, dur)
	}
}

// RetryScheduled implements Observer.
func (o Observers) RetryScheduled(attempt int, delay time.Duration) {
	for _, obs := range o {
		obs.RetryScheduled(attempt, delay)
	}
}

// PendingChanged implements Observer.
func (o Observers) PendingChanged(n int) {
	for _, obs := range o {
		obs.PendingChanged(n)
	}
}
