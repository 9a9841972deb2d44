// Package sinks implements progress.Observer consumers: Prometheus collectors
// for flush and hydrate outcomes, and structured logging. Each observer is
// safe for concurrent use.
package sinks
