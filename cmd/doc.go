// Package cmd defines the studysync CLI. `serve` runs the loopback agent the
// study view talks to; `stats` prints a one-shot progress summary.
package cmd
