// Package store defines the wire types and interfaces of the remote Progress
// Store and identity endpoints. Implementations live in other packages; this
// package must not import HTTP clients or other concrete transports.
package store
