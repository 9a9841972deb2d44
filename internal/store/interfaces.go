package store

import "context"

// Identity resolves the session's authenticated user.
type Identity interface {
	CurrentUser(ctx context.Context) (User, error)
}

// ProgressStore persists per-user goal completion remotely.
type ProgressStore interface {
	// FetchProgress returns the full flat snapshot for userID.
	FetchProgress(ctx context.Context, userID UserID) ([]Record, error)
	// BatchUpdate persists all updates in one request; it is all-or-nothing.
	BatchUpdate(ctx context.Context, userID UserID, updates []Update) error
	// FetchStats returns the aggregate identifier and goal counts.
	FetchStats(ctx context.Context) (StatsSummary, error)
}
