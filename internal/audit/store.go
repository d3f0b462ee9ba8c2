package audit

import (
	"context"
	"time"
)

// Store is the persistence port for the audit log. Implementations
// must treat the log as append-only: entries are never updated in
// place, and removal happens only through DeleteOlderThan.
type Store interface {
	// Append persists a finalised entry.
	Append(ctx context.Context, entry Entry) error
	// Select returns all entries matching the filter, in no
	// particular order; the pipeline sorts.
	Select(ctx context.Context, filter Filter) ([]Entry, error)
	// MaxID returns the highest id ever assigned, zero when empty.
	MaxID(ctx context.Context) (int64, error)
	// DeleteOlderThan removes entries of the tier stamped at or
	// before cutoff, returning how many were deleted.
	DeleteOlderThan(ctx context.Context, tier RiskTier, cutoff time.Time) (int64, error)
}
