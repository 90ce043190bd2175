package device

import (
	"context"
	"time"
)

// StatusHistoryEntry is one stored status transition.
type StatusHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	Address string `json:"address"`
	From    Status `json:"from"`
	To      Status `json:"to"`

	// CreatedAt is the sweep time of the transition (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// StatusHistoryRepository stores and retrieves status transitions.
//
// Implementations must be thread-safe and use UTC timestamps.
type StatusHistoryRepository interface {
	// RecordTransition appends a transition.
	RecordTransition(ctx context.Context, t Transition) error

	// GetHistory returns recent transitions for the device, newest first.
	// The implementation may clamp limit.
	GetHistory(ctx context.Context, address string, limit int) ([]StatusHistoryEntry, error)
}
