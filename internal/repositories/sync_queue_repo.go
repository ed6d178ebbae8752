package repositories

import (
	"context"

	"coffeemasters/internal/models"
)

// SyncQueueRepository defines the interface for the outbox queue.
type SyncQueueRepository interface {
	Append(ctx context.Context, entry *models.SyncQueueEntry) error
	// List returns live entries in insertion order.
	List(ctx context.Context) ([]models.SyncQueueEntry, error)
	ListDeadLetters(ctx context.Context) ([]models.SyncQueueEntry, error)
	Remove(ctx context.Context, id uint64) error
	// RecordFailure increments the retry count in place and dead-letters the entry
	// once it reaches maxAttempts (0 disables dead-lettering).
	RecordFailure(ctx context.Context, id uint64, cause string, maxAttempts int) (*models.SyncQueueEntry, error)
	Count(ctx context.Context) (int64, error)
}
