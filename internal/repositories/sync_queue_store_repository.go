package repositories

import (
	"context"
	"fmt"

	"coffeemasters/internal/models"
	"coffeemasters/internal/storage"
)

// StoreSyncQueueRepository keeps outbox entries in the syncQueue collection.
type StoreSyncQueueRepository struct {
	store *storage.Store
}

// NewStoreSyncQueueRepository creates a new instance of StoreSyncQueueRepository.
func NewStoreSyncQueueRepository(store *storage.Store) *StoreSyncQueueRepository {
	return &StoreSyncQueueRepository{
		store: store,
	}
}

// Append adds entry at the tail of the queue and assigns its ID.
func (r *StoreSyncQueueRepository) Append(ctx context.Context, entry *models.SyncQueueEntry) error {
	err := r.store.Transaction(ctx, storage.CollectionSyncQueue, storage.ReadWrite, func(tx *storage.Tx) error {
		return tx.Add(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to append %s to sync queue: %w", entry.Action, err)
	}
	return nil
}

// List returns the entries still eligible for replay, oldest first.
func (r *StoreSyncQueueRepository) List(ctx context.Context) ([]models.SyncQueueEntry, error) {
	return r.listByDeadLettered(ctx, false)
}

// ListDeadLetters returns the entries that exhausted their attempts.
func (r *StoreSyncQueueRepository) ListDeadLetters(ctx context.Context) ([]models.SyncQueueEntry, error) {
	return r.listByDeadLettered(ctx, true)
}

func (r *StoreSyncQueueRepository) listByDeadLettered(ctx context.Context, dead bool) ([]models.SyncQueueEntry, error) {
	var entries []models.SyncQueueEntry
	err := r.store.Transaction(ctx, storage.CollectionSyncQueue, storage.ReadOnly, func(tx *storage.Tx) error {
		return tx.GetAllByIndex("deadLettered", dead, &entries)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sync queue: %w", err)
	}
	return entries, nil
}

// Remove deletes an entry after a successful replay.
func (r *StoreSyncQueueRepository) Remove(ctx context.Context, id uint64) error {
	err := r.store.Transaction(ctx, storage.CollectionSyncQueue, storage.ReadWrite, func(tx *storage.Tx) error {
		return tx.Delete(id)
	})
	if err != nil {
		return fmt.Errorf("failed to remove sync queue entry %d: %w", id, err)
	}
	return nil
}

// RecordFailure bumps the retry count of the entry.
func (r *StoreSyncQueueRepository) RecordFailure(ctx context.Context, id uint64, cause string, maxAttempts int) (*models.SyncQueueEntry, error) {
	var entry models.SyncQueueEntry
	err := r.store.Transaction(ctx, storage.CollectionSyncQueue, storage.ReadWrite, func(tx *storage.Tx) error {
		if err := tx.Get(id, &entry); err != nil {
			return err
		}
		entry.RetryCount++
		entry.LastError = cause
		if maxAttempts > 0 && entry.RetryCount >= maxAttempts {
			entry.DeadLettered = true
		}
		return tx.Put(&entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record failure of sync queue entry %d: %w", id, err)
	}
	return &entry, nil
}

// Count returns the number of queued entries, dead letters included.
func (r *StoreSyncQueueRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.store.Transaction(ctx, storage.CollectionSyncQueue, storage.ReadOnly, func(tx *storage.Tx) (err error) {
		n, err = tx.Count()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count sync queue: %w", err)
	}
	return n, nil
}
