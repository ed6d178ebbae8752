package repositories

import (
	"context"
	"fmt"

	"coffeemasters/internal/models"
	"coffeemasters/internal/storage"
)

// StoreMenuRepository keeps the menu snapshot in the menu collection.
type StoreMenuRepository struct {
	store *storage.Store
}

// NewStoreMenuRepository creates a new instance of StoreMenuRepository.
func NewStoreMenuRepository(store *storage.Store) *StoreMenuRepository {
	return &StoreMenuRepository{
		store: store,
	}
}

// GetAll returns every category of the snapshot.
func (r *StoreMenuRepository) GetAll(ctx context.Context) ([]models.MenuCategory, error) {
	var categories []models.MenuCategory
	err := r.store.Transaction(ctx, storage.CollectionMenu, storage.ReadOnly, func(tx *storage.Tx) error {
		return tx.GetAll(&categories)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get menu snapshot: %w", err)
	}
	return categories, nil
}

// Replace clears and refills the snapshot inside a single transaction.
func (r *StoreMenuRepository) Replace(ctx context.Context, categories []models.MenuCategory) error {
	err := r.store.Transaction(ctx, storage.CollectionMenu, storage.ReadWrite, func(tx *storage.Tx) error {
		if err := tx.Clear(); err != nil {
			return err
		}
		for i := range categories {
			if err := tx.Add(&categories[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace menu snapshot: %w", err)
	}
	return nil
}
