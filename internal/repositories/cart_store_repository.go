package repositories

import (
	"context"
	"fmt"

	"coffeemasters/internal/models"
	"coffeemasters/internal/storage"
)

// StoreCartRepository keeps the cart in the cart collection.
type StoreCartRepository struct {
	store *storage.Store
}

// NewStoreCartRepository creates a new instance of StoreCartRepository.
func NewStoreCartRepository(store *storage.Store) *StoreCartRepository {
	return &StoreCartRepository{
		store: store,
	}
}

// Load returns the persisted cart.
func (r *StoreCartRepository) Load(ctx context.Context) ([]models.CartEntry, error) {
	var entries []models.CartEntry
	err := r.store.Transaction(ctx, storage.CollectionCart, storage.ReadOnly, func(tx *storage.Tx) error {
		return tx.GetAll(&entries)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return entries, nil
}

// Save replaces the persisted cart with entries.
func (r *StoreCartRepository) Save(ctx context.Context, entries []models.CartEntry) error {
	err := r.store.Transaction(ctx, storage.CollectionCart, storage.ReadWrite, func(tx *storage.Tx) error {
		if err := tx.Clear(); err != nil {
			return err
		}
		for i := range entries {
			if err := tx.Add(&entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Clear empties the persisted cart.
func (r *StoreCartRepository) Clear(ctx context.Context) error {
	err := r.store.Transaction(ctx, storage.CollectionCart, storage.ReadWrite, func(tx *storage.Tx) error {
		return tx.Clear()
	})
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
