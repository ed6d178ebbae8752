package repositories

import (
	"context"
	"fmt"

	"coffeemasters/internal/models"
	"coffeemasters/internal/storage"
)

// StorePreferenceRepository keeps preferences in the preferences collection.
type StorePreferenceRepository struct {
	store *storage.Store
}

// NewStorePreferenceRepository creates a new instance of StorePreferenceRepository.
func NewStorePreferenceRepository(store *storage.Store) *StorePreferenceRepository {
	return &StorePreferenceRepository{
		store: store,
	}
}

// Get returns the preference stored under key.
func (r *StorePreferenceRepository) Get(ctx context.Context, key string) (*models.Preference, error) {
	var pref models.Preference
	err := r.store.Transaction(ctx, storage.CollectionPreferences, storage.ReadOnly, func(tx *storage.Tx) error {
		return tx.Get(key, &pref)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	return &pref, nil
}

// GetAll returns every preference.
func (r *StorePreferenceRepository) GetAll(ctx context.Context) ([]models.Preference, error) {
	var prefs []models.Preference
	err := r.store.Transaction(ctx, storage.CollectionPreferences, storage.ReadOnly, func(tx *storage.Tx) error {
		return tx.GetAll(&prefs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return prefs, nil
}

// Put inserts or replaces the given preferences.
func (r *StorePreferenceRepository) Put(ctx context.Context, prefs ...models.Preference) error {
	err := r.store.Transaction(ctx, storage.CollectionPreferences, storage.ReadWrite, func(tx *storage.Tx) error {
		for i := range prefs {
			if err := tx.Put(&prefs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put preferences: %w", err)
	}
	return nil
}
