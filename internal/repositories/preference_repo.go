package repositories

import (
	"context"

	"coffeemasters/internal/models"
)

// PreferenceRepository defines the interface for user preferences.
type PreferenceRepository interface {
	Get(ctx context.Context, key string) (*models.Preference, error)
	GetAll(ctx context.Context) ([]models.Preference, error)
	Put(ctx context.Context, prefs ...models.Preference) error
}
