package repositories

import (
	"context"

	"coffeemasters/internal/models"
)

// CartRepository defines the interface for the durable cart.
type CartRepository interface {
	Load(ctx context.Context) ([]models.CartEntry, error)
	// Save replaces every entry or none.
	Save(ctx context.Context, entries []models.CartEntry) error
	Clear(ctx context.Context) error
}
