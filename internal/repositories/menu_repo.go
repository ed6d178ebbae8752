package repositories

import (
	"context"

	"coffeemasters/internal/models"
)

// MenuRepository defines the interface for the menu snapshot.
type MenuRepository interface {
	GetAll(ctx context.Context) ([]models.MenuCategory, error)
	// Replace swaps the whole snapshot; readers never see a partial replacement.
	Replace(ctx context.Context, categories []models.MenuCategory) error
}
