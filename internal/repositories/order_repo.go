package repositories

import (
	"context"

	"coffeemasters/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByStatus(ctx context.Context, status string) ([]models.Order, error)
	// GetByLocalID finds an order by the id it was created with offline.
	GetByLocalID(ctx context.Context, localID string) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	SaveAll(ctx context.Context, orders []models.Order) error
	// MarkSynced replaces the local-only order with the server's copy in one transaction.
	MarkSynced(ctx context.Context, localID string, synced *models.Order) error
	Delete(ctx context.Context, id string) error
}
