package repositories

import (
	"context"
	"fmt"

	"coffeemasters/internal/models"
	"coffeemasters/internal/storage"
)

// StoreOrderRepository keeps orders in the orders collection of the local store.
type StoreOrderRepository struct {
	store *storage.Store
}

// NewStoreOrderRepository creates a new instance of StoreOrderRepository.
func NewStoreOrderRepository(store *storage.Store) *StoreOrderRepository {
	return &StoreOrderRepository{
		store: store,
	}
}

// GetAll returns all orders.
func (r *StoreOrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.store.Transaction(ctx, storage.CollectionOrders, storage.ReadOnly, func(tx *storage.Tx) error {
		return tx.GetAll(&orders)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// GetByID returns an order by its ID.
func (r *StoreOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.store.Transaction(ctx, storage.CollectionOrders, storage.ReadOnly, func(tx *storage.Tx) error {
		return tx.Get(id, &order)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return &order, nil
}

// GetByStatus returns the orders with the given status using the status index.
func (r *StoreOrderRepository) GetByStatus(ctx context.Context, status string) ([]models.Order, error) {
	var orders []models.Order
	err := r.store.Transaction(ctx, storage.CollectionOrders, storage.ReadOnly, func(tx *storage.Tx) error {
		return tx.GetAllByIndex("status", status, &orders)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get orders with status %s: %w", status, err)
	}
	return orders, nil
}

// GetByLocalID returns the order created with the given local id, synced or not.
func (r *StoreOrderRepository) GetByLocalID(ctx context.Context, localID string) (*models.Order, error) {
	var orders []models.Order
	err := r.store.Transaction(ctx, storage.CollectionOrders, storage.ReadOnly, func(tx *storage.Tx) error {
		return tx.GetAllByIndex("localId", localID, &orders)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order with local id %s: %w", localID, err)
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: order with local id %s", storage.ErrNotFound, localID)
	}
	return &orders[0], nil
}

// Save inserts or replaces an order.
func (r *StoreOrderRepository) Save(ctx context.Context, order *models.Order) error {
	err := r.store.Transaction(ctx, storage.CollectionOrders, storage.ReadWrite, func(tx *storage.Tx) error {
		return tx.Put(order)
	})
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}
	return nil
}

// SaveAll inserts or replaces all orders atomically.
func (r *StoreOrderRepository) SaveAll(ctx context.Context, orders []models.Order) error {
	err := r.store.Transaction(ctx, storage.CollectionOrders, storage.ReadWrite, func(tx *storage.Tx) error {
		for i := range orders {
			if err := tx.Put(&orders[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save %d orders: %w", len(orders), err)
	}
	return nil
}

// MarkSynced swaps the local record for the synced one.
func (r *StoreOrderRepository) MarkSynced(ctx context.Context, localID string, synced *models.Order) error {
	err := r.store.Transaction(ctx, storage.CollectionOrders, storage.ReadWrite, func(tx *storage.Tx) error {
		if synced.ID != localID {
			if err := tx.Delete(localID); err != nil {
				return err
			}
		}
		return tx.Put(synced)
	})
	if err != nil {
		return fmt.Errorf("failed to mark order %s as synced: %w", localID, err)
	}
	return nil
}

// Delete removes an order.
func (r *StoreOrderRepository) Delete(ctx context.Context, id string) error {
	err := r.store.Transaction(ctx, storage.CollectionOrders, storage.ReadWrite, func(tx *storage.Tx) error {
		return tx.Delete(id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete order %s: %w", id, err)
	}
	return nil
}
