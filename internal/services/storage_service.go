package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"coffeemasters/internal/models"
	"coffeemasters/internal/repositories"
	"coffeemasters/internal/storage"
)

// StorageInfo summarises what the local store holds.
type StorageInfo struct {
	OrdersCount      int64 `json:"orders_count"`
	MenuCached       bool  `json:"menu_cached"`
	CartItems        int64 `json:"cart_items"`
	PreferencesCount int64 `json:"preferences_count"`
	SyncQueueCount   int64 `json:"sync_queue_count"`
}

// ExportData is a backup of the user's data.
type ExportData struct {
	Orders      []models.Order      `json:"orders"`
	Cart        []models.CartEntry  `json:"cart"`
	Preferences []models.Preference `json:"preferences"`
	ExportDate  time.Time           `json:"export_date"`
}

// StorageService handles backup and maintenance of the local store.
type StorageService struct {
	store  *storage.Store
	orders repositories.OrderRepository
	prefs  repositories.PreferenceRepository
	cart   *CartService
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewStorageService(
	store *storage.Store,
	orders repositories.OrderRepository,
	prefs repositories.PreferenceRepository,
	cart *CartService,
	clock clockwork.Clock,
	logger *zap.Logger,
) *StorageService {
	return &StorageService{
		store:  store,
		orders: orders,
		prefs:  prefs,
		cart:   cart,
		clock:  clock,
		logger: logger,
	}
}

func (s *StorageService) count(ctx context.Context, c storage.Collection) (int64, error) {
	var n int64
	err := s.store.Transaction(ctx, c, storage.ReadOnly, func(tx *storage.Tx) (err error) {
		n, err = tx.Count()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c, err)
	}
	return n, nil
}

// Info counts the records of every collection.
func (s *StorageService) Info(ctx context.Context) (*StorageInfo, error) {
	counts := make(map[storage.Collection]int64, len(storage.Collections))
	for _, c := range storage.Collections {
		n, err := s.count(ctx, c)
		if err != nil {
			return nil, err
		}
		counts[c] = n
	}
	return &StorageInfo{
		OrdersCount:      counts[storage.CollectionOrders],
		MenuCached:       counts[storage.CollectionMenu] > 0,
		CartItems:        counts[storage.CollectionCart],
		PreferencesCount: counts[storage.CollectionPreferences],
		SyncQueueCount:   counts[storage.CollectionSyncQueue],
	}, nil
}

// Export collects orders, cart and preferences.
func (s *StorageService) Export(ctx context.Context) (*ExportData, error) {
	orders, err := s.orders.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := s.prefs.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return &ExportData{
		Orders:      orders,
		Cart:        s.cart.Items(),
		Preferences: prefs,
		ExportDate:  s.clock.Now(),
	}, nil
}

// Import merges a backup into the store. Orders and preferences are upserted,
// the cart is replaced. Each collection is imported in its own transaction.
func (s *StorageService) Import(ctx context.Context, data *ExportData) error {
	if len(data.Orders) > 0 {
		if err := s.orders.SaveAll(ctx, data.Orders); err != nil {
			return err
		}
	}
	if data.Cart != nil {
		if _, err := s.cart.Save(ctx, data.Cart); err != nil {
			return err
		}
	}
	if len(data.Preferences) > 0 {
		if err := s.prefs.Put(ctx, data.Preferences...); err != nil {
			return err
		}
	}
	s.logger.Info("data imported",
		zap.Int("orders", len(data.Orders)), zap.Int("cart", len(data.Cart)), zap.Int("preferences", len(data.Preferences)))
	return nil
}

// ClearAll empties every collection, one after the other.
func (s *StorageService) ClearAll(ctx context.Context) error {
	for _, c := range storage.Collections {
		err := s.store.Transaction(ctx, c, storage.ReadWrite, func(tx *storage.Tx) error {
			return tx.Clear()
		})
		if err != nil {
			return fmt.Errorf("failed to clear %s: %w", c, err)
		}
	}
	if _, err := s.cart.Load(ctx); err != nil {
		return err
	}
	s.logger.Info("all local data cleared")
	return nil
}
