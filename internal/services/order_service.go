package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"coffeemasters/internal/cache"
	"coffeemasters/internal/models"
	"coffeemasters/internal/repositories"
	"coffeemasters/internal/storage"
)

// OrderSubmitter sends an order to the storefront.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, order *models.Order, idempotencyKey string) (*models.Order, error)
}

// Outbox records actions to replay once the connection is back.
type Outbox interface {
	Enqueue(ctx context.Context, action string, payload any) (*models.SyncQueueEntry, error)
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orders    repositories.OrderRepository
	cart      *CartService
	submitter OrderSubmitter
	outbox    Outbox
	online    func() bool
	clock     clockwork.Clock
	events    *EventBus
	logger    *zap.Logger
	validate  *validator.Validate
}

// NewOrderService creates a new OrderService. online reports connectivity.
func NewOrderService(
	orders repositories.OrderRepository,
	cart *CartService,
	submitter OrderSubmitter,
	outbox Outbox,
	online func() bool,
	clock clockwork.Clock,
	events *EventBus,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		cart:      cart,
		submitter: submitter,
		outbox:    outbox,
		online:    online,
		clock:     clock,
		events:    events,
		logger:    logger,
		validate:  validator.New(),
	}
}

// idempotencyKey is derived from the local id so that an online attempt and any
// later replay of the same order are recognised as one submission.
func idempotencyKey(localID string) string {
	return "order-" + localID
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	return s.orders.GetAll(ctx)
}

// GetOrderByID retrieves an order by its server id or by the local id it was created with.
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) && models.IsLocalOrderID(id) {
		order, err = s.orders.GetByLocalID(ctx, id)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return order, err
}

// GetPendingOrders returns the orders still waiting to be synced.
func (s *OrderService) GetPendingOrders(ctx context.Context) ([]models.Order, error) {
	return s.orders.GetByStatus(ctx, models.OrderStatusOfflinePending)
}

// PlaceOrder turns the cart into an order. Online, the order goes straight to the
// storefront; when the network is unavailable it is stored locally and queued for
// sync. Either way the cart is cleared.
func (s *OrderService) PlaceOrder(ctx context.Context, customer models.CustomerInfo) (*models.Order, error) {
	cartItems := s.cart.Items()
	if len(cartItems) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]models.OrderItem, 0, len(cartItems))
	for _, entry := range cartItems {
		items = append(items, models.OrderItem{
			ProductID: entry.ProductID,
			Name:      entry.Product.Name,
			Price:     entry.Product.Price,
			Quantity:  entry.Quantity,
		})
	}

	now := s.clock.Now()
	localID := models.NewLocalOrderID(now)
	order := &models.Order{
		ID:           localID,
		LocalID:      localID,
		Items:        items,
		Total:        models.CalculateTotal(items),
		CustomerInfo: customer,
		Status:       models.OrderStatusPending,
		Timestamp:    now,
	}
	if err := s.validate.Struct(order); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if s.online == nil || s.online() {
		placed, err := s.submit(ctx, order)
		switch {
		case err == nil:
			s.logger.Info("order placed", zap.String("order_id", placed.ID))
			s.events.Publish(TopicOrderPlaced, placed)
			return placed, s.clearCart(ctx)
		case !errors.Is(err, cache.ErrNetworkUnavailable):
			return nil, err
		}
		s.logger.Warn("order submission failed, queueing it for sync", zap.String("local_id", localID), zap.Error(err))
	}

	queued, err := s.queue(ctx, order)
	if err != nil {
		return nil, err
	}
	return queued, s.clearCart(ctx)
}

func (s *OrderService) submit(ctx context.Context, order *models.Order) (*models.Order, error) {
	created, err := s.submitter.SubmitOrder(ctx, order, idempotencyKey(order.LocalID))
	if err != nil {
		return nil, err
	}
	synced := syncedCopy(order, created)
	if err := s.orders.Save(ctx, synced); err != nil {
		return nil, fmt.Errorf("failed to save order %s in repository: %w", synced.ID, err)
	}
	return synced, nil
}

func (s *OrderService) queue(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.Status = models.OrderStatusOfflinePending
	order.IsLocalOnly = true

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save offline order in repository: %w", err)
	}
	if _, err := s.outbox.Enqueue(ctx, models.ActionOrderSubmit, order); err != nil {
		// the order would never sync without its queue entry
		if delErr := s.orders.Delete(ctx, order.ID); delErr != nil {
			s.logger.Error("failed to roll back offline order", zap.String("local_id", order.ID), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("order saved for offline sync", zap.String("local_id", order.ID))
	s.events.Publish(TopicOrderQueued, order)
	return order, nil
}

func (s *OrderService) clearCart(ctx context.Context) error {
	if err := s.cart.Clear(ctx); err != nil {
		return fmt.Errorf("order placed but cart was not cleared: %w", err)
	}
	return nil
}

// ReplaySubmit is the outbox replay of an order_submit entry.
func (s *OrderService) ReplaySubmit(ctx context.Context, entry models.SyncQueueEntry) error {
	var order models.Order
	if err := entry.Decode(&order); err != nil {
		return err
	}
	if order.LocalID == "" {
		order.LocalID = order.ID
	}

	created, err := s.submitter.SubmitOrder(ctx, &order, idempotencyKey(order.LocalID))
	if err != nil {
		return err
	}

	synced := syncedCopy(&order, created)
	if err := s.orders.MarkSynced(ctx, order.ID, synced); err != nil {
		return err
	}
	s.logger.Info("offline order synced", zap.String("local_id", order.LocalID), zap.String("order_id", synced.ID))
	s.events.Publish(TopicOrderSynced, synced)
	return nil
}

// syncedCopy merges the storefront's answer into the local order. Fields the
// storefront left out keep their local value.
func syncedCopy(local, created *models.Order) *models.Order {
	synced := *local
	if created != nil {
		if created.ID != "" {
			synced.ID = created.ID
		}
		if created.Status != "" {
			synced.Status = created.Status
		}
		if created.UserID != "" {
			synced.UserID = created.UserID
		}
		if created.Total != 0 {
			synced.Total = created.Total
		}
		if !created.Timestamp.IsZero() {
			synced.Timestamp = created.Timestamp
		}
	}
	if synced.Status == models.OrderStatusOfflinePending {
		synced.Status = models.OrderStatusPending
	}
	synced.LocalID = local.LocalID
	synced.IsLocalOnly = false
	return &synced
}
