package services_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"coffeemasters/internal/cache"
	"coffeemasters/internal/models"
	"coffeemasters/internal/outbox"
	"coffeemasters/internal/repositories"
	"coffeemasters/internal/services"
	"coffeemasters/internal/storage"
)

// MockSubmitter is a mock implementation of services.OrderSubmitter
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) SubmitOrder(ctx context.Context, order *models.Order, key string) (*models.Order, error) {
	args := m.Called(order.ID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

var catalog = []models.CatalogCategory{
	{Name: "Coffees", Products: []models.Product{
		{ID: "latte", Name: "Latte", Price: 3.5},
		{ID: "mocha", Name: "Mocha", Price: 4},
	}},
	{Name: "Pastries", Products: []models.Product{
		{ID: "croissant", Name: "Croissant", Price: 2.25},
	}},
}

type env struct {
	store     *storage.Store
	clock     *clockwork.FakeClock
	events    *services.EventBus
	orders    *repositories.StoreOrderRepository
	menu      *services.MenuService
	cart      *services.CartService
	prefs     *services.PreferenceService
	storage   *services.StorageService
	outbox    *outbox.Coordinator
	submitter *MockSubmitter
	online    bool
	order     *services.OrderService
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	store := storage.New(storage.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "services.db")}, logger)
	require.NoError(t, store.Open(ctx))
	t.Cleanup(func() { _ = store.Close() })

	e := &env{
		store:     store,
		clock:     clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)),
		events:    services.NewEventBus(),
		orders:    repositories.NewStoreOrderRepository(store),
		submitter: new(MockSubmitter),
		online:    true,
	}
	prefRepo := repositories.NewStorePreferenceRepository(store)
	e.menu = services.NewMenuService(repositories.NewStoreMenuRepository(store), e.clock, e.events, logger)
	e.cart = services.NewCartService(repositories.NewStoreCartRepository(store), e.menu, e.events)
	e.prefs = services.NewPreferenceService(prefRepo, e.clock)
	e.storage = services.NewStorageService(store, e.orders, prefRepo, e.cart, e.clock, logger)
	e.outbox = outbox.NewCoordinator(repositories.NewStoreSyncQueueRepository(store),
		outbox.Config{MaxAttempts: 10, InitialBackoff: time.Second, MaxBackoff: time.Minute}, e.clock, nil, logger)
	t.Cleanup(e.outbox.Close)
	e.order = services.NewOrderService(e.orders, e.cart, e.submitter, e.outbox,
		func() bool { return e.online }, e.clock, e.events, logger)
	e.outbox.Register(models.ActionOrderSubmit, e.order.ReplaySubmit)

	require.NoError(t, e.menu.Replace(ctx, catalog))
	return e
}

func TestMenuService_IsValid(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	valid, err := e.menu.IsValid(ctx, time.Hour)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = e.menu.IsValid(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, valid)

	e.clock.Advance(59 * time.Minute)
	valid, err = e.menu.IsValid(ctx, time.Hour)
	require.NoError(t, err)
	assert.True(t, valid)

	e.clock.Advance(time.Minute)
	valid, err = e.menu.IsValid(ctx, time.Hour)
	require.NoError(t, err)
	assert.False(t, valid)

	require.NoError(t, e.menu.Replace(ctx, nil))
	valid, err = e.menu.IsValid(ctx, time.Hour)
	require.NoError(t, err)
	assert.False(t, valid, "empty snapshot is never valid")
}

func TestMenuService_CatalogAndProducts(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	got, err := e.menu.Categories(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, catalog, got)

	p, err := e.menu.Product(ctx, "croissant")
	require.NoError(t, err)
	assert.Equal(t, "Croissant", p.Name)

	_, err = e.menu.Product(ctx, "espresso")
	assert.ErrorIs(t, err, services.ErrProductNotFound)

	require.NoError(t, e.menu.ReplaceCatalog(ctx, []byte(`[{"name":"Teas","products":[{"id":"chai","name":"Chai","price":3}]}]`)))
	got, err = e.menu.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Teas", got[0].Name)

	assert.Error(t, e.menu.ReplaceCatalog(ctx, []byte(`{not json`)))
	got, err = e.menu.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1, "a broken catalog leaves the snapshot untouched")
}

func TestCartService_SaveThenLoad(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	saved := []models.CartEntry{
		{ProductID: "latte", Product: catalog[0].Products[0], Quantity: 2},
		{ProductID: "croissant", Product: catalog[1].Products[0], Quantity: 1},
		{ProductID: "mocha", Product: catalog[0].Products[1], Quantity: 5},
	}
	_, err := e.cart.Save(ctx, saved)
	require.NoError(t, err)

	// a fresh service sees the same cart
	reloaded := services.NewCartService(repositories.NewStoreCartRepository(e.store), e.menu, nil)
	loaded, err := reloaded.Load(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, saved, loaded)

	_, err = e.cart.Save(ctx, []models.CartEntry{{ProductID: "latte", Quantity: 0}})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	assert.Len(t, e.cart.Items(), 3)
}

func TestCartService_AddRemoveClear(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	var changes int
	e.events.Subscribe(func(ev services.Event) {
		if ev.Topic == services.TopicCartChanged {
			changes++
		}
	})

	_, err := e.cart.Add(ctx, "latte")
	require.NoError(t, err)
	items, err := e.cart.Add(ctx, "latte")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	items, err = e.cart.Add(ctx, "croissant")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.InDelta(t, 9.25, e.cart.Total(), 0.001)

	_, err = e.cart.Add(ctx, "espresso")
	assert.ErrorIs(t, err, services.ErrProductNotFound)

	items, err = e.cart.Remove(ctx, "latte")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "croissant", items[0].ProductID)

	require.NoError(t, e.cart.Clear(ctx))
	assert.Empty(t, e.cart.Items())
	assert.Equal(t, 5, changes)
}

func TestOrderService_PlaceOnline(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, err := e.cart.Add(ctx, "mocha")
	require.NoError(t, err)

	e.submitter.On("SubmitOrder", mock.MatchedBy(models.IsLocalOrderID), mock.AnythingOfType("string")).
		Return(&models.Order{ID: "srv-1", Status: "received"}, nil).Once()

	order, err := e.order.PlaceOrder(ctx, models.CustomerInfo{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", order.ID)
	assert.Equal(t, "received", order.Status)
	assert.False(t, order.IsLocalOnly)
	assert.True(t, models.IsLocalOrderID(order.LocalID))
	assert.Equal(t, 4.0, order.Total)
	assert.Empty(t, e.cart.Items())

	key := e.submitter.Calls[0].Arguments.String(1)
	assert.Equal(t, "order-"+order.LocalID, key)

	pending, err := e.outbox.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	e.submitter.AssertExpectations(t)
}

func TestOrderService_NetworkFailureQueuesOrder(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, err := e.cart.Add(ctx, "latte")
	require.NoError(t, err)

	e.submitter.On("SubmitOrder", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: timeout", cache.ErrNetworkUnavailable)).Once()

	order, err := e.order.PlaceOrder(ctx, models.CustomerInfo{Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOfflinePending, order.Status)
	assert.True(t, order.IsLocalOnly)
	assert.Empty(t, e.cart.Items())

	pending, err := e.order.GetPendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, order.ID, pending[0].ID)

	queued, err := e.outbox.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, queued, 1)
}

func TestOrderService_RejectedOrderKeepsCart(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, err := e.cart.Add(ctx, "latte")
	require.NoError(t, err)

	e.submitter.On("SubmitOrder", mock.Anything, mock.Anything).
		Return(nil, errors.New("status 422")).Once()

	_, err = e.order.PlaceOrder(ctx, models.CustomerInfo{Name: "Ada"})
	assert.Error(t, err)
	assert.Len(t, e.cart.Items(), 1)

	all, err := e.order.GetAllOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOrderService_Validation(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	_, err := e.order.PlaceOrder(ctx, models.CustomerInfo{Name: "Ada"})
	assert.ErrorIs(t, err, services.ErrEmptyCart)

	_, err = e.cart.Add(ctx, "latte")
	require.NoError(t, err)
	_, err = e.order.PlaceOrder(ctx, models.CustomerInfo{Name: ""})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	e.submitter.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
}

func TestOrderService_OfflineOrderSyncedByDrain(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	e.online = false

	_, err := e.cart.Add(ctx, "latte")
	require.NoError(t, err)
	order, err := e.order.PlaceOrder(ctx, models.CustomerInfo{Name: "Ada"})
	require.NoError(t, err)
	require.True(t, order.IsLocalOnly)
	e.submitter.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)

	queued, err := e.outbox.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	var synced []services.Event
	e.events.Subscribe(func(ev services.Event) {
		if ev.Topic == services.TopicOrderSynced {
			synced = append(synced, ev)
		}
	})

	e.online = true
	e.submitter.On("SubmitOrder", order.ID, "order-"+order.ID).
		Return(&models.Order{ID: "srv-7", Status: models.OrderStatusPending}, nil).Once()

	result, err := e.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Replayed)

	queued, err = e.outbox.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, queued)

	got, err := e.order.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLocalOnly)
	assert.Equal(t, "srv-7", got.ID)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	assert.Equal(t, order.Items, got.Items)

	pending, err := e.order.GetPendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Len(t, synced, 1)
	e.submitter.AssertExpectations(t)

	_, err = e.order.GetOrderByID(ctx, "srv-404")
	assert.ErrorIs(t, err, services.ErrOrderNotFound)
}

func TestPreferenceService(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	v, err := e.prefs.Get(ctx, "theme", "light")
	require.NoError(t, err)
	assert.Equal(t, "light", v)

	require.NoError(t, e.prefs.Set(ctx, "theme", "dark"))
	require.NoError(t, e.prefs.Set(ctx, "notifications", map[string]any{"push": true}))

	v, err = e.prefs.Get(ctx, "theme", "light")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)

	all, err := e.prefs.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark", "notifications": map[string]any{"push": true}}, all)

	assert.ErrorIs(t, e.prefs.Set(ctx, "", 1), services.ErrInvalidInput)
}

func TestStorageService_ExportImportClear(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	e.online = false

	_, err := e.cart.Add(ctx, "latte")
	require.NoError(t, err)
	_, err = e.order.PlaceOrder(ctx, models.CustomerInfo{Name: "Ada"})
	require.NoError(t, err)
	_, err = e.cart.Add(ctx, "mocha")
	require.NoError(t, err)
	require.NoError(t, e.prefs.Set(ctx, "theme", "dark"))

	info, err := e.storage.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, services.StorageInfo{
		OrdersCount:      1,
		MenuCached:       true,
		CartItems:        1,
		PreferencesCount: 1,
		SyncQueueCount:   1,
	}, *info)

	backup, err := e.storage.Export(ctx)
	require.NoError(t, err)
	assert.Len(t, backup.Orders, 1)
	assert.Len(t, backup.Cart, 1)
	assert.Len(t, backup.Preferences, 1)
	assert.Equal(t, e.clock.Now(), backup.ExportDate)

	require.NoError(t, e.storage.ClearAll(ctx))
	info, err = e.storage.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, services.StorageInfo{}, *info)
	assert.Empty(t, e.cart.Items())

	require.NoError(t, e.storage.Import(ctx, backup))
	info, err = e.storage.Info(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.OrdersCount)
	assert.EqualValues(t, 1, info.CartItems)
	assert.EqualValues(t, 1, info.PreferencesCount)
	assert.Len(t, e.cart.Items(), 1)
}
