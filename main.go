package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"

	"coffeemasters/internal/api"
	"coffeemasters/internal/cache"
	"coffeemasters/internal/config"
	"coffeemasters/internal/connectivity"
	"coffeemasters/internal/handlers"
	"coffeemasters/internal/middleware"
	"coffeemasters/internal/models"
	"coffeemasters/internal/notifications"
	"coffeemasters/internal/outbox"
	"coffeemasters/internal/repositories"
	"coffeemasters/internal/services"
	"coffeemasters/internal/storage"
	"coffeemasters/pkg/logger"
	"coffeemasters/pkg/rabbitmq"
)

// App holds the wired offline layer and the HTTP server in front of it.
type App struct {
	Fiber *fiber.App

	cfg     *config.Config
	logger  *zap.Logger
	store   *storage.Store
	cacheDB *cache.GormStorage
	cache   *cache.Manager
	client  *api.Client
	monitor *connectivity.Monitor
	prober  *connectivity.Prober
	outbox  *outbox.Coordinator
	cart    *services.CartService
	push    *notifications.Handler
	mq      *rabbitmq.Client

	cancel context.CancelFunc
}

// NewApp opens the local store and the cache and wires every component.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: log}

	// --- Durable local store ---
	a.store = storage.New(storage.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN}, log.Named("store"))
	if err := a.store.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	orderRepo := repositories.NewStoreOrderRepository(a.store)
	menuRepo := repositories.NewStoreMenuRepository(a.store)
	cartRepo := repositories.NewStoreCartRepository(a.store)
	prefRepo := repositories.NewStorePreferenceRepository(a.store)
	queueRepo := repositories.NewStoreSyncQueueRepository(a.store)

	clock := clockwork.NewRealClock()
	events := services.NewEventBus()
	events.Subscribe(func(e services.Event) {
		log.Debug("event", zap.String("topic", e.Topic), zap.Any("data", e.Data))
	})

	a.client = api.NewClient(api.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		OrdersPath: cfg.API.OrdersPath,
		HealthPath: cfg.API.HealthPath,
	}, log.Named("api"))

	// --- Services ---
	menuService := services.NewMenuService(menuRepo, clock, events, log.Named("menu"))
	a.cart = services.NewCartService(cartRepo, menuService, events)
	prefService := services.NewPreferenceService(prefRepo, clock)

	a.monitor = connectivity.NewMonitor(cfg.Connectivity.InitialOnline, log.Named("connectivity"))
	a.prober = connectivity.NewProber(a.client, a.monitor, clock, cfg.Connectivity.ProbeInterval, log.Named("probe"))

	a.outbox = outbox.NewCoordinator(queueRepo, outbox.Config{
		MaxAttempts:    cfg.Sync.MaxAttempts,
		InitialBackoff: cfg.Sync.InitialBackoff,
		MaxBackoff:     cfg.Sync.MaxBackoff,
	}, clock, a.monitor.Online, log.Named("outbox"))

	orderService := services.NewOrderService(orderRepo, a.cart, a.client, a.outbox, a.monitor.Online, clock, events, log.Named("orders"))
	a.outbox.Register(models.ActionOrderSubmit, orderService.ReplaySubmit)
	storageService := services.NewStorageService(a.store, orderRepo, prefRepo, a.cart, clock, log)

	// --- Resource cache ---
	cacheDB, err := cache.OpenStorage(ctx, sqlite.Open(cfg.Cache.DSN))
	if err != nil {
		_ = a.store.Close()
		return nil, fmt.Errorf("failed to open cache storage: %w", err)
	}
	a.cacheDB = cacheDB
	a.cache = cache.NewManager(cache.Config{
		AppName:     cfg.App.Name,
		Version:     cfg.Cache.Version,
		Manifest:    cfg.Cache.Manifest,
		CatalogPath: cfg.API.CatalogPath,
		Rules: cache.Rules{
			NetworkFirst: cfg.Cache.NetworkFirst,
			CacheFirst:   cfg.Cache.CacheFirst,
		},
		NetworkTimeout:      cfg.Cache.NetworkTimeout,
		PrecacheConcurrency: cfg.Cache.PrecacheConcurrency,
		HTMLFallbacks:       cfg.Cache.HTMLFallbacks,
		ImagePlaceholder:    cfg.Cache.ImagePlaceholder,
	}, cacheDB, a.client, menuService, log.Named("cache"))
	if err := a.cache.Start(ctx); err != nil {
		a.closeStores()
		return nil, fmt.Errorf("failed to start cache manager: %w", err)
	}

	a.monitor.OnReconnect(a.outbox.Trigger)
	a.monitor.OnReconnect(func() {
		a.cache.RevalidateAsync(cfg.API.CatalogPath)
	})

	if _, err := a.cart.Load(ctx); err != nil {
		log.Warn("failed to load cart", zap.Error(err))
	}

	a.push = notifications.NewHandler(notifications.NewLogNotifier(log), clock, log.Named("push"))

	// --- Fiber ---
	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.NetworkStatus(a.monitor))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
			"online": a.monitor.Online(),
		})
	})

	apiV1 := app.Group("/api/v1")
	handlers.NewStatusHandler(a.monitor, a.cache, a.outbox).RegisterRoutes(apiV1)
	handlers.NewMenuHandler(menuService, cfg.Menu.MaxAge).RegisterRoutes(apiV1)
	handlers.NewCartHandler(a.cart).RegisterRoutes(apiV1)
	handlers.NewOrderHandler(orderService, log).RegisterRoutes(apiV1)
	handlers.NewPreferenceHandler(prefService).RegisterRoutes(apiV1)
	handlers.NewSyncHandler(a.outbox).RegisterRoutes(apiV1)
	handlers.NewStorageHandler(storageService, log).RegisterRoutes(apiV1)
	handlers.NewNotificationHandler(a.push).RegisterRoutes(apiV1)

	// Everything else is a storefront resource.
	handlers.NewProxyHandler(a.cache, log).RegisterRoutes(app)

	a.Fiber = app
	return a, nil
}

// Start runs the install, the reachability probe, the first drain and the
// push consumer. It returns once they are started.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	if err := a.cache.Setup(ctx); err != nil {
		a.logger.Warn("cache install failed, serving previous version",
			zap.String("version", a.cache.ActiveVersion()), zap.Error(err))
	}

	go a.prober.Run(ctx)

	if a.monitor.Online() {
		a.outbox.Trigger()
	}

	if !a.cfg.Push.Enabled {
		return
	}
	mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: a.cfg.Push.URL, Queue: a.cfg.Push.Queue}, a.logger.Named("amqp"))
	if err != nil {
		a.logger.Warn("push notifications disabled", zap.Error(err))
		return
	}
	a.mq = mq
	if err := mq.Consume(func(body []byte) error {
		return a.push.Handle(ctx, body)
	}); err != nil {
		a.logger.Warn("failed to start push consumer", zap.Error(err))
	}
}

func (a *App) closeStores() {
	if err := a.cacheDB.Close(); err != nil {
		a.logger.Error("failed to close cache storage", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close local store", zap.Error(err))
	}
}

// Close stops background work and releases the stores.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	var errs []error
	if err := a.Fiber.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.outbox.Close()
	a.cache.Close()
	a.closeStores()
	return errors.Join(errs...)
}

func main() {
	// --- Configuration ---
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.App.LogLevel, cfg.App.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()
	app, err := NewApp(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to create app", zap.Error(err))
	}
	app.Start(ctx)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		zl.Info("starting server", zap.String("port", cfg.App.Port))
		if err := app.Fiber.Listen(cfg.App.Port); err != nil {
			zl.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	zl.Info("shutting down server")
	if err := app.Close(); err != nil {
		zl.Error("error during shutdown", zap.Error(err))
	}
	zl.Info("server gracefully stopped")
}
