package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// schemaVersion is bumped whenever a collection or index is added.
const schemaVersion = 1

// Mode of a collection transaction.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// Config selects the database behind the store.
type Config struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

type storeMeta struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value string
}

func (storeMeta) TableName() string { return "store_meta" }

// Store is the durable local store. Every operation runs inside a transaction
// scoped to exactly one collection; operations on the same collection are
// serialized, operations on different collections may interleave.
// There is no cross-collection atomicity.
type Store struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.RWMutex
	db      *gorm.DB
	openErr error

	locks map[Collection]*sync.RWMutex
}

// New creates a store. It must be opened before use.
func New(cfg Config, logger *zap.Logger) *Store {
	locks := make(map[Collection]*sync.RWMutex, len(Collections))
	for _, c := range Collections {
		locks[c] = &sync.RWMutex{}
	}
	return &Store{
		cfg:     cfg,
		logger:  logger,
		openErr: fmt.Errorf("%w: store is not open", ErrStorageUnavailable),
		locks:   locks,
	}
}

// Open connects to the database and creates or upgrades the schema.
// On failure the store stays unavailable until a later Open succeeds.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := s.connect(ctx)
	if err != nil {
		s.openErr = fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		s.logger.Error("failed to open local store", zap.String("driver", s.cfg.Driver), zap.Error(err))
		return s.openErr
	}

	s.db = db
	s.openErr = nil
	s.logger.Info("local store opened", zap.String("driver", s.cfg.Driver))
	return nil
}

func (s *Store) connect(ctx context.Context) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch s.cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(s.cfg.DSN)
	case "postgres":
		dialector = postgres.Open(s.cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported driver %q", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	if s.cfg.Driver != "postgres" {
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	if err := s.migrate(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// migrate creates missing collections and indices. Existing data is never touched,
// so running it against a current schema is a no-op.
func (s *Store) migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)

	tables := []any{&storeMeta{}}
	for _, c := range Collections {
		tables = append(tables, schema[c].model)
	}
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	var meta storeMeta
	err := db.Where("name = ?", "schema_version").Take(&meta).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	default:
		if v, _ := strconv.Atoi(meta.Value); v > schemaVersion {
			s.logger.Warn("local store schema is newer than this build",
				zap.Int("stored", v), zap.Int("expected", schemaVersion))
			return nil
		}
	}

	meta = storeMeta{Name: "schema_version", Value: strconv.Itoa(schemaVersion)}
	if err := db.Save(&meta).Error; err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}
	return nil
}

// SchemaVersion returns the schema version recorded in the store.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, s.openErr
	}

	var meta storeMeta
	if err := s.db.WithContext(ctx).Where("name = ?", "schema_version").Take(&meta).Error; err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return strconv.Atoi(meta.Value)
}

// Close releases the database. The store is unavailable afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	s.db = nil
	s.openErr = fmt.Errorf("%w: store is closed", ErrStorageUnavailable)
	if err != nil {
		return fmt.Errorf("failed to get connection pool: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close local store: %w", err)
	}
	return nil
}

// Transaction runs fn atomically against a single collection. If fn returns an
// error every write it made is rolled back. fn must not call back into the Store.
func (s *Store) Transaction(ctx context.Context, name Collection, mode Mode, fn func(tx *Tx) error) error {
	def, ok := schema[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return s.openErr
	}

	lock := s.locks[name]
	if mode == ReadWrite {
		lock.Lock()
		defer lock.Unlock()
	} else {
		lock.RLock()
		defer lock.RUnlock()
	}

	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Tx{db: gtx, def: def, mode: mode})
	})
}
