package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Storage persists cache partitions.
type Storage interface {
	// Match returns the entry for url from the first partition (in order) holding it.
	Match(ctx context.Context, partitions []string, url string) (*Response, error)
	Put(ctx context.Context, partition, url string, resp *Response) error
	// ReplacePartition swaps the whole content of a partition atomically.
	ReplacePartition(ctx context.Context, partition string, entries map[string]*Response) error
	CreatePartition(ctx context.Context, partition string) error
	Partitions(ctx context.Context) ([]string, error)
	DeletePartition(ctx context.Context, partition string) error
	ActiveVersion(ctx context.Context) (string, error)
	SetActiveVersion(ctx context.Context, version string) error
}

type cachedResponse struct {
	CacheName  string `gorm:"primaryKey;size:128"`
	URL        string `gorm:"primaryKey;size:512"`
	StatusCode int
	Header     http.Header `gorm:"type:text;serializer:json"`
	Body       []byte
	StoredAt   time.Time
}

func (cachedResponse) TableName() string { return "cached_responses" }

type cachePartition struct {
	Name      string `gorm:"primaryKey;size:128"`
	CreatedAt time.Time
}

func (cachePartition) TableName() string { return "cache_partitions" }

type cacheMeta struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value string
}

func (cacheMeta) TableName() string { return "cache_meta" }

// GormStorage keeps partitions in a SQL database.
type GormStorage struct {
	db *gorm.DB
}

// OpenStorage connects to the database and creates the cache tables.
func OpenStorage(ctx context.Context, dialector gorm.Dialector) (*GormStorage, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache storage: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	if dialector.Name() == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.WithContext(ctx).AutoMigrate(&cachedResponse{}, &cachePartition{}, &cacheMeta{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate cache storage: %w", err)
	}
	return &GormStorage{db: db}, nil
}

// Close releases the database.
func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Match(ctx context.Context, partitions []string, url string) (*Response, error) {
	if len(partitions) == 0 {
		return nil, ErrCacheMiss
	}

	var rows []cachedResponse
	err := s.db.WithContext(ctx).
		Where("url = ? AND cache_name IN ?", url, partitions).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to match %s: %w", url, err)
	}

	for _, p := range partitions {
		for _, row := range rows {
			if row.CacheName == p {
				return &Response{
					StatusCode: row.StatusCode,
					Header:     row.Header,
					Body:       row.Body,
					Source:     SourceCache,
					Partition:  row.CacheName,
				}, nil
			}
		}
	}
	return nil, ErrCacheMiss
}

func toRow(partition, url string, resp *Response, now time.Time) *cachedResponse {
	return &cachedResponse{
		CacheName:  partition,
		URL:        url,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		StoredAt:   now,
	}
}

func ensurePartition(tx *gorm.DB, partition string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&cachePartition{Name: partition, CreatedAt: time.Now()}).Error
}

func (s *GormStorage) Put(ctx context.Context, partition, url string, resp *Response) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePartition(tx, partition); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(toRow(partition, url, resp, time.Now())).Error
	})
	if err != nil {
		return fmt.Errorf("failed to put %s into %s: %w", url, partition, err)
	}
	return nil
}

func (s *GormStorage) ReplacePartition(ctx context.Context, partition string, entries map[string]*Response) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cache_name = ?", partition).Delete(&cachedResponse{}).Error; err != nil {
			return err
		}
		if err := ensurePartition(tx, partition); err != nil {
			return err
		}
		now := time.Now()
		for url, resp := range entries {
			if err := tx.Create(toRow(partition, url, resp, now)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace partition %s: %w", partition, err)
	}
	return nil
}

func (s *GormStorage) CreatePartition(ctx context.Context, partition string) error {
	if err := ensurePartition(s.db.WithContext(ctx), partition); err != nil {
		return fmt.Errorf("failed to create partition %s: %w", partition, err)
	}
	return nil
}

func (s *GormStorage) Partitions(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&cachePartition{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	return names, nil
}

func (s *GormStorage) DeletePartition(ctx context.Context, partition string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cache_name = ?", partition).Delete(&cachedResponse{}).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", partition).Delete(&cachePartition{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete partition %s: %w", partition, err)
	}
	return nil
}

func (s *GormStorage) ActiveVersion(ctx context.Context) (string, error) {
	var meta cacheMeta
	err := s.db.WithContext(ctx).Where("name = ?", "active_version").Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read active version: %w", err)
	}
	return meta.Value, nil
}

func (s *GormStorage) SetActiveVersion(ctx context.Context, version string) error {
	meta := cacheMeta{Name: "active_version", Value: version}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&meta).Error; err != nil {
		return fmt.Errorf("failed to write active version: %w", err)
	}
	return nil
}
