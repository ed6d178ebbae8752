package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"coffeemasters/internal/models"
	"coffeemasters/internal/repositories"
)

// MenuService handles the menu snapshot kept for offline use.
type MenuService struct {
	repo   repositories.MenuRepository
	clock  clockwork.Clock
	events *EventBus
	logger *zap.Logger
}

// NewMenuService creates a new MenuService.
func NewMenuService(repo repositories.MenuRepository, clock clockwork.Clock, events *EventBus, logger *zap.Logger) *MenuService {
	return &MenuService{
		repo:   repo,
		clock:  clock,
		events: events,
		logger: logger,
	}
}

// Replace swaps the whole snapshot for the given catalog. Every category is stamped
// with the current time.
func (s *MenuService) Replace(ctx context.Context, catalog []models.CatalogCategory) error {
	now := s.clock.Now()
	categories := make([]models.MenuCategory, 0, len(catalog))
	for _, c := range catalog {
		categories = append(categories, models.MenuCategory{
			ID:          c.Name,
			Name:        c.Name,
			Category:    c.Name,
			Products:    c.Products,
			LastUpdated: now,
		})
	}

	if err := s.repo.Replace(ctx, categories); err != nil {
		return err
	}
	s.logger.Info("menu snapshot replaced", zap.Int("categories", len(categories)))
	s.events.Publish(TopicMenuReplaced, len(categories))
	return nil
}

// ReplaceCatalog decodes a catalog response body and replaces the snapshot with it.
func (s *MenuService) ReplaceCatalog(ctx context.Context, body []byte) error {
	var catalog []models.CatalogCategory
	if err := json.Unmarshal(body, &catalog); err != nil {
		return fmt.Errorf("failed to decode catalog: %w", err)
	}
	return s.Replace(ctx, catalog)
}

// IsValid reports whether the snapshot is non-empty and its oldest category is
// younger than maxAge.
func (s *MenuService) IsValid(ctx context.Context, maxAge time.Duration) (bool, error) {
	categories, err := s.repo.GetAll(ctx)
	if err != nil {
		return false, err
	}
	if len(categories) == 0 {
		return false, nil
	}

	oldest := categories[0].LastUpdated
	for _, c := range categories[1:] {
		if c.LastUpdated.Before(oldest) {
			oldest = c.LastUpdated
		}
	}
	return s.clock.Since(oldest) < maxAge, nil
}

// Categories returns the snapshot in catalog shape.
func (s *MenuService) Categories(ctx context.Context) ([]models.CatalogCategory, error) {
	categories, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	catalog := make([]models.CatalogCategory, 0, len(categories))
	for _, c := range categories {
		catalog = append(catalog, models.CatalogCategory{Name: c.Name, Products: c.Products})
	}
	return catalog, nil
}

// Product looks a product up by id across all categories.
func (s *MenuService) Product(ctx context.Context, id string) (*models.Product, error) {
	categories, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		for i := range c.Products {
			if c.Products[i].ID == id {
				p := c.Products[i]
				return &p, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
}
