package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"

	"coffeemasters/internal/models"
	"coffeemasters/internal/repositories"
)

// CartService holds the current cart in memory and persists every change.
type CartService struct {
	repo     repositories.CartRepository
	menu     *MenuService
	events   *EventBus
	validate *validator.Validate

	mu    sync.Mutex
	items []models.CartEntry
}

// NewCartService creates a new CartService with an empty cart. Call Load to restore
// the persisted one.
func NewCartService(repo repositories.CartRepository, menu *MenuService, events *EventBus) *CartService {
	return &CartService{
		repo:     repo,
		menu:     menu,
		events:   events,
		validate: validator.New(),
	}
}

// Load restores the persisted cart.
func (s *CartService) Load(ctx context.Context) ([]models.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.items = items
	return slices.Clone(s.items), nil
}

// Items returns a copy of the cart.
func (s *CartService) Items() []models.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Total sums price times quantity.
func (s *CartService) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, item := range s.items {
		total += item.Product.Price * float64(item.Quantity)
	}
	return total
}

// Add puts one more unit of the product in the cart.
func (s *CartService) Add(ctx context.Context, productID string) ([]models.CartEntry, error) {
	product, err := s.menu.Product(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.update(ctx, func(items []models.CartEntry) ([]models.CartEntry, error) {
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity++
				return items, nil
			}
		}
		return append(items, models.CartEntry{ProductID: productID, Product: *product, Quantity: 1}), nil
	})
}

// Remove drops the product from the cart whatever its quantity.
func (s *CartService) Remove(ctx context.Context, productID string) ([]models.CartEntry, error) {
	return s.update(ctx, func(items []models.CartEntry) ([]models.CartEntry, error) {
		return slices.DeleteFunc(items, func(e models.CartEntry) bool { return e.ProductID == productID }), nil
	})
}

// Save replaces the whole cart.
func (s *CartService) Save(ctx context.Context, entries []models.CartEntry) ([]models.CartEntry, error) {
	for i := range entries {
		if entries[i].ProductID == "" {
			entries[i].ProductID = entries[i].Product.ID
		}
		if err := s.validate.Struct(&entries[i]); err != nil {
			return nil, fmt.Errorf("%w: cart entry %s: %w", ErrInvalidInput, entries[i].ProductID, err)
		}
	}
	return s.update(ctx, func([]models.CartEntry) ([]models.CartEntry, error) {
		return slices.Clone(entries), nil
	})
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context) error {
	_, err := s.update(ctx, func([]models.CartEntry) ([]models.CartEntry, error) {
		return nil, nil
	})
	return err
}

// update applies fn to a copy of the cart, persists the result and only then makes
// it current.
func (s *CartService) update(ctx context.Context, fn func([]models.CartEntry) ([]models.CartEntry, error)) ([]models.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(slices.Clone(s.items))
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return nil, err
	}
	s.items = next

	out := slices.Clone(s.items)
	s.events.Publish(TopicCartChanged, len(out))
	return out, nil
}
