package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"coffeemasters/internal/models"
	"coffeemasters/internal/repositories"
	"coffeemasters/internal/storage"
)

// PreferenceService stores user preferences as JSON values.
type PreferenceService struct {
	repo  repositories.PreferenceRepository
	clock clockwork.Clock
}

func NewPreferenceService(repo repositories.PreferenceRepository, clock clockwork.Clock) *PreferenceService {
	return &PreferenceService{repo: repo, clock: clock}
}

// Set stores value under key.
func (s *PreferenceService) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return fmt.Errorf("%w: empty preference key", ErrInvalidInput)
	}
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: preference %s: %w", ErrInvalidInput, key, err)
	}
	return s.repo.Put(ctx, models.Preference{Key: key, Value: string(body), Timestamp: s.clock.Now()})
}

// Get returns the value stored under key, or defaultValue when there is none.
func (s *PreferenceService) Get(ctx context.Context, key string, defaultValue any) (any, error) {
	pref, err := s.repo.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return defaultValue, nil
	}
	if err != nil {
		return nil, err
	}

	var value any
	if err := json.Unmarshal([]byte(pref.Value), &value); err != nil {
		return nil, fmt.Errorf("failed to decode preference %s: %w", key, err)
	}
	return value, nil
}

// All returns every preference decoded.
func (s *PreferenceService) All(ctx context.Context) (map[string]any, error) {
	prefs, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(prefs))
	for _, p := range prefs {
		var value any
		if err := json.Unmarshal([]byte(p.Value), &value); err != nil {
			return nil, fmt.Errorf("failed to decode preference %s: %w", p.Key, err)
		}
		out[p.Key] = value
	}
	return out, nil
}
