package cache

import (
	"context"
	"time"

	"ordersite/internal/models"
)

const (
	settingsKey = "settings:site"
	settingsTTL = 30 * time.Second
)

type SettingsStore interface {
	Get(ctx context.Context) (*models.SiteSettings, error)
	Save(ctx context.Context, s *models.SiteSettings) error
}

// Settings is a read-through cache over the singleton settings document.
// Saves go to the store first and then replace the cached copy. The document
// carries mail credentials, so it is cached in process memory only; each
// instance picks up another instance's save within settingsTTL.
type Settings struct {
	store SettingsStore
	cache *Cache
}

func NewSettings(store SettingsStore, cache *Cache) *Settings {
	return &Settings{store: store, cache: cache}
}

func (s *Settings) Get(ctx context.Context) (*models.SiteSettings, error) {
	var cached models.SiteSettings
	if s.cache.GetLocal(settingsKey, &cached) {
		return &cached, nil
	}
	fresh, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetLocal(settingsKey, fresh, settingsTTL)
	return fresh, nil
}

func (s *Settings) Save(ctx context.Context, settings *models.SiteSettings) error {
	// Delete also clears any copy a previous release left in redis.
	s.cache.Delete(ctx, settingsKey)
	if err := s.store.Save(ctx, settings); err != nil {
		return err
	}
	s.cache.SetLocal(settingsKey, settings, settingsTTL)
	return nil
}
