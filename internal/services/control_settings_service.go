package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"plant-monitor-service/internal/database/docstore"
	"plant-monitor-service/internal/models"
)

var ErrInvalidControls = errors.New("invalid control settings")

// ControlLocalStore is the fallback persistence tier for control settings.
type ControlLocalStore interface {
	LoadControls(ctx context.Context) (*models.ControlSettings, error)
	SaveControls(ctx context.Context, settings models.ControlSettings) error
}

// ControlSettingsService owns the automated-control settings document. Saves
// replace the whole document; remote changes are mirrored while watching.
type ControlSettingsService struct {
	remote docstore.Store
	local  ControlLocalStore

	saveMu  sync.Mutex
	mu      sync.RWMutex
	current models.ControlSettings
	unsub   docstore.Unsubscribe
	closed  bool
}

// NewControlSettingsService builds a service seeded with the defaults.
// Either remote or local may be nil.
func NewControlSettingsService(remote docstore.Store, local ControlLocalStore) *ControlSettingsService {
	return &ControlSettingsService{
		remote:  remote,
		local:   local,
		current: models.DefaultControlSettings(),
	}
}

// Load seeds the settings from the remote document, then the local tier,
// then the defaults.
func (s *ControlSettingsService) Load(ctx context.Context) models.ControlSettings {
	settings := models.DefaultControlSettings()
	source := "defaults"

	if s.remote != nil {
		doc, err := s.remote.Get(ctx, docstore.ControlsPath)
		switch {
		case err != nil:
			slog.Warn("failed to load control settings from remote store", "error", err)
		case doc.Exists:
			settings = models.DecodeControlSettings(doc.Data, settings)
			source = "remote"
		}
	}
	if source == "defaults" && s.local != nil {
		saved, err := s.local.LoadControls(ctx)
		if err != nil {
			slog.Warn("failed to load control settings from local tier", "error", err)
		} else if saved != nil {
			settings = *saved
			source = "local"
		}
	}

	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()

	slog.Info("control settings loaded", "source", source)
	return settings
}

// Watch mirrors remote changes of the controls document until Close.
func (s *ControlSettingsService) Watch(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	unsub, err := s.remote.Subscribe(ctx, docstore.ControlsPath, s.handleRemote)
	if err != nil {
		return fmt.Errorf("failed to subscribe to control settings: %w", err)
	}

	s.mu.Lock()
	if s.closed || s.unsub != nil {
		s.mu.Unlock()
		unsub()
		return fmt.Errorf("control settings watch already running or closed")
	}
	s.unsub = unsub
	s.mu.Unlock()
	return nil
}

func (s *ControlSettingsService) Close() {
	s.mu.Lock()
	s.closed = true
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *ControlSettingsService) Settings() models.ControlSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies a possibly partial controls document on top of the current
// settings and saves the result.
func (s *ControlSettingsService) Update(ctx context.Context, patch map[string]any) (models.ControlSettings, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	next := models.DecodeControlSettings(patch, s.Settings())
	return s.saveLocked(ctx, next)
}

// Reset saves the default settings.
func (s *ControlSettingsService) Reset(ctx context.Context) (models.ControlSettings, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	return s.saveLocked(ctx, models.DefaultControlSettings())
}

// saveLocked must be called with s.saveMu held. On failure the current
// settings are unchanged.
func (s *ControlSettingsService) saveLocked(ctx context.Context, next models.ControlSettings) (models.ControlSettings, error) {
	if err := next.Validate(); err != nil {
		return models.ControlSettings{}, fmt.Errorf("%w: %v", ErrInvalidControls, err)
	}

	var saveLocal func(context.Context) error
	if s.local != nil {
		saveLocal = func(ctx context.Context) error { return s.local.SaveControls(ctx, next) }
	}
	if err := writeThrough(ctx, s.remote, docstore.ControlsPath, next.ToDocument(), saveLocal); err != nil {
		return models.ControlSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	slog.Info("control settings saved")
	return next, nil
}

func (s *ControlSettingsService) handleRemote(evt docstore.Event) {
	if evt.Err != nil {
		slog.Error("control settings subscription failed, keeping current settings", "error", evt.Err)
		return
	}
	if !evt.Exists {
		return
	}

	s.mu.Lock()
	next := models.DecodeControlSettings(evt.Data, s.current)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		slog.Warn("ignoring invalid remote control settings", "error", err)
		return
	}
	s.current = next
	s.mu.Unlock()
}
