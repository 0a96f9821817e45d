package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"plant-monitor-service/internal/database/docstore"
	"plant-monitor-service/internal/models"
)

var (
	ErrNoActiveEdit   = errors.New("no threshold field is being edited")
	ErrUnknownField   = errors.New("unknown threshold field")
	ErrKeyNotInEdit   = errors.New("key does not belong to the field being edited")
	ErrInvalidRange   = errors.New("threshold range minimum exceeds maximum")
	ErrNoPersistLayer = errors.New("no persistence layer configured")
)

// ThresholdLocalStore is the fallback persistence tier for committed settings.
type ThresholdLocalStore interface {
	LoadThresholds(ctx context.Context) (*models.ThresholdSettings, error)
	SaveThresholds(ctx context.Context, settings models.ThresholdSettings) error
}

// ThresholdDraft is the edit in progress.
type ThresholdDraft struct {
	Field  models.ThresholdField `json:"field"`
	Values map[string]string     `json:"values"`
}

type ThresholdEditorService struct {
	remote docstore.Store
	local  ThresholdLocalStore

	commitMu  sync.Mutex
	mu        sync.RWMutex
	committed models.ThresholdSettings
	field     models.ThresholdField
	draft     map[string]string
}

// NewThresholdEditorService builds an editor seeded with the default settings.
// Either remote or local may be nil.
func NewThresholdEditorService(remote docstore.Store, local ThresholdLocalStore) *ThresholdEditorService {
	return &ThresholdEditorService{
		remote:    remote,
		local:     local,
		committed: models.DefaultThresholdSettings(),
	}
}

// Load seeds the committed settings from the remote document, then the local
// tier, then the defaults.
func (s *ThresholdEditorService) Load(ctx context.Context) models.ThresholdSettings {
	settings := models.DefaultThresholdSettings()
	source := "defaults"

	if s.remote != nil {
		doc, err := s.remote.Get(ctx, docstore.ThresholdsPath)
		switch {
		case err != nil:
			slog.Warn("failed to load thresholds from remote store", "error", err)
		case doc.Exists:
			settings = models.DecodeThresholdSettings(doc.Data, settings)
			source = "remote"
		}
	}
	if source == "defaults" && s.local != nil {
		saved, err := s.local.LoadThresholds(ctx)
		if err != nil {
			slog.Warn("failed to load thresholds from local tier", "error", err)
		} else if saved != nil {
			settings = *saved
			source = "local"
		}
	}

	s.mu.Lock()
	s.committed = settings
	s.mu.Unlock()

	slog.Info("threshold settings loaded", "source", source)
	return settings
}

func (s *ThresholdEditorService) Settings() models.ThresholdSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

// ApplyRemote replaces the committed settings with a version observed on the
// remote store. An edit in progress is left untouched.
func (s *ThresholdEditorService) ApplyRemote(settings models.ThresholdSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = settings
}

// Draft returns a copy of the edit in progress, or nil.
func (s *ThresholdEditorService) Draft() *ThresholdDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.field == "" {
		return nil
	}
	values := make(map[string]string, len(s.draft))
	for k, v := range s.draft {
		values[k] = v
	}
	return &ThresholdDraft{Field: s.field, Values: values}
}

// BeginEdit seeds a draft for field from the committed settings. Any previous
// uncommitted draft is dropped.
func (s *ThresholdEditorService) BeginEdit(field models.ThresholdField) (*ThresholdDraft, error) {
	if !field.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	s.mu.Lock()
	if s.field != "" && s.field != field {
		slog.Info("abandoning uncommitted threshold draft", "field", s.field, "new_field", field)
	}
	s.field = field
	s.draft = make(map[string]string)
	for _, key := range field.Keys() {
		v, _ := s.committed.Value(key)
		s.draft[key] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	s.mu.Unlock()

	return s.Draft(), nil
}

// SetDraftValue stores raw text for key. Parsing is deferred to Commit.
func (s *ThresholdEditorService) SetDraftValue(key, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.field == "" {
		return ErrNoActiveEdit
	}
	if _, ok := s.draft[key]; !ok {
		return fmt.Errorf("%w: %q not in %q", ErrKeyNotInEdit, key, s.field)
	}
	s.draft[key] = raw
	return nil
}

// Cancel discards the draft.
func (s *ThresholdEditorService) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field = ""
	s.draft = nil
}

// Commit parses the draft, validates the edited group and writes the whole
// document. Other groups are written as committed, inverted or not. Unparseable values keep the committed value. On a failed
// write the committed settings and the draft are left unchanged.
func (s *ThresholdEditorService) Commit(ctx context.Context) (models.ThresholdSettings, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.RLock()
	if s.field == "" {
		s.mu.RUnlock()
		return models.ThresholdSettings{}, ErrNoActiveEdit
	}
	field := s.field
	next := s.committed
	for key, raw := range s.draft {
		v, ok := ParseFloatPrefix(raw)
		if !ok {
			slog.Warn("unparseable threshold value, keeping committed value", "key", key, "raw", raw)
			continue
		}
		next, _ = next.WithValue(key, v)
	}
	s.mu.RUnlock()

	if err := next.ValidateField(field); err != nil {
		return models.ThresholdSettings{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}

	if err := s.persist(ctx, next); err != nil {
		return models.ThresholdSettings{}, err
	}

	s.mu.Lock()
	s.committed = next
	if s.field == field {
		s.field = ""
		s.draft = nil
	}
	s.mu.Unlock()

	slog.Info("threshold settings committed", "field", field)
	return next, nil
}

// Reset commits the default settings.
func (s *ThresholdEditorService) Reset(ctx context.Context) (models.ThresholdSettings, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	defaults := models.DefaultThresholdSettings()
	if err := s.persist(ctx, defaults); err != nil {
		return models.ThresholdSettings{}, err
	}

	s.mu.Lock()
	s.committed = defaults
	s.field = ""
	s.draft = nil
	s.mu.Unlock()
	return defaults, nil
}

func (s *ThresholdEditorService) persist(ctx context.Context, settings models.ThresholdSettings) error {
	var saveLocal func(context.Context) error
	if s.local != nil {
		saveLocal = func(ctx context.Context) error { return s.local.SaveThresholds(ctx, settings) }
	}
	return writeThrough(ctx, s.remote, docstore.ThresholdsPath, settings.ToDocument(), saveLocal)
}

// writeThrough replaces the whole document at path and mirrors it to the
// local tier. Without a remote store the local tier is authoritative and its
// failure is the caller's failure.
func writeThrough(ctx context.Context, remote docstore.Store, path string, doc map[string]any, saveLocal func(context.Context) error) error {
	if remote != nil {
		if err := remote.Set(ctx, path, doc); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if saveLocal != nil {
			if err := saveLocal(ctx); err != nil {
				slog.Warn("failed to mirror document to local tier", "path", path, "error", err)
			}
		}
		return nil
	}
	if saveLocal != nil {
		if err := saveLocal(ctx); err != nil {
			return fmt.Errorf("failed to save %s locally: %w", path, err)
		}
		return nil
	}
	return ErrNoPersistLayer
}

// ParseFloatPrefix parses the longest leading decimal number in raw, the way
// browsers' parseFloat does: "42abc" is 42 and "abc" fails. Non-finite
// results fail.
func ParseFloatPrefix(raw string) (float64, bool) {
	s := strings.TrimLeft(raw, " \t\n\r\f\v")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	intDigits := countDigits(s[end:])
	end += intDigits
	fracDigits := 0
	if end < len(s) && s[end] == '.' {
		fracDigits = countDigits(s[end+1:])
		if intDigits > 0 || fracDigits > 0 {
			end += 1 + fracDigits
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return 0, false
	}
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		exp := end + 1
		if exp < len(s) && (s[exp] == '+' || s[exp] == '-') {
			exp++
		}
		if n := countDigits(s[exp:]); n > 0 {
			end = exp + n
		}
	}

	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func countDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}
