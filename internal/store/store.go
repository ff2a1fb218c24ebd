// Package store is the typed view over the key-value backend: one method
// pair per storage key, each with a documented default for a missing key,
// plus the alert and saved-job collections built on top of them.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

// Storage keys.
const (
	KeyAlerts         = "jobAlerts"
	KeySavedJobs      = "savedJobs"
	KeyNotifications  = "notifications"
	KeyCheckInterval  = "checkInterval"
	KeyLastSearch     = "lastSearch"
	KeyCurrentResults = "currentSearchResults"
	KeySeenJobs       = "seenJobs"

	notificationKeyPrefix = "notification:"
)

// Backend is a raw key-value store. Writes to distinct keys must not
// interfere; writes to the same key are last-writer-wins.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Store owns the alert and saved-job collections. Mutations of a collection
// are serialized inside one Store so read-modify-write cycles do not lose
// updates within a process.
type Store struct {
	backend  Backend
	newID    func() string
	now      nowFunc
	defaults job.Settings

	alertsMu sync.Mutex
	savedMu  sync.Mutex
	notifMu  sync.Mutex
	seenMu   sync.Mutex
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		newID:    newAlertID,
		now:      timeNow,
		defaults: job.DefaultSettings(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type Option func(*Store)

// WithIDGenerator replaces the alert id generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithDefaults replaces the settings reported for missing keys.
// An invalid interval is ignored.
func WithDefaults(d job.Settings) Option {
	return func(s *Store) {
		s.defaults.NotificationsEnabled = d.NotificationsEnabled
		if d.Validate() == nil {
			s.defaults.CheckIntervalMinutes = d.CheckIntervalMinutes
		}
	}
}

// WithClock replaces the clock used for last-checked timestamps.
func WithClock(now nowFunc) Option {
	return func(s *Store) { s.now = now }
}

func (s *Store) get(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, errors.Wrapf(err, "get %s", key)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

func (s *Store) set(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return errors.Wrapf(s.backend.Set(ctx, key, raw), "set %s", key)
}

// NotificationsEnabled defaults to true unless WithDefaults says otherwise.
func (s *Store) NotificationsEnabled(ctx context.Context) (bool, error) {
	enabled := s.defaults.NotificationsEnabled
	if _, err := s.get(ctx, KeyNotifications, &enabled); err != nil {
		return s.defaults.NotificationsEnabled, err
	}
	return enabled, nil
}

// CheckInterval defaults to 60 minutes. Stored values that are not positive
// are reported as the default.
func (s *Store) CheckInterval(ctx context.Context) (int, error) {
	minutes := s.defaults.CheckIntervalMinutes
	if _, err := s.get(ctx, KeyCheckInterval, &minutes); err != nil {
		return s.defaults.CheckIntervalMinutes, err
	}
	if minutes <= 0 {
		return s.defaults.CheckIntervalMinutes, nil
	}
	return minutes, nil
}

// Settings reads both settings keys.
func (s *Store) Settings(ctx context.Context) (job.Settings, error) {
	enabled, err := s.NotificationsEnabled(ctx)
	if err != nil {
		return s.defaults, err
	}
	interval, err := s.CheckInterval(ctx)
	if err != nil {
		return s.defaults, err
	}
	return job.Settings{NotificationsEnabled: enabled, CheckIntervalMinutes: interval}, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings job.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.set(ctx, KeyNotifications, settings.NotificationsEnabled); err != nil {
		return err
	}
	return s.set(ctx, KeyCheckInterval, settings.CheckIntervalMinutes)
}

// LastSearch returns nil when no search was stored yet.
func (s *Store) LastSearch(ctx context.Context) (*job.SearchParams, error) {
	var p *job.SearchParams
	if _, err := s.get(ctx, KeyLastSearch, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) SetLastSearch(ctx context.Context, p job.SearchParams) error {
	return s.set(ctx, KeyLastSearch, p)
}

// CurrentResults is scratch space holding the most recently delivered batch.
func (s *Store) CurrentResults(ctx context.Context) ([]job.Record, error) {
	records := []job.Record{}
	if _, err := s.get(ctx, KeyCurrentResults, &records); err != nil {
		return []job.Record{}, err
	}
	return records, nil
}

func (s *Store) SetCurrentResults(ctx context.Context, records []job.Record) error {
	if records == nil {
		records = []job.Record{}
	}
	return s.set(ctx, KeyCurrentResults, records)
}

type notificationTarget struct {
	URL string `json:"url"`
}

// PutNotificationTarget records where activating notificationID should lead.
func (s *Store) PutNotificationTarget(ctx context.Context, notificationID, url string) error {
	return s.set(ctx, notificationKeyPrefix+notificationID, notificationTarget{URL: url})
}

// TakeNotificationTarget reads and removes the target of notificationID.
// Reports false for unknown or already consumed ids.
func (s *Store) TakeNotificationTarget(ctx context.Context, notificationID string) (string, bool, error) {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()

	key := notificationKeyPrefix + notificationID
	var target notificationTarget
	ok, err := s.get(ctx, key, &target)
	if err != nil || !ok {
		return "", false, err
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return "", false, errors.Wrapf(err, "delete %s", key)
	}
	if target.URL == "" {
		return "", false, nil
	}
	return target.URL, true, nil
}
