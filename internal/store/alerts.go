package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

type nowFunc func() time.Time

func timeNow() time.Time { return time.Now().UTC() }

func newAlertID() string { return uuid.NewString() }

// Alerts returns every saved alert in store order. Defaults to empty.
func (s *Store) Alerts(ctx context.Context) ([]job.Alert, error) {
	alerts := []job.Alert{}
	if _, err := s.get(ctx, KeyAlerts, &alerts); err != nil {
		return []job.Alert{}, err
	}
	return alerts, nil
}

// EnabledAlerts filters Alerts by the enabled flag.
func (s *Store) EnabledAlerts(ctx context.Context) ([]job.Alert, error) {
	alerts, err := s.Alerts(ctx)
	if err != nil {
		return nil, err
	}
	enabled := alerts[:0]
	for _, a := range alerts {
		if a.Enabled {
			enabled = append(enabled, a)
		}
	}
	return enabled, nil
}

// AddAlert creates an enabled, never-checked alert from p. When an alert
// with the same (job title, location) already exists nothing is written and
// created is false.
func (s *Store) AddAlert(ctx context.Context, p job.SearchParams) (alert job.Alert, created bool, err error) {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()

	alerts, err := s.Alerts(ctx)
	if err != nil {
		return job.Alert{}, false, err
	}
	for _, a := range alerts {
		if a.SameQuery(p.JobTitle, p.Location) {
			return a, false, nil
		}
	}

	keywords := p.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	alert = job.Alert{
		ID:       s.newID(),
		JobTitle: p.JobTitle,
		Location: p.Location,
		Filters:  p.Filters,
		Keywords: keywords,
		Enabled:  true,
	}
	if err := s.set(ctx, KeyAlerts, append(alerts, alert)); err != nil {
		return job.Alert{}, false, err
	}
	return alert, true, nil
}

// SetEnabled toggles an alert. Reports false when id is unknown.
func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool) (bool, error) {
	return s.updateAlert(ctx, id, func(a *job.Alert) { a.Enabled = enabled })
}

// TouchLastChecked stamps an alert with at. Reports false when id is unknown.
func (s *Store) TouchLastChecked(ctx context.Context, id string, at time.Time) (bool, error) {
	at = at.UTC()
	return s.updateAlert(ctx, id, func(a *job.Alert) { a.LastChecked = &at })
}

// Touch stamps an alert with the store clock.
func (s *Store) Touch(ctx context.Context, id string) (bool, error) {
	return s.TouchLastChecked(ctx, id, s.now())
}

// DeleteAlert removes an alert. Reports false when id is unknown.
func (s *Store) DeleteAlert(ctx context.Context, id string) (bool, error) {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()

	alerts, err := s.Alerts(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]job.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(alerts) {
		return false, nil
	}
	return true, s.set(ctx, KeyAlerts, kept)
}

func (s *Store) updateAlert(ctx context.Context, id string, mutate func(*job.Alert)) (bool, error) {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()

	alerts, err := s.Alerts(ctx)
	if err != nil {
		return false, err
	}
	found := false
	for i := range alerts {
		if alerts[i].ID == id {
			mutate(&alerts[i])
			found = true
		}
	}
	if !found {
		return false, nil
	}
	return true, s.set(ctx, KeyAlerts, alerts)
}

// SavedJobs returns saved records in save order. Defaults to empty.
func (s *Store) SavedJobs(ctx context.Context) ([]job.Record, error) {
	saved := []job.Record{}
	if _, err := s.get(ctx, KeySavedJobs, &saved); err != nil {
		return []job.Record{}, err
	}
	return saved, nil
}

// SaveJob adds r to the saved set. Reports false when a job with the same id is already saved.
func (s *Store) SaveJob(ctx context.Context, r job.Record) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}

	s.savedMu.Lock()
	defer s.savedMu.Unlock()

	saved, err := s.SavedJobs(ctx)
	if err != nil {
		return false, err
	}
	for _, j := range saved {
		if j.ID == r.ID {
			return false, nil
		}
	}
	return true, s.set(ctx, KeySavedJobs, append(saved, r))
}

// UnsaveJob removes the saved job with id. Reports false when it was not saved.
func (s *Store) UnsaveJob(ctx context.Context, id string) (bool, error) {
	s.savedMu.Lock()
	defer s.savedMu.Unlock()

	saved, err := s.SavedJobs(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]job.Record, 0, len(saved))
	for _, j := range saved {
		if j.ID != id {
			kept = append(kept, j)
		}
	}
	if len(kept) == len(saved) {
		return false, nil
	}
	return true, s.set(ctx, KeySavedJobs, kept)
}
