// Package scheduler owns the recurring alert check. It is Idle when no
// timer exists and Active while one cron entry fires every check interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Store is what the scheduler reads and the one write it makes.
type Store interface {
	Settings(ctx context.Context) (job.Settings, error)
	Alerts(ctx context.Context) ([]job.Alert, error)
	Touch(ctx context.Context, id string) (bool, error)
}

// CheckFunc runs a background search for alert and returns when it is done.
type CheckFunc func(ctx context.Context, alert job.Alert)

type Scheduler struct {
	cron  *cron.Cron
	store Store
	check CheckFunc

	mu       sync.Mutex
	baseCtx  context.Context
	state    State
	entry    cron.EntryID
	interval time.Duration
}

func New(store Store, check CheckFunc) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cron.PrintfLogger(logrus.StandardLogger()))),
		store:   store,
		check:   check,
		baseCtx: context.Background(),
	}
}

// Start runs the cron loop and arms the timer from stored state. Ticks use ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	logrus.Info("Scheduler started")
	return s.Init(ctx)
}

// Stop clears the timer and waits for running checks to return.
func (s *Scheduler) Stop() {
	s.Teardown()
	<-s.cron.Stop().Done()
	logrus.Info("Scheduler stopped")
}

// Init arms the timer when notifications are on and at least one alert is
// enabled, and clears it otherwise. A running timer at the same interval is kept.
func (s *Scheduler) Init(ctx context.Context) error {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return err
	}
	alerts, err := s.store.Alerts(ctx)
	if err != nil {
		return err
	}
	if !settings.NotificationsEnabled || !anyEnabled(alerts) {
		s.Teardown()
		return nil
	}
	s.arm(settings.Interval())
	return nil
}

// Reconfigure applies new settings: the timer is always cleared and is
// recreated at the new interval if notifications are on.
func (s *Scheduler) Reconfigure(settings job.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.Teardown()
	if settings.NotificationsEnabled {
		s.arm(settings.Interval())
	}
	return nil
}

// Teardown clears the timer.
func (s *Scheduler) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Idle {
		return
	}
	s.cron.Remove(s.entry)
	s.entry = 0
	s.interval = 0
	s.state = Idle
	logrus.Info("Alert check timer cleared")
}

// arm keeps an Active timer that already runs at interval, so the next
// check is not pushed back.
func (s *Scheduler) arm(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Active {
		if s.interval == interval {
			return
		}
		s.cron.Remove(s.entry)
	}
	s.entry = s.cron.Schedule(cron.Every(interval), cron.FuncJob(s.fire))
	s.interval = interval
	s.state = Active
	logrus.Infof("Alert check timer armed every %s", interval)
}

// State reports the current state and, when Active, the timer interval.
func (s *Scheduler) State() (State, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.interval
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if _, _, err := s.Tick(ctx); err != nil {
		logrus.Errorf("alert check failed: %v", err)
	}
}

// Tick checks exactly one enabled alert: the one that has waited longest
// (never-checked first, store order on ties). Reports false when no alert
// is enabled.
func (s *Scheduler) Tick(ctx context.Context) (job.Alert, bool, error) {
	alerts, err := s.store.Alerts(ctx)
	if err != nil {
		return job.Alert{}, false, err
	}
	alert, ok := Next(alerts)
	if !ok {
		logrus.Debug("No enabled alerts to check")
		return job.Alert{}, false, nil
	}

	log := logrus.WithField("alert", alert.ID)
	log.Infof("Checking alert %q in %q", alert.JobTitle, alert.Location)
	s.check(ctx, alert)

	if _, err := s.store.Touch(ctx, alert.ID); err != nil {
		return alert, true, err
	}
	return alert, true, nil
}

// Next picks the enabled alert that was checked least recently.
func Next(alerts []job.Alert) (job.Alert, bool) {
	var (
		best  job.Alert
		found bool
	)
	for _, a := range alerts {
		if !a.Enabled {
			continue
		}
		if !found || checkedBefore(a, best) {
			best, found = a, true
		}
	}
	return best, found
}

func checkedBefore(a, b job.Alert) bool {
	switch {
	case b.LastChecked == nil:
		return false
	case a.LastChecked == nil:
		return true
	default:
		return a.LastChecked.Before(*b.LastChecked)
	}
}

func anyEnabled(alerts []job.Alert) bool {
	for _, a := range alerts {
		if a.Enabled {
			return true
		}
	}
	return false
}
