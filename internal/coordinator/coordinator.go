// Package coordinator is the background side of the assistant: it runs
// searches for the panel and the scheduler, matches delivered records
// against the enabled alerts and hands matches to the notifier.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
	"github.com/pachmu/nice_job_alert_bot/internal/search"
	"github.com/pachmu/nice_job_alert_bot/internal/store"
)

type Searcher interface {
	Search(ctx context.Context, p job.SearchParams, mode search.Mode) ([]job.Record, error)
}

type Scheduler interface {
	Init(ctx context.Context) error
	Reconfigure(settings job.Settings) error
}

type Notifier interface {
	Notify(ctx context.Context, matches []job.Match) (int, error)
	Send(ctx context.Context, title, message string) error
	Activate(ctx context.Context, notificationID string) (bool, error)
}

type Coordinator struct {
	store     *store.Store
	searcher  Searcher
	scheduler Scheduler
	notifier  Notifier

	// notifications outlive the request that produced the matches
	notifyCtx context.Context
	pending   sync.WaitGroup
}

func New(ctx context.Context, st *store.Store, searcher Searcher, notifier Notifier) *Coordinator {
	return &Coordinator{
		store:     st,
		searcher:  searcher,
		notifier:  notifier,
		notifyCtx: ctx,
	}
}

// SetScheduler breaks the construction cycle: the scheduler calls CheckAlert.
func (c *Coordinator) SetScheduler(s Scheduler) {
	c.scheduler = s
}

// PerformSearch runs a foreground search for the panel and returns its
// records. The params are remembered as the last search.
func (c *Coordinator) PerformSearch(ctx context.Context, p job.SearchParams) ([]job.Record, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := c.store.SetLastSearch(ctx, p); err != nil {
		logrus.Errorf("failed to store last search: %v", err)
	}
	records, err := c.searcher.Search(ctx, p, search.Foreground)
	if err != nil {
		return nil, err
	}
	c.deliver(ctx, records)
	return records, nil
}

// CheckAlert runs a background search for alert. It is the scheduler's tick action.
func (c *Coordinator) CheckAlert(ctx context.Context, alert job.Alert) {
	records, err := c.searcher.Search(ctx, job.ForAlert(alert), search.Background)
	if err != nil {
		logrus.WithField("alert", alert.ID).Errorf("background search failed: %v", err)
		return
	}
	c.deliver(ctx, records)
}

// deliver stores the batch as the current results and notifies about
// records matching any enabled alert.
func (c *Coordinator) deliver(ctx context.Context, records []job.Record) {
	if err := c.store.SetCurrentResults(ctx, records); err != nil {
		logrus.Errorf("failed to store current results: %v", err)
	}
	if len(records) == 0 {
		return
	}
	alerts, err := c.store.EnabledAlerts(ctx)
	if err != nil {
		logrus.Errorf("failed to load alerts: %v", err)
		return
	}
	matches := c.unseen(ctx, uniqueJobs(job.MatchAll(records, alerts)))
	if len(matches) == 0 {
		return
	}
	logrus.Infof("%d new record(s) matched alerts", len(matches))

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		sent, err := c.notifier.Notify(c.notifyCtx, matches)
		if err != nil {
			logrus.Errorf("notification batch stopped after %d: %v", sent, err)
		}
	}()
}

// Wait blocks until every notification batch started so far is done.
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// uniqueJobs keeps the first match of each job so a listing matching
// several alerts is announced once.
func uniqueJobs(matches []job.Match) []job.Match {
	seen := make(map[string]struct{}, len(matches))
	out := matches[:0:0]
	for _, m := range matches {
		if _, ok := seen[m.Job.ID]; ok {
			continue
		}
		seen[m.Job.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// unseen drops matches whose job URL was announced before and remembers
// the rest. When the seen set is unavailable every match goes through.
func (c *Coordinator) unseen(ctx context.Context, matches []job.Match) []job.Match {
	if len(matches) == 0 {
		return matches
	}
	urls := make([]string, len(matches))
	for i, m := range matches {
		urls[i] = m.Job.URL
	}
	fresh, err := c.store.MarkSeen(ctx, urls)
	if err != nil {
		logrus.Errorf("failed to check seen jobs: %v", err)
		return matches
	}
	keep := make(map[string]struct{}, len(fresh))
	for _, u := range fresh {
		keep[u] = struct{}{}
	}
	out := matches[:0:0]
	for _, m := range matches {
		if _, ok := keep[m.Job.URL]; ok {
			out = append(out, m)
		}
	}
	if dropped := len(matches) - len(out); dropped > 0 {
		logrus.Debugf("Skipping %d already announced job(s)", dropped)
	}
	return out
}

func (c *Coordinator) Settings(ctx context.Context) (job.Settings, error) {
	return c.store.Settings(ctx)
}

// SettingsUpdated persists settings and re-arms the scheduler.
func (c *Coordinator) SettingsUpdated(ctx context.Context, settings job.Settings) error {
	if err := c.store.SaveSettings(ctx, settings); err != nil {
		return err
	}
	if c.scheduler == nil {
		return nil
	}
	return c.scheduler.Reconfigure(settings)
}

// RequestNotification shows a plain notification.
func (c *Coordinator) RequestNotification(ctx context.Context, title, message string) error {
	return c.notifier.Send(ctx, title, message)
}

// Activate handles a click on a notification.
func (c *Coordinator) Activate(ctx context.Context, notificationID string) (bool, error) {
	return c.notifier.Activate(ctx, notificationID)
}

func (c *Coordinator) Alerts(ctx context.Context) ([]job.Alert, error) {
	return c.store.Alerts(ctx)
}

func (c *Coordinator) SetAlertEnabled(ctx context.Context, id string, enabled bool) (bool, error) {
	ok, err := c.store.SetEnabled(ctx, id, enabled)
	if err != nil || !ok {
		return ok, err
	}
	return true, c.rearm(ctx)
}

func (c *Coordinator) DeleteAlert(ctx context.Context, id string) (bool, error) {
	ok, err := c.store.DeleteAlert(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	return true, c.rearm(ctx)
}

func (c *Coordinator) rearm(ctx context.Context) error {
	if c.scheduler == nil {
		return nil
	}
	return c.scheduler.Init(ctx)
}

func (c *Coordinator) SavedJobs(ctx context.Context) ([]job.Record, error) {
	return c.store.SavedJobs(ctx)
}

// SaveJob saves r and confirms with a notification the first time.
func (c *Coordinator) SaveJob(ctx context.Context, r job.Record) (bool, error) {
	saved, err := c.store.SaveJob(ctx, r)
	if err != nil || !saved {
		return saved, err
	}
	msg := fmt.Sprintf("\"%s\" at %s has been saved.", r.Title, r.Company)
	if err := c.notifier.Send(ctx, "Job Saved", msg); err != nil {
		logrus.Errorf("failed to confirm saved job: %v", err)
	}
	return true, nil
}

func (c *Coordinator) UnsaveJob(ctx context.Context, id string) (bool, error) {
	return c.store.UnsaveJob(ctx, id)
}

func (c *Coordinator) LastSearch(ctx context.Context) (*job.SearchParams, error) {
	return c.store.LastSearch(ctx)
}

func (c *Coordinator) CurrentResults(ctx context.Context) ([]job.Record, error) {
	return c.store.CurrentResults(ctx)
}
