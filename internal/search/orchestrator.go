// Package search runs job searches through a browser collaborator, either
// in front of the user or in the background on behalf of an alert.
package search

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

// Mode says whether the search is shown to the user.
type Mode int

const (
	Foreground Mode = iota
	Background
)

func (m Mode) String() string {
	if m == Background {
		return "background"
	}
	return "foreground"
}

const (
	DefaultForegroundTimeout = 30 * time.Second
	DefaultBackgroundGrace   = 15 * time.Second
	// DefaultKeptForeground is how many foreground pages stay open for the user.
	DefaultKeptForeground = 3
)

// Tab is one opened search page.
type Tab interface {
	// Extract returns the records scraped from the page, once.
	Extract(ctx context.Context) ([]job.Record, error)
	Close() error
}

// Browser opens search pages. Foreground pages are visible to the user.
type Browser interface {
	Open(ctx context.Context, url string, mode Mode) (Tab, error)
}

// AlertStore creates alerts for searches that opted in.
type AlertStore interface {
	AddAlert(ctx context.Context, p job.SearchParams) (job.Alert, bool, error)
}

// Arming re-arms the recurring check after the alert set changed.
type Arming interface {
	Init(ctx context.Context) error
}

type Orchestrator struct {
	browser   Browser
	alerts    AlertStore
	scheduler Arming
	baseURL   string

	foregroundTimeout time.Duration
	backgroundGrace   time.Duration
	keptForeground    int

	mu   sync.Mutex
	kept []Tab
}

type Option func(*Orchestrator)

func WithBaseURL(u string) Option {
	return func(o *Orchestrator) {
		if u != "" {
			o.baseURL = u
		}
	}
}

func WithForegroundTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.foregroundTimeout = d
		}
	}
}

// WithKeptForeground caps the foreground pages left open after a search.
// Zero closes each one as soon as its records are collected.
func WithKeptForeground(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.keptForeground = n
		}
	}
}

func WithBackgroundGrace(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.backgroundGrace = d
		}
	}
}

func NewOrchestrator(browser Browser, alerts AlertStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		browser:           browser,
		alerts:            alerts,
		baseURL:           DefaultBaseURL,
		foregroundTimeout: DefaultForegroundTimeout,
		backgroundGrace:   DefaultBackgroundGrace,
		keptForeground:    DefaultKeptForeground,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetScheduler is separate from the constructor because the scheduler
// itself runs background searches through the orchestrator.
func (o *Orchestrator) SetScheduler(s Arming) {
	o.scheduler = s
}

// Search opens the search described by p and returns the valid records it
// produced. Running out of time is not an error: it yields no records.
func (o *Orchestrator) Search(ctx context.Context, p job.SearchParams, mode Mode) ([]job.Record, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if mode == Foreground && p.EnableAlerts {
		o.createAlert(ctx, p)
	}

	searchURL := BuildURL(o.baseURL, p)
	log := logrus.WithFields(logrus.Fields{"mode": mode, "url": searchURL})

	tab, err := o.browser.Open(ctx, searchURL, mode)
	if err != nil {
		return nil, errors.Wrap(err, "open search")
	}
	log.Info("Search opened")

	wait := o.foregroundTimeout
	if mode == Background {
		wait = o.backgroundGrace
		time.AfterFunc(o.backgroundGrace, func() {
			closeTab(tab, log)
		})
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	records, err := collect(waitCtx, tab)
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			log.Warn("Search timed out without records")
		} else {
			log.Errorf("Failed to extract records: %v", err)
		}
		if mode == Foreground {
			closeTab(tab, log)
		}
		return []job.Record{}, nil
	}
	if mode == Foreground {
		o.keep(tab, log)
	}

	valid := job.FilterValid(records)
	if dropped := len(records) - len(valid); dropped > 0 {
		log.Infof("Dropped %d invalid record(s)", dropped)
	}
	log.Infof("Search returned %d record(s)", len(valid))
	return valid, nil
}

func (o *Orchestrator) createAlert(ctx context.Context, p job.SearchParams) {
	alert, created, err := o.alerts.AddAlert(ctx, p)
	if err != nil {
		logrus.Errorf("failed to create alert: %v", err)
		return
	}
	if !created {
		return
	}
	logrus.WithField("alert", alert.ID).Infof("Alert created for %q in %q", alert.JobTitle, alert.Location)
	if o.scheduler == nil {
		return
	}
	if err := o.scheduler.Init(ctx); err != nil {
		logrus.Errorf("failed to arm scheduler: %v", err)
	}
}

// keep leaves tab open for the user, closing the oldest kept pages beyond
// the cap.
func (o *Orchestrator) keep(tab Tab, log *logrus.Entry) {
	o.mu.Lock()
	o.kept = append(o.kept, tab)
	var evicted []Tab
	if extra := len(o.kept) - o.keptForeground; extra > 0 {
		evicted = append(evicted, o.kept[:extra]...)
		o.kept = append([]Tab(nil), o.kept[extra:]...)
	}
	o.mu.Unlock()

	for _, t := range evicted {
		closeTab(t, log)
	}
}

// Close closes every foreground page still kept open.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	kept := o.kept
	o.kept = nil
	o.mu.Unlock()

	for _, t := range kept {
		closeTab(t, logrus.NewEntry(logrus.StandardLogger()))
	}
}

func closeTab(tab Tab, log *logrus.Entry) {
	if err := tab.Close(); err != nil {
		log.Errorf("Error closing search page: %v", err)
	}
}

func collect(ctx context.Context, tab Tab) ([]job.Record, error) {
	type result struct {
		records []job.Record
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		records, err := tab.Extract(ctx)
		ch <- result{records: records, err: err}
	}()
	select {
	case res := <-ch:
		return res.records, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
