// Package notifier turns matches into user-visible notifications and
// resolves notification activations back to job URLs.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

const (
	DefaultMaxPerBatch = 5
	DefaultStagger     = time.Second

	ViewJobButton = "View Job"
)

// Notification is what the display service renders.
type Notification struct {
	Title   string
	Message string
	Buttons []string
}

// Display shows a notification under an identity chosen by the notifier.
// Activations come back with that id.
type Display interface {
	Create(ctx context.Context, id string, n Notification) error
}

// Navigator opens a URL for the user.
type Navigator interface {
	Open(ctx context.Context, url string) error
}

// Store is the part of the typed store the notifier needs.
type Store interface {
	NotificationsEnabled(ctx context.Context) (bool, error)
	PutNotificationTarget(ctx context.Context, notificationID, url string) error
	TakeNotificationTarget(ctx context.Context, notificationID string) (string, bool, error)
}

type Notifier struct {
	store       Store
	display     Display
	nav         Navigator
	maxPerBatch int
	stagger     time.Duration
	newID       func() string
}

type Option func(*Notifier)

func WithMaxPerBatch(n int) Option {
	return func(nt *Notifier) {
		if n > 0 {
			nt.maxPerBatch = n
		}
	}
}

// WithIDGenerator replaces the notification id generator.
func WithIDGenerator(f func() string) Option {
	return func(nt *Notifier) { nt.newID = f }
}

func WithStagger(d time.Duration) Option {
	return func(nt *Notifier) {
		if d >= 0 {
			nt.stagger = d
		}
	}
}

func New(store Store, display Display, nav Navigator, opts ...Option) *Notifier {
	n := &Notifier{
		store:       store,
		display:     display,
		nav:         nav,
		maxPerBatch: DefaultMaxPerBatch,
		stagger:     DefaultStagger,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// MatchNotification renders a match for the display service.
func MatchNotification(r job.Record) Notification {
	return Notification{
		Title:   "New Job Match: " + r.Title,
		Message: fmt.Sprintf("%s - %s", r.Company, r.Location),
		Buttons: []string{ViewJobButton},
	}
}

// Notify dispatches at most maxPerBatch notifications in input order, the
// i-th one no earlier than i*stagger after the call. Matches beyond the cap
// are dropped. It returns the number of notifications dispatched and blocks
// until the batch is done or ctx is cancelled.
func (n *Notifier) Notify(ctx context.Context, matches []job.Match) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	enabled, err := n.store.NotificationsEnabled(ctx)
	if err != nil {
		return 0, err
	}
	if !enabled {
		logrus.Debugf("Notifications disabled, dropping %d match(es)", len(matches))
		return 0, nil
	}

	batch := matches
	if len(batch) > n.maxPerBatch {
		logrus.Infof("Capping %d matches to %d notifications", len(batch), n.maxPerBatch)
		batch = batch[:n.maxPerBatch]
	}

	start := time.Now()
	sent := 0
	for i, m := range batch {
		if err := sleepUntil(ctx, start.Add(time.Duration(i)*n.stagger)); err != nil {
			return sent, err
		}
		id := n.newID()
		log := logrus.WithFields(logrus.Fields{"job": m.Job.ID, "notification": id})
		// The target must exist before the user can click.
		if err := n.store.PutNotificationTarget(ctx, id, m.Job.URL); err != nil {
			log.Errorf("failed to record notification target: %v", err)
		}
		if err := n.display.Create(ctx, id, MatchNotification(m.Job)); err != nil {
			log.Errorf("failed to dispatch notification: %v", err)
			if _, _, err := n.store.TakeNotificationTarget(ctx, id); err != nil {
				log.Errorf("failed to drop notification target: %v", err)
			}
			continue
		}
		sent++
	}
	return sent, nil
}

// Send dispatches a plain notification with no click-through target.
func (n *Notifier) Send(ctx context.Context, title, message string) error {
	return n.display.Create(ctx, n.newID(), Notification{Title: title, Message: message})
}

// Activate handles a click on notificationID. The target URL is consumed on
// first activation; unknown or consumed ids report false.
func (n *Notifier) Activate(ctx context.Context, notificationID string) (bool, error) {
	url, ok, err := n.store.TakeNotificationTarget(ctx, notificationID)
	if err != nil || !ok {
		return false, err
	}
	if err := n.nav.Open(ctx, url); err != nil {
		return true, errors.Wrapf(err, "open %s", url)
	}
	return true, nil
}

func sleepUntil(ctx context.Context, at time.Time) error {
	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
