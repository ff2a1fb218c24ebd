// Package browser opens job searches in a playwright-driven Chromium and
// scrapes the job cards off the results page.
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
	"github.com/pachmu/nice_job_alert_bot/internal/search"
)

const (
	DefaultSettleDelay       = 3 * time.Second
	DefaultNavigationTimeout = 20 * time.Second
	DefaultDescriptionWait   = time.Second
)

type Options struct {
	// HeadlessForeground runs user-initiated searches headless too, for hosts without a display.
	HeadlessForeground bool
	SettleDelay        time.Duration
	NavigationTimeout  time.Duration
	// DescriptionWait bounds the first card's details click and the description read.
	DescriptionWait time.Duration
}

// Browser lazily launches one headless Chromium for background searches
// and, unless HeadlessForeground is set, a visible one for foreground searches.
type Browser struct {
	opts Options

	mu       sync.Mutex
	pw       *playwright.Playwright
	browsers map[bool]playwright.Browser
}

func New(opts Options) *Browser {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	if opts.DescriptionWait <= 0 {
		opts.DescriptionWait = DefaultDescriptionWait
	}
	return &Browser{opts: opts, browsers: make(map[bool]playwright.Browser)}
}

func (b *Browser) launch(headless bool) (playwright.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if br, ok := b.browsers[headless]; ok && br.IsConnected() {
		return br, nil
	}
	if b.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		b.pw = pw
	}
	br, err := b.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	b.browsers[headless] = br
	logrus.Infof("Chromium launched (headless=%t)", headless)
	return br, nil
}

// Open navigates a fresh browser context to searchURL.
func (b *Browser) Open(ctx context.Context, searchURL string, mode search.Mode) (search.Tab, error) {
	headless := mode == search.Background || b.opts.HeadlessForeground
	br, err := b.launch(headless)
	if err != nil {
		return nil, err
	}
	bctx, err := br.NewContext()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, errors.WithStack(err)
	}
	if err := ctx.Err(); err != nil {
		bctx.Close()
		return nil, err
	}
	_, err = page.Goto(searchURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.opts.NavigationTimeout.Milliseconds())),
	})
	if err != nil {
		bctx.Close()
		return nil, errors.Wrapf(err, "goto %s", searchURL)
	}
	return &tab{bctx: bctx, page: page, settle: b.opts.SettleDelay, describe: b.opts.DescriptionWait}, nil
}

// Close shuts every launched browser and the playwright driver.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for headless, br := range b.browsers {
		if err := br.Close(); err != nil {
			logrus.Errorf("failed to close browser (headless=%t): %v", headless, err)
		}
	}
	b.browsers = make(map[bool]playwright.Browser)
	if b.pw == nil {
		return nil
	}
	err := b.pw.Stop()
	b.pw = nil
	return errors.WithStack(err)
}

type tab struct {
	bctx     playwright.BrowserContext
	page     playwright.Page
	settle   time.Duration
	describe time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Extract waits for the listing to render, then reads every job card.
func (t *tab) Extract(ctx context.Context) ([]job.Record, error) {
	timer := time.NewTimer(t.settle)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	cards, err := t.page.Locator(cardSelector).All()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	now := time.Now()
	base := t.page.URL()
	fields := make([]cardFields, len(cards))
	read := make([]bool, len(cards))
	for i, card := range cards {
		if ctx.Err() != nil {
			break
		}
		f, err := readCard(card)
		if err != nil {
			logrus.Errorf("Error extracting job data: %v", err)
			continue
		}
		fields[i], read[i] = f, true
	}
	// Clicking may change the page, so the description comes after every card is read.
	if len(cards) > 0 && read[0] && ctx.Err() == nil {
		desc, err := readDescription(t.page, cards[0], t.describe)
		if err != nil {
			logrus.Warnf("Failed to read job description: %v", err)
		}
		fields[0].description = desc
	}
	records := make([]job.Record, 0, len(cards))
	for i := range fields {
		if !read[i] {
			continue
		}
		if r, ok := fields[i].record(i, base, now); ok {
			records = append(records, r)
		}
	}
	logrus.Infof("Extracted %d job(s) from %d card(s)", len(records), len(cards))
	return records, nil
}

func (t *tab) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = errors.WithStack(t.bctx.Close())
	})
	return t.closeErr
}
