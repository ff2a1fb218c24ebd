package browser

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

const (
	cardSelector     = ".job-search-card"
	titleSelector    = ".job-search-card__title"
	linkSelector     = "a.job-search-card__title"
	companySelector  = ".job-search-card__subtitle a"
	locationSelector = ".job-search-card__location"
	dateSelector     = ".job-search-card__listdate"
	logoSelector     = ".job-search-card__company-logo"

	detailsSelector     = ".job-details"
	descriptionSelector = ".job-details__description"

	unknownCompany = "Unknown Company"
)

// cardFields is the raw text pulled out of one job card. Pointers are nil
// when the element is missing from the card.
type cardFields struct {
	jobID    string
	title    *string
	link     *string
	company  *string
	location *string
	date     *string
	logo     *string
	// description is only fetched for the first card.
	description *string
}

func (c cardFields) record(index int, base string, now time.Time) (job.Record, bool) {
	if c.title == nil || c.link == nil {
		return job.Record{}, false
	}
	id := c.jobID
	if id == "" {
		id = fmt.Sprintf("job-%d-%d", now.UnixMilli(), index)
	}
	r := job.Record{
		ID:          id,
		Title:       strings.TrimSpace(*c.title),
		Company:     unknownCompany,
		URL:         resolve(base, strings.TrimSpace(*c.link)),
		PostedDate:  trimmed(c.date),
		Location:    trimmed(c.location),
		Description: trimmed(c.description),
	}
	if c.company != nil {
		r.Company = strings.TrimSpace(*c.company)
	}
	if c.logo != nil && *c.logo != "" {
		r.CompanyLogo = resolve(base, *c.logo)
	}
	r.IsRemote = strings.Contains(strings.ToLower(r.Location), "remote")
	return r, r.Valid()
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func readCard(card playwright.Locator) (cardFields, error) {
	var (
		c   cardFields
		err error
	)
	if c.jobID, err = card.GetAttribute("data-job-id"); err != nil {
		return c, err
	}
	if c.title, err = text(card, titleSelector); err != nil {
		return c, err
	}
	if c.link, err = attr(card, linkSelector, "href"); err != nil {
		return c, err
	}
	if c.company, err = text(card, companySelector); err != nil {
		return c, err
	}
	if c.location, err = text(card, locationSelector); err != nil {
		return c, err
	}
	if c.date, err = text(card, dateSelector); err != nil {
		return c, err
	}
	if c.logo, err = attr(card, logoSelector, "src"); err != nil {
		return c, err
	}
	return c, nil
}

// readDescription opens the details pane of card unless one is already
// shown and reads the description text. A missing pane yields nil.
func readDescription(page playwright.Page, card playwright.Locator, wait time.Duration) (*string, error) {
	timeout := playwright.Float(float64(wait.Milliseconds()))
	n, err := page.Locator(detailsSelector).Count()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if err := card.Locator(linkSelector).First().Click(playwright.LocatorClickOptions{Timeout: timeout}); err != nil {
			return nil, err
		}
	}
	desc := page.Locator(descriptionSelector).First()
	if err := desc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: timeout,
	}); err != nil {
		return nil, nil
	}
	s, err := desc.TextContent()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func text(card playwright.Locator, selector string) (*string, error) {
	loc := card.Locator(selector).First()
	n, err := loc.Count()
	if err != nil || n == 0 {
		return nil, err
	}
	s, err := loc.TextContent()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func attr(card playwright.Locator, selector, name string) (*string, error) {
	loc := card.Locator(selector).First()
	n, err := loc.Count()
	if err != nil || n == 0 {
		return nil, err
	}
	s, err := loc.GetAttribute(name)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
