// Package job holds the records the coordinator passes around: scraped
// listings, saved alerts, search parameters and user settings.
package job

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrInvalidRecord   = errors.New("job record requires title and url")
	ErrInvalidParams   = errors.New("search requires a job title or a location")
	ErrInvalidSettings = errors.New("check interval must be a positive number of minutes")
)

// Record is a single scraped listing.
type Record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	PostedDate  string `json:"postedDate"`
	URL         string `json:"url"`
	IsRemote    bool   `json:"isRemote"`
	CompanyLogo string `json:"companyLogo,omitempty"`
	Description string `json:"description,omitempty"`
}

// Valid reports whether the record carries the fields everything downstream relies on.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.URL) != ""
}

// Validate is Valid with an error.
func (r Record) Validate() error {
	if !r.Valid() {
		return errors.WithStack(ErrInvalidRecord)
	}
	return nil
}

// FilterValid drops invalid records, keeping the order of the rest.
func FilterValid(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// Filters are independent toggles. The zero value filters nothing.
type Filters struct {
	Remote   bool `json:"remote"`
	FullTime bool `json:"fullTime"`
	PartTime bool `json:"partTime"`
	Contract bool `json:"contract"`
}

// Alert is a saved search the user wants monitored.
type Alert struct {
	ID          string     `json:"id"`
	JobTitle    string     `json:"jobTitle"`
	Location    string     `json:"location"`
	Filters     Filters    `json:"filters"`
	Keywords    []string   `json:"keywords"`
	LastChecked *time.Time `json:"lastChecked"`
	Enabled     bool       `json:"enabled"`
}

// SameQuery reports whether two alerts watch the same (title, location) pair.
func (a Alert) SameQuery(jobTitle, location string) bool {
	return a.JobTitle == jobTitle && a.Location == location
}

// SearchParams is what the panel submits for a search.
type SearchParams struct {
	JobTitle     string   `json:"jobTitle"`
	Location     string   `json:"location"`
	Filters      Filters  `json:"filters"`
	Keywords     []string `json:"keywords"`
	EnableAlerts bool     `json:"enableAlerts"`
}

// NewSearchParams trims and validates user input.
func NewSearchParams(jobTitle, location string, filters Filters, keywords []string, enableAlerts bool) (SearchParams, error) {
	p := SearchParams{
		JobTitle:     strings.TrimSpace(jobTitle),
		Location:     strings.TrimSpace(location),
		Filters:      filters,
		Keywords:     trimKeywords(keywords),
		EnableAlerts: enableAlerts,
	}
	if err := p.Validate(); err != nil {
		return SearchParams{}, err
	}
	return p, nil
}

// Validate checks the params can produce a search request.
func (p SearchParams) Validate() error {
	if strings.TrimSpace(p.JobTitle) == "" && strings.TrimSpace(p.Location) == "" {
		return errors.WithStack(ErrInvalidParams)
	}
	return nil
}

// ForAlert rebuilds the params an alert was created from. Alert-driven searches never create alerts.
func ForAlert(a Alert) SearchParams {
	return SearchParams{
		JobTitle: a.JobTitle,
		Location: a.Location,
		Filters:  a.Filters,
		Keywords: a.Keywords,
	}
}

func trimKeywords(keywords []string) []string {
	var out []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// ParseKeywords splits a comma separated list, dropping blanks.
func ParseKeywords(s string) []string {
	return trimKeywords(strings.Split(s, ","))
}

const (
	DefaultCheckInterval = 60
	DefaultNotifications = true
)

// Settings are process-wide and read on every scheduling decision.
type Settings struct {
	NotificationsEnabled bool `json:"notifications"`
	CheckIntervalMinutes int  `json:"checkInterval"`
}

// DefaultSettings is what an empty store reports.
func DefaultSettings() Settings {
	return Settings{
		NotificationsEnabled: DefaultNotifications,
		CheckIntervalMinutes: DefaultCheckInterval,
	}
}

func (s Settings) Validate() error {
	if s.CheckIntervalMinutes <= 0 {
		return errors.WithStack(ErrInvalidSettings)
	}
	return nil
}

// Interval is CheckIntervalMinutes as a duration.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.CheckIntervalMinutes) * time.Minute
}
