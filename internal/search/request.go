package search

import (
	"net/url"
	"strings"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

const DefaultBaseURL = "https://www.linkedin.com"

const (
	paramKeywords = "keywords"
	paramLocation = "location"
	paramWorkType = "f_WT"
	paramJobType  = "f_JT"

	workTypeRemote  = "2"
	jobTypeFull     = "F"
	jobTypePart     = "P"
	jobTypeContract = "C"
)

// BuildURL turns search params into a job search URL on base. Selected job
// types are OR'ed into a single comma separated constraint.
func BuildURL(base string, p job.SearchParams) string {
	if base == "" {
		base = DefaultBaseURL
	}
	q := url.Values{}
	q.Set(paramKeywords, p.JobTitle)
	if p.Location != "" {
		q.Set(paramLocation, p.Location)
	}
	if p.Filters.Remote {
		q.Set(paramWorkType, workTypeRemote)
	}
	var types []string
	if p.Filters.FullTime {
		types = append(types, jobTypeFull)
	}
	if p.Filters.PartTime {
		types = append(types, jobTypePart)
	}
	if p.Filters.Contract {
		types = append(types, jobTypeContract)
	}
	if len(types) > 0 {
		q.Set(paramJobType, strings.Join(types, ","))
	}
	return strings.TrimRight(base, "/") + "/jobs/search/?" + q.Encode()
}
