package job

import "strings"

// Match pairs a record with the alert it satisfied.
type Match struct {
	Job   Record
	Alert Alert
}

// Matches decides whether job satisfies alert. All text tests are
// case-insensitive substring tests, evaluated in order with short-circuit.
//
// Job-type filters (full time, part time, contract) are not checked here:
// records carry no job type, so those filters only shape the search request.
func Matches(job Record, alert Alert) bool {
	if alert.JobTitle != "" && !containsFold(job.Title, alert.JobTitle) {
		return false
	}
	if alert.Location != "" && !containsFold(job.Location, alert.Location) {
		return false
	}
	if alert.Filters.Remote && !job.IsRemote {
		return false
	}
	if len(alert.Keywords) > 0 {
		text := strings.ToLower(job.Title + " " + job.Description)
		for _, kw := range alert.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return true
			}
		}
		return false
	}
	return true
}

// MatchAll evaluates every record against every enabled alert, alert-major.
func MatchAll(records []Record, alerts []Alert) []Match {
	var out []Match
	for _, a := range alerts {
		if !a.Enabled {
			continue
		}
		for _, r := range records {
			if Matches(r, a) {
				out = append(out, Match{Job: r, Alert: a})
			}
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
