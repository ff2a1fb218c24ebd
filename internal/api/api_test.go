package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

type fakeCoordinator struct {
	searched  []job.SearchParams
	results   []job.Record
	searchErr error
	last      *job.SearchParams
	settings  job.Settings
	notified  []string
	alerts    []job.Alert
	saved     []job.Record
	enabled   map[string]bool
	activated []string
}

func (f *fakeCoordinator) PerformSearch(_ context.Context, p job.SearchParams) ([]job.Record, error) {
	f.searched = append(f.searched, p)
	return f.results, f.searchErr
}

func (f *fakeCoordinator) LastSearch(context.Context) (*job.SearchParams, error) {
	return f.last, nil
}

func (f *fakeCoordinator) CurrentResults(context.Context) ([]job.Record, error) {
	return f.results, nil
}

func (f *fakeCoordinator) Settings(context.Context) (job.Settings, error) {
	return f.settings, nil
}

func (f *fakeCoordinator) SettingsUpdated(_ context.Context, s job.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	f.settings = s
	return nil
}

func (f *fakeCoordinator) RequestNotification(_ context.Context, title, message string) error {
	f.notified = append(f.notified, title+"|"+message)
	return nil
}

func (f *fakeCoordinator) Activate(_ context.Context, id string) (bool, error) {
	f.activated = append(f.activated, id)
	return id == "n1", nil
}

func (f *fakeCoordinator) Alerts(context.Context) ([]job.Alert, error) {
	return f.alerts, nil
}

func (f *fakeCoordinator) SetAlertEnabled(_ context.Context, id string, enabled bool) (bool, error) {
	for _, a := range f.alerts {
		if a.ID == id {
			f.enabled[id] = enabled
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCoordinator) DeleteAlert(_ context.Context, id string) (bool, error) {
	for i, a := range f.alerts {
		if a.ID == id {
			f.alerts = append(f.alerts[:i], f.alerts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCoordinator) SavedJobs(context.Context) ([]job.Record, error) {
	return f.saved, nil
}

func (f *fakeCoordinator) SaveJob(_ context.Context, r job.Record) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	for _, s := range f.saved {
		if s.ID == r.ID {
			return false, nil
		}
	}
	f.saved = append(f.saved, r)
	return true, nil
}

func (f *fakeCoordinator) UnsaveJob(_ context.Context, id string) (bool, error) {
	for i, s := range f.saved {
		if s.ID == id {
			f.saved = append(f.saved[:i], f.saved[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func newTestRouter() (*gin.Engine, *fakeCoordinator) {
	gin.SetMode(gin.TestMode)
	coord := &fakeCoordinator{
		settings: job.DefaultSettings(),
		enabled:  map[string]bool{},
		alerts:   []job.Alert{{ID: "a1", JobTitle: "go developer", Enabled: true}},
	}
	return NewRouter(NewHandler(coord)), coord
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter()
	w := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		results    []job.Record
		searchErr  error
		wantStatus int
		wantJobs   int
	}{
		{
			name:       "returns jobs",
			body:       `{"jobTitle":" go developer ","location":"Berlin","keywords":["go"," k8s "]}`,
			results:    []job.Record{{ID: "1", Title: "Go Dev", URL: "https://x/1"}},
			wantStatus: http.StatusOK,
			wantJobs:   1,
		},
		{
			name:       "empty result is an empty list",
			body:       `{"jobTitle":"go"}`,
			wantStatus: http.StatusOK,
			wantJobs:   0,
		},
		{
			name:       "missing title and location",
			body:       `{"keywords":["go"]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"jobTitle":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "coordinator failure",
			body:       `{"jobTitle":"go"}`,
			searchErr:  errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, coord := newTestRouter()
			coord.results = tt.results
			coord.searchErr = tt.searchErr

			w := do(t, r, http.MethodPost, "/api/search", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp searchResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotNil(t, resp.Jobs)
			assert.Len(t, resp.Jobs, tt.wantJobs)
		})
	}
}

func TestSearchTrimsInput(t *testing.T) {
	r, coord := newTestRouter()
	w := do(t, r, http.MethodPost, "/api/search",
		`{"jobTitle":" go developer ","location":" Berlin ","keywords":[" k8s ",""],"enableAlerts":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, coord.searched, 1)
	assert.Equal(t, "go developer", coord.searched[0].JobTitle)
	assert.Equal(t, "Berlin", coord.searched[0].Location)
	assert.Equal(t, []string{"k8s"}, coord.searched[0].Keywords)
	assert.True(t, coord.searched[0].EnableAlerts)
}

func TestSettings(t *testing.T) {
	r, coord := newTestRouter()

	w := do(t, r, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"notifications":true,"checkInterval":60}`, w.Body.String())

	w = do(t, r, http.MethodPut, "/api/settings", `{"notifications":false,"checkInterval":15}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, job.Settings{NotificationsEnabled: false, CheckIntervalMinutes: 15}, coord.settings)

	w = do(t, r, http.MethodPut, "/api/settings", `{"notifications":true,"checkInterval":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 15, coord.settings.CheckIntervalMinutes)
}

func TestLastSearch(t *testing.T) {
	r, coord := newTestRouter()

	w := do(t, r, http.MethodGet, "/api/search/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())

	coord.last = &job.SearchParams{JobTitle: "go"}
	w = do(t, r, http.MethodGet, "/api/search/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	var p job.SearchParams
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "go", p.JobTitle)
}

func TestRequestNotification(t *testing.T) {
	r, coord := newTestRouter()

	w := do(t, r, http.MethodPost, "/api/notifications", `{"title":"Hi","message":"there"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"Hi|there"}, coord.notified)

	w = do(t, r, http.MethodPost, "/api/notifications", `{"message":"no title"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActivate(t *testing.T) {
	r, coord := newTestRouter()

	w := do(t, r, http.MethodPost, "/api/notifications/n1/activate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"opened":true}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/notifications/other/activate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"opened":false}`, w.Body.String())
	assert.Equal(t, []string{"n1", "other"}, coord.activated)
}

func TestAlerts(t *testing.T) {
	r, coord := newTestRouter()

	w := do(t, r, http.MethodGet, "/api/alerts", "")
	require.Equal(t, http.StatusOK, w.Code)
	var alerts []job.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "a1", alerts[0].ID)

	w = do(t, r, http.MethodPut, "/api/alerts/a1/enabled", `{"enabled":false}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, map[string]bool{"a1": false}, coord.enabled)

	w = do(t, r, http.MethodPut, "/api/alerts/a1/enabled", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/api/alerts/missing/enabled", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodDelete, "/api/alerts/a1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, coord.alerts)

	w = do(t, r, http.MethodDelete, "/api/alerts/a1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSavedJobs(t *testing.T) {
	r, coord := newTestRouter()
	body := `{"id":"42","title":"Go Dev","company":"Acme","url":"https://x/42"}`

	w := do(t, r, http.MethodPost, "/api/saved-jobs", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodPost, "/api/saved-jobs", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, coord.saved, 1)

	w = do(t, r, http.MethodPost, "/api/saved-jobs", `{"id":"43","title":"No URL"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/saved-jobs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var saved []job.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "Acme", saved[0].Company)

	w = do(t, r, http.MethodDelete, "/api/saved-jobs/42", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodDelete, "/api/saved-jobs/42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
