package bot

import (
	"context"

	"github.com/pachmu/nice_job_alert_bot/internal/job"
)

// Coordinator is what chat commands drive.
type Coordinator interface {
	PerformSearch(ctx context.Context, p job.SearchParams) ([]job.Record, error)
	Settings(ctx context.Context) (job.Settings, error)
	SettingsUpdated(ctx context.Context, settings job.Settings) error
	Alerts(ctx context.Context) ([]job.Alert, error)
	SetAlertEnabled(ctx context.Context, id string, enabled bool) (bool, error)
	DeleteAlert(ctx context.Context, id string) (bool, error)
	Activate(ctx context.Context, notificationID string) (bool, error)
}
