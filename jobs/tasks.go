package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRenewalScan counts the policies inside the renewal window.
	TaskRenewalScan = "renewal:scan"
	// TaskAnalyticsWarmup pre-loads the dashboard figures into the cache.
	TaskAnalyticsWarmup = "analytics:warmup"
)

// RenewalScanPayload configures a renewal scan. Zero days selects the
// worker's configured window.
type RenewalScanPayload struct {
	WindowDays int `json:"window_days"`
}

// NewRenewalScanTask constructs an Asynq task.
func NewRenewalScanTask(windowDays int) (*asynq.Task, error) {
	data, err := json.Marshal(RenewalScanPayload{WindowDays: windowDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRenewalScan, data), nil
}

// AnalyticsWarmupPayload names the year to warm. Zero means the current year.
type AnalyticsWarmupPayload struct {
	Year int `json:"year"`
}

// NewAnalyticsWarmupTask constructs an Asynq task.
func NewAnalyticsWarmupTask(year int) (*asynq.Task, error) {
	data, err := json.Marshal(AnalyticsWarmupPayload{Year: year})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data), nil
}
