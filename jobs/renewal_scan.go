package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/wecare-insurance/portal/internal/jobs"
	"github.com/wecare-insurance/portal/internal/renewals"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SummaryWriter persists the result of a renewal scan.
type SummaryWriter interface {
	Save(ctx context.Context, summary renewals.Summary) error
}

// RenewalScanJob counts the policies in the renewal window and publishes the
// result for the navigation badge, the dashboard and Prometheus.
type RenewalScanJob struct {
	Account    *ServiceAccount
	Store      SummaryWriter
	WindowDays int
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewRenewalScanJob wires dependencies for the scan handler.
func NewRenewalScanJob(account *ServiceAccount, store SummaryWriter, windowDays int, logger *slog.Logger, metrics *jobmetrics.Metrics) *RenewalScanJob {
	return &RenewalScanJob{
		Account:    account,
		Store:      store,
		WindowDays: windowDays,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes renewal scan tasks.
func (j *RenewalScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("renewal scan: handler not configured")
	}
	var payload RenewalScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	days := payload.WindowDays
	if days <= 0 {
		days = j.WindowDays
	}
	if days <= 0 {
		days = renewals.DefaultWindowDays
	}

	tracker := j.metrics().Track(TaskRenewalScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("window_days", days))
	summary, err := j.scan(ctx, days)
	if err != nil {
		logger.Error("renewal scan", slog.Any("error", err))
		if errors.Is(err, ErrNoCredentials) {
			return errors.Join(err, asynq.SkipRetry)
		}
		return err
	}

	j.metrics().SetExpiring(summary.ByUrgency())
	logger.Info("completed renewal scan",
		slog.Int("total", summary.Total),
		slog.Int("pending", summary.Pending),
		slog.Int("high", summary.High))
	return nil
}

func (j *RenewalScanJob) scan(ctx context.Context, days int) (renewals.Summary, error) {
	scanCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	api, err := j.Account.API(scanCtx)
	if err != nil {
		j.Account.Observe(err)
		return renewals.Summary{}, err
	}
	res, err := api.GetExpiring(scanCtx, days)
	if err != nil {
		j.Account.Observe(err)
		return renewals.Summary{}, err
	}
	summary := renewals.Summarize(res.Records, j.now(), days)
	if err := j.Store.Save(scanCtx, summary); err != nil {
		return renewals.Summary{}, err
	}
	return summary, nil
}

func (j *RenewalScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRenewalScan))
	}
	return slog.Default().With(slog.String("job", TaskRenewalScan))
}

func (j *RenewalScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *RenewalScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
