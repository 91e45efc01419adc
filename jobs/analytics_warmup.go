package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wecare-insurance/portal/internal/analytics"
	jobmetrics "github.com/wecare-insurance/portal/internal/jobs"
)

// AnalyticsWarmupJob pre-populates the dashboard cache so the first admin
// request after an invalidation does not wait on the API.
type AnalyticsWarmupJob struct {
	Analytics *analytics.Service
	Account   *ServiceAccount
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler.
func NewAnalyticsWarmupJob(service *analytics.Service, account *ServiceAccount, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Analytics: service,
		Account:   account,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes analytics warmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload AnalyticsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	year := payload.Year
	if year == 0 {
		year = j.now().Year()
	}

	tracker := j.metrics().Track(TaskAnalyticsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("year", year))
	start := time.Now()

	warmCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	api, err := j.Account.API(warmCtx)
	if err != nil {
		j.Account.Observe(err)
		logger.Error("analytics warmup login", slog.Any("error", err))
		if errors.Is(err, ErrNoCredentials) {
			return errors.Join(err, asynq.SkipRetry)
		}
		return err
	}
	if err := j.Analytics.Warm(warmCtx, api, year); err != nil {
		j.Account.Observe(err)
		logger.Error("analytics warmup", slog.Any("error", err))
		return err
	}

	logger.Info("completed analytics warmup", slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *AnalyticsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsWarmup))
}

func (j *AnalyticsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AnalyticsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
