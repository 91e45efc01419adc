package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wecare-insurance/portal/internal/analytics"
	jobmetrics "github.com/wecare-insurance/portal/internal/jobs"
	"github.com/wecare-insurance/portal/internal/recordsapi"
	"github.com/wecare-insurance/portal/internal/renewals"
)

type fakeAPI struct {
	logins       atomic.Int32
	expiring     atomic.Int32
	monthly      atomic.Int32
	rejectTokens atomic.Int32
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		n := f.logins.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "worker-token-" + string(rune('0'+n)),
			"user":  map[string]any{"id": 9, "username": "scanner", "role": "admin"},
		})
	})
	mux.HandleFunc("/insurance-records/expiring", func(w http.ResponseWriter, r *http.Request) {
		f.expiring.Add(1)
		if f.rejectTokens.Load() > 0 {
			f.rejectTokens.Add(-1)
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "token expired"})
			return
		}
		assert.Equal(t, "14", r.URL.Query().Get("days"))
		writeJSON(w, http.StatusOK, map[string]any{
			"records": []map[string]any{
				{"id": 1, "customerName": "Asha", "daysUntilExpiry": 3, "renewalNotified": false},
				{"id": 2, "customerName": "Ravi", "daysUntilExpiry": 10, "renewalNotified": true},
				{"id": 3, "customerName": "Meera", "daysUntilExpiry": 12, "renewalNotified": false},
			},
			"total": 3,
		})
	})
	mux.HandleFunc("/analytics/monthly-performance", func(w http.ResponseWriter, r *http.Request) {
		f.monthly.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"year":          2026,
			"data":          []map[string]any{{"month": "Jan", "policies": 4, "revenue": 20000}},
			"totalPolicies": 4,
		})
	})
	mux.HandleFunc("/analytics/policies-count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"totalPolicies": 12})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type jobFixture struct {
	api     *fakeAPI
	account *ServiceAccount
	redis   *redis.Client
	reg     *prometheus.Registry
	metrics *jobmetrics.Metrics
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := recordsapi.New(srv.URL, 2*time.Second, nil, recordsapi.WithRetryDelay(time.Millisecond))
	reg := prometheus.NewRegistry()
	return &jobFixture{
		api:     api,
		account: &ServiceAccount{Client: client, Username: "scanner", Password: "pw"},
		redis:   rdb,
		reg:     reg,
		metrics: jobmetrics.NewMetrics(reg),
	}
}

// runs reads portal_jobs_total for a job and status.
func (f *jobFixture) runs(t *testing.T, job, status string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "portal_jobs_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["job"] == job && labels["status"] == status {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func scanTask(t *testing.T, days int) *asynq.Task {
	t.Helper()
	task, err := NewRenewalScanTask(days)
	require.NoError(t, err)
	return task
}

func warmupTask(t *testing.T, year int) *asynq.Task {
	t.Helper()
	task, err := NewAnalyticsWarmupTask(year)
	require.NoError(t, err)
	return task
}

func TestRenewalScanStoresSummary(t *testing.T) {
	f := newJobFixture(t)
	store := renewals.NewStore(f.redis)
	job := NewRenewalScanJob(f.account, store, 30, nil, f.metrics)

	require.NoError(t, job.Handle(context.Background(), scanTask(t, 14)))

	summary, found, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 14, summary.WindowDays)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Pending)
	assert.Equal(t, 1, summary.Notified)
	assert.Equal(t, 1, summary.High)
	assert.Equal(t, 2, summary.Medium)
}

func TestRenewalScanReusesToken(t *testing.T) {
	f := newJobFixture(t)
	job := NewRenewalScanJob(f.account, renewals.NewStore(f.redis), 14, nil, f.metrics)
	task := scanTask(t, 0)

	require.NoError(t, job.Handle(context.Background(), task))
	require.NoError(t, job.Handle(context.Background(), task))
	assert.EqualValues(t, 1, f.api.logins.Load())
	assert.EqualValues(t, 2, f.api.expiring.Load())
}

func TestRenewalScanSignsInAgainAfterRejectedToken(t *testing.T) {
	f := newJobFixture(t)
	job := NewRenewalScanJob(f.account, renewals.NewStore(f.redis), 14, nil, f.metrics)
	task := scanTask(t, 0)

	f.api.rejectTokens.Store(1)
	err := job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.True(t, recordsapi.IsAuthError(err))

	require.NoError(t, job.Handle(context.Background(), task))
	assert.EqualValues(t, 2, f.api.logins.Load())
}

func TestRenewalScanRecordsOutcome(t *testing.T) {
	f := newJobFixture(t)
	job := NewRenewalScanJob(f.account, renewals.NewStore(f.redis), 14, nil, f.metrics)
	task := scanTask(t, 0)

	f.api.rejectTokens.Store(1)
	require.Error(t, job.Handle(context.Background(), task))
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, 1.0, f.runs(t, TaskRenewalScan, "failure"))
	assert.Equal(t, 1.0, f.runs(t, TaskRenewalScan, "success"))
}

func TestRenewalScanWithoutCredentialsSkipsRetry(t *testing.T) {
	f := newJobFixture(t)
	f.account.Password = ""
	job := NewRenewalScanJob(f.account, renewals.NewStore(f.redis), 14, nil, f.metrics)

	err := job.Handle(context.Background(), scanTask(t, 0))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.Zero(t, f.api.logins.Load())
}

func TestRenewalScanRejectsMalformedPayload(t *testing.T) {
	f := newJobFixture(t)
	job := NewRenewalScanJob(f.account, renewals.NewStore(f.redis), 14, nil, f.metrics)

	err := job.Handle(context.Background(), asynq.NewTask(TaskRenewalScan, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type failingSource struct{}

func (failingSource) MonthlyPerformance(ctx context.Context, year int) (recordsapi.MonthlyPerformance, error) {
	return recordsapi.MonthlyPerformance{}, errors.New("api down")
}

func (failingSource) PoliciesCount(ctx context.Context) (int64, error) {
	return 0, errors.New("api down")
}

func TestAnalyticsWarmupFillsCache(t *testing.T) {
	f := newJobFixture(t)
	service := analytics.NewService(analytics.NewCache(f.redis, time.Minute))
	job := NewAnalyticsWarmupJob(service, f.account, nil, f.metrics)
	job.clock = func() time.Time { return time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Handle(context.Background(), warmupTask(t, 0)))
	assert.EqualValues(t, 1, f.api.monthly.Load())

	perf, err := service.MonthlyPerformance(context.Background(), failingSource{}, 2026)
	require.NoError(t, err)
	assert.EqualValues(t, 4, perf.TotalPolicies)
	count, err := service.PoliciesCount(context.Background(), failingSource{})
	require.NoError(t, err)
	assert.EqualValues(t, 12, count)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"failed":0}`, rr.Body.String())
}
