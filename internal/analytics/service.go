package analytics

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wecare-insurance/portal/internal/recordsapi"
)

// FirstYear is the oldest year offered by the performance chart.
const FirstYear = 2020

// Source is the slice of the records service the dashboard reads.
type Source interface {
	MonthlyPerformance(ctx context.Context, year int) (recordsapi.MonthlyPerformance, error)
	PoliciesCount(ctx context.Context) (int64, error)
}

// Service serves dashboard figures from the cache, coalescing concurrent
// misses for the same key into one upstream call.
type Service struct {
	cache *Cache
	group singleflight.Group
}

// NewService wires the cache helper. A nil cache disables caching.
func NewService(cache *Cache) *Service {
	return &Service{cache: cache}
}

// MonthlyPerformance returns the per-month series for year.
func (s *Service) MonthlyPerformance(ctx context.Context, src Source, year int) (recordsapi.MonthlyPerformance, error) {
	var perf recordsapi.MonthlyPerformance
	err := s.fetch(ctx, &perf, func(ctx context.Context) (any, error) {
		return src.MonthlyPerformance(ctx, year)
	}, "analytics", "monthly", strconv.Itoa(year))
	return perf, err
}

// PoliciesCount returns the number of live policies.
func (s *Service) PoliciesCount(ctx context.Context, src Source) (int64, error) {
	var count int64
	err := s.fetch(ctx, &count, func(ctx context.Context) (any, error) {
		return src.PoliciesCount(ctx)
	}, "analytics", "policies")
	return count, err
}

// Warm primes the cache for year and the policy count.
func (s *Service) Warm(ctx context.Context, src Source, year int) error {
	if _, err := s.MonthlyPerformance(ctx, src, year); err != nil {
		return err
	}
	_, err := s.PoliciesCount(ctx, src)
	return err
}

// Invalidate drops every cached figure.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) fetch(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		// Redis is unavailable; go straight to the loader.
		key = ""
	}
	flightKey := key
	if flightKey == "" {
		flightKey = "nocache:" + parts[len(parts)-1]
	}
	ch := s.group.DoChan(flightKey, func() (any, error) {
		var raw json.RawMessage
		err := s.cache.FetchJSON(ctx, key, &raw, loader)
		return raw, err
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}

// Totals are the admin tiles derived from a monthly series.
type Totals struct {
	Revenue         float64
	AveragePerMonth float64
}

// Summarize adds up the revenue of a series. The average is rounded to whole
// rupees and is zero for an empty series.
func Summarize(perf recordsapi.MonthlyPerformance) Totals {
	var t Totals
	for _, p := range perf.Data {
		t.Revenue += p.Revenue
	}
	if len(perf.Data) > 0 {
		t.AveragePerMonth = math.Round(t.Revenue / float64(len(perf.Data)))
	}
	return t
}

// Years lists the selectable chart years, most recent first.
func Years(now time.Time) []int {
	last := now.Year() + 1
	years := make([]int, 0, last-FirstYear+1)
	for y := last; y >= FirstYear; y-- {
		years = append(years, y)
	}
	return years
}
