package renewals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wecare-insurance/portal/internal/shared"
)

const (
	summaryKey = "portal:renewals:summary"
	summaryTTL = 26 * time.Hour
)

// Store keeps the latest scan summary in Redis.
type Store struct {
	client *redis.Client
}

// NewStore wraps a Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Save replaces the stored summary.
func (s *Store) Save(ctx context.Context, summary Summary) error {
	if s == nil || s.client == nil {
		return nil
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, summaryKey, raw, summaryTTL).Err()
}

// Load returns the stored summary. ok is false when no scan has run yet.
func (s *Store) Load(ctx context.Context) (Summary, bool, error) {
	if s == nil || s.client == nil {
		return Summary{}, false, nil
	}
	raw, err := s.client.Get(ctx, summaryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, err
	}
	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return Summary{}, false, err
	}
	return summary, true, nil
}

// BadgeMiddleware puts the stored window count into the request context for
// the navigation badge. Lookup failures leave the badge empty.
func (s *Store) BadgeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.IdentityFromContext(r.Context()); ok {
			if summary, found, err := s.Load(r.Context()); err == nil && found {
				r = r.WithContext(shared.ContextWithExpiring(r.Context(), summary.Pending))
			}
		}
		next.ServeHTTP(w, r)
	})
}
