package records

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Screen names used as registry keys.
const (
	ScreenRecords  = "records"
	ScreenPayouts  = "payouts"
	ScreenRenewals = "renewals"
)

// Registry owns one controller per session and screen. Idle entries expire
// with the session.
type Registry struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *Controller]
}

// NewRegistry builds a registry holding at most size controllers for ttl.
func NewRegistry(size int, ttl time.Duration) *Registry {
	if size <= 0 {
		size = 1024
	}
	return &Registry{cache: expirable.NewLRU[string, *Controller](size, nil, ttl)}
}

// Controller returns the controller for the session screen, creating it with
// newAPI and pageSize on first use.
func (r *Registry) Controller(sessionID, screen string, pageSize int, newAPI func() API) *Controller {
	key := registryKey(sessionID, screen)
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctrl, ok := r.cache.Get(key); ok {
		return ctrl
	}
	ctrl := NewController(newAPI(), pageSize)
	r.cache.Add(key, ctrl)
	return ctrl
}

// Forget drops every controller owned by the session.
func (r *Registry) Forget(sessionID string) {
	prefix := sessionID + "|"
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range r.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			r.cache.Remove(key)
		}
	}
}

// Len reports the number of live controllers.
func (r *Registry) Len() int {
	return r.cache.Len()
}

func registryKey(sessionID, screen string) string {
	return sessionID + "|" + screen
}
