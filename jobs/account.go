package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/wecare-insurance/portal/internal/recordsapi"
)

// ErrNoCredentials is returned when the worker has no API account configured.
var ErrNoCredentials = errors.New("jobs: records API credentials not configured")

// ServiceAccount signs the worker in to the records API and caches the token
// until the API rejects it.
type ServiceAccount struct {
	Client   *recordsapi.Client
	Username string
	Password string

	mu    sync.Mutex
	token string
}

// API returns a client carrying a valid token, logging in when needed.
func (a *ServiceAccount) API(ctx context.Context) (*recordsapi.Client, error) {
	if a == nil || a.Client == nil || a.Username == "" || a.Password == "" {
		return nil, ErrNoCredentials
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == "" {
		res, err := a.Client.Login(ctx, a.Username, a.Password)
		if err != nil {
			return nil, err
		}
		a.token = res.Token
	}
	return a.Client.WithToken(a.token), nil
}

// Observe drops the cached token after an authentication failure so the next
// run signs in again.
func (a *ServiceAccount) Observe(err error) {
	if a == nil || !recordsapi.IsAuthError(err) {
		return
	}
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
}
