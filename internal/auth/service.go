package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/wecare-insurance/portal/internal/recordsapi"
	"github.com/wecare-insurance/portal/internal/shared"
)

// Gateway is the remote side of authentication.
type Gateway interface {
	Login(ctx context.Context, username, password string) (recordsapi.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// APIGateway adapts the records API client to Gateway.
type APIGateway struct {
	Client *recordsapi.Client
}

// Login exchanges credentials for a token.
func (g APIGateway) Login(ctx context.Context, username, password string) (recordsapi.LoginResult, error) {
	return g.Client.Login(ctx, username, password)
}

// Logout revokes token on the API.
func (g APIGateway) Logout(ctx context.Context, token string) error {
	return g.Client.WithToken(token).Logout(ctx)
}

// Service wraps authentication rules.
type Service struct {
	gateway Gateway
}

// NewService constructs a new Service.
func NewService(gateway Gateway) *Service {
	return &Service{gateway: gateway}
}

// Authenticate validates credentials against the records API. Rejected
// credentials surface as shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (recordsapi.LoginResult, error) {
	res, err := s.gateway.Login(ctx, username, password)
	if err != nil {
		var serr *shared.ServerError
		if errors.As(err, &serr) && (serr.Status == http.StatusUnauthorized || serr.Status == http.StatusBadRequest) {
			return recordsapi.LoginResult{}, shared.ErrInvalidCredentials
		}
		return recordsapi.LoginResult{}, err
	}
	if res.Token == "" {
		return recordsapi.LoginResult{}, &shared.ServerError{Op: "login", Message: "login response carried no token"}
	}
	return res, nil
}

// Logout revokes the token remotely.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.gateway.Logout(ctx, token)
}
