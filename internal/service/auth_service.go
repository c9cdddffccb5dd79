package service

import (
	"context"
	"errors"
	"strings"

	"github.com/arstudio/api/internal/client"
	"github.com/arstudio/api/internal/extract"
)

// ErrNoToken means the upstream accepted the login but returned no token
var ErrNoToken = errors.New("upstream login returned no token")

// AuthService exchanges operator credentials for an upstream bearer token
type AuthService struct {
	gateway client.Gateway
}

func NewAuthService(gateway client.Gateway) *AuthService {
	return &AuthService{gateway: gateway}
}

// Login returns the token from the response body, or failing that from the
// first token-carrying header.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	resp, err := s.gateway.Login(ctx, username, password)
	if err != nil {
		return "", err
	}

	if token, ok := extract.Token.String(resp.Data); ok {
		return strings.TrimSpace(token), nil
	}
	for _, name := range extract.TokenHeaders {
		if token := BearerToken(resp.Header.Get(name)); token != "" {
			return token, nil
		}
	}
	return "", ErrNoToken
}

// BearerToken strips an optional "Bearer " scheme
func BearerToken(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		v = strings.TrimSpace(v[7:])
	}
	return v
}
