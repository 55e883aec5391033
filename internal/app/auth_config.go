package app

import (
	"time"

	"github.com/charlesng35/rosterd/internal/auth"
)

const (
	defaultLoginRateLimitWindow = time.Minute
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// CredentialOptions converts AuthConfig into CredentialStore options.
func (c AuthConfig) CredentialOptions() []auth.CredentialOption {
	var opts []auth.CredentialOption
	if c.BcryptCost > 0 {
		opts = append(opts, auth.WithBcryptCost(c.BcryptCost))
	}
	return opts
}

// LoginLimit returns the login attempt budget and its window. A zero budget disables limiting.
func (c AuthConfig) LoginLimit() (int, time.Duration) {
	requests := c.LoginRateLimit.Requests
	if requests < 0 {
		requests = 0
	}
	window := c.LoginRateLimit.Window
	if window <= 0 {
		window = defaultLoginRateLimitWindow
	}
	return requests, window
}
