package app

import (
	"time"

	"github.com/visicontrol/visicontrol/internal/auth"
)

const (
	defaultResetTokenTTL  = time.Hour
	defaultRateLimitCount = 10
	defaultRateLimitSpan  = time.Minute
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

// ResetTTL returns the password reset link lifetime, defaulting to one hour.
func (c AuthConfig) ResetTTL() time.Duration {
	if c.ResetTokenTTL <= 0 {
		return defaultResetTokenTTL
	}
	return c.ResetTokenTTL
}

// RateLimitParams returns the request budget and window for credential endpoints.
func (c AuthConfig) RateLimitParams() (int, time.Duration) {
	requests := c.RateLimit.Requests
	if requests <= 0 {
		requests = defaultRateLimitCount
	}
	window := c.RateLimit.Window
	if window <= 0 {
		window = defaultRateLimitSpan
	}
	return requests, window
}
