package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultJWTIssuer is the "iss" claim stamped on every token.
const DefaultJWTIssuer = "content-engine"

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	Issuer          string
}

// NewJWTConfig reads JWT_SECRET (required), JWT_EXPIRATION_HOURS (default 24)
// and JWT_ISSUER (default "content-engine").
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	hours := 24
	if raw := os.Getenv("JWT_EXPIRATION_HOURS"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
		}
		hours = parsed
	}

	cfg := &JWTConfig{
		Secret:          secret,
		ExpirationHours: hours,
		Issuer:          getEnvString("JWT_ISSUER", DefaultJWTIssuer),
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TTL returns the token lifetime.
func (c *JWTConfig) TTL() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

func (c *JWTConfig) normalize() error {
	if len(c.Secret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
