package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.Gemini.APIKey == "" {
		errs = append(errs, "GEMINI_API_KEY is required")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	if !strings.HasPrefix(c.Push.ExpoURL, "http") {
		errs = append(errs, "PUSH_EXPO_URL must be an http(s) URL")
	}
	if c.RateLimit.MaxRequests < 1 {
		errs = append(errs, "RATELIMIT_MAX_REQUESTS must be positive")
	}
	if c.RateLimit.WindowSec < 1 {
		errs = append(errs, "RATELIMIT_WINDOW_SEC must be positive")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
