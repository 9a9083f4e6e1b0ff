package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks that the configuration carries everything the server
// cannot run without. Provider keys are validated lazily by the services that
// use them so that test builds can run without external credentials.
func ValidateConfig(cfg *Config) error {
	var errors []string

	if cfg.DBHost == "" {
		errors = append(errors, "database host is required (DB_HOST or db_host secret)")
	}
	if cfg.DBUser == "" {
		errors = append(errors, "database user is required (DB_USER or db_user secret)")
	}
	if cfg.DBName == "" {
		errors = append(errors, "database name is required (DB_NAME or db_name secret)")
	}
	if cfg.JWTSecret == "" {
		errors = append(errors, "JWT secret is required (JWT_SECRET or jwt_secret secret)")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "\n"))
	}

	return nil
}
