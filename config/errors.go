package config

import (
	"fmt"
	"strings"
)

// ConfigError describes one invalid configuration field with actionable guidance.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Field   string // koanf key, e.g. "gateway.baseurl"
	Message string
	Action  string
}

func (e *ConfigError) Error() string {
	parts := []string{"config_invalid:", e.Field, e.Message}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	return strings.Join(parts, " ")
}

// NewInvalidFieldError creates an error for an invalid configuration value,
// pointing at the environment variable that overrides it.
func NewInvalidFieldError(field, message string) *ConfigError {
	envVar := EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
	return &ConfigError{
		Field:   field,
		Message: message,
		Action:  fmt.Sprintf("fix %s in the config file or set %s", field, envVar),
	}
}
