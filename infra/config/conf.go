package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config holds process-wide singletons.
type Config struct {
	Validator *validator.Validate
}

var instance *Config

// App returns the lazily-initialized application config.
func App() *Config {
	if instance == nil {
		instance = &Config{
			Validator: validator.New(),
		}
	}
	return instance
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value.
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value.
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// EnabledProviders parses the UNIPAY_PROVIDERS list. The deployment enables
// providers explicitly; anything absent here is simply never registered.
func EnabledProviders() []string {
	raw := GetEnv("UNIPAY_PROVIDERS", "")
	if raw == "" {
		return nil
	}

	var enabled []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			enabled = append(enabled, name)
		}
	}
	return enabled
}
