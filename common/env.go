package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Env gets an environment variable with a default value
func Env(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// EnvBool gets an environment variable as a boolean with a default value
func EnvBool(key, def string) bool {
	v := strings.ToLower(Env(key, def))
	return v == "1" || v == "t" || v == "true" || v == "yes" || v == "on"
}

// EnvDur gets an environment variable as a duration with a default value
func EnvDur(key, def string) time.Duration {
	if d, err := time.ParseDuration(Env(key, def)); err == nil {
		return d
	}
	out, _ := time.ParseDuration(def)
	return out
}

// EnvInt gets an environment variable as an integer with a default value
func EnvInt(key string, def int) int {
	if s := Env(key, ""); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// ReadSecretMaybeFile reads a secret from a file if the value starts with "@"
// Returns the secret value and an error (if any)
func ReadSecretMaybeFile(value string) (string, error) {
	if strings.HasPrefix(value, "@") {
		path := strings.TrimPrefix(value, "@")
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(content)), nil
	}
	return value, nil
}
