package common

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// SetupLogging configures the global logger from APPWIZARD_LOG_LEVEL and
// APPWIZARD_LOG_FORMAT (text for terminals, json for log shippers).
func SetupLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(Env("APPWIZARD_LOG_LEVEL", "info")))
	if err != nil {
		level = zerolog.InfoLevel
	}
	if Env("APPWIZARD_LOG_FORMAT", "text") == "json" {
		logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
		return
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func Debugf(format string, args ...any) {
	logger.Debug().Msg(sanitizeForLogging(fmt.Sprintf(format, args...)))
}

func Infof(format string, args ...any) {
	logger.Info().Msg(sanitizeForLogging(fmt.Sprintf(format, args...)))
}

func Warnf(format string, args ...any) {
	logger.Warn().Msg(sanitizeForLogging(fmt.Sprintf(format, args...)))
}

func Errorf(format string, args ...any) {
	logger.Error().Msg(sanitizeForLogging(fmt.Sprintf(format, args...)))
}

// Fatalf logs and exits with a non-zero status.
func Fatalf(format string, args ...any) {
	logger.Fatal().Msg(sanitizeForLogging(fmt.Sprintf(format, args...)))
}

// LogCommandOutput logs external command output line by line at debug level,
// truncated to keep provisioning-tool chatter from flooding the log.
func LogCommandOutput(prefix string, output []byte) {
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	maxLines := 20
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], fmt.Sprintf("... %d more lines truncated ...", len(lines)-maxLines))
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			Debugf("%s: %s", prefix, line)
		}
	}
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|secret|token|api[-_]?key|credential)[=:]\S+`),
	regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@\S+`),
}

var protectedEnvVars = []string{
	"APPWIZARD_DB_ROOT_PASSWORD",
	"POSTGRES_PASSWORD",
	"DATABASE_URL",
	"AWS_SECRET_ACCESS_KEY",
	"GOOGLE_APPLICATION_CREDENTIALS",
}

// sanitizeForLogging removes potential secrets from any string before logging
func sanitizeForLogging(line string) string {
	for _, envVar := range protectedEnvVars {
		if value := os.Getenv(envVar); value != "" && value != "true" && value != "false" {
			line = strings.ReplaceAll(line, value, "***REDACTED***")
		}
	}
	for _, re := range secretPatterns {
		line = re.ReplaceAllStringFunc(line, func(match string) string {
			if parts := strings.SplitN(match, "=", 2); len(parts) == 2 {
				return parts[0] + "=***REDACTED***"
			}
			if parts := strings.SplitN(match, ":", 2); len(parts) == 2 {
				return parts[0] + ":***REDACTED***"
			}
			return "***REDACTED***"
		})
	}
	return line
}
