package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/thealah/rest-windows-service-health-facade/internal/executor"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult splits config problems into fatals, which must stop
// startup, and warnings, which were auto-corrected in place.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// ValidateTiered checks the config. Out-of-range tunables are clamped and
// reported as warnings; values the service cannot run with are fatal.
func (c *Config) ValidateTiered() ValidationResult {
	var result ValidationResult
	fatal := func(format string, args ...any) {
		result.Fatals = append(result.Fatals, fmt.Errorf(format, args...))
	}
	warn := func(format string, args ...any) {
		result.Warnings = append(result.Warnings, fmt.Errorf(format, args...))
	}

	if c.Port < 1 || c.Port > 65535 {
		fatal("port %d is out of range 1-65535", c.Port)
	}
	if c.AlternatePort < 0 || c.AlternatePort > 65535 {
		fatal("alternate_port %d is out of range 1-65535", c.AlternatePort)
	}

	if strings.TrimSpace(c.NetCommand) == "" {
		fatal("net_command must not be empty")
	}
	if strings.TrimSpace(c.AppcmdCommand) == "" {
		fatal("appcmd_command must not be empty")
	}

	if !executor.KnownEncoding(c.OutputEncoding) {
		fatal("output_encoding %q is not supported (use %s)", c.OutputEncoding, strings.Join(executor.Encodings(), ", "))
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		fatal("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		fatal("log_format %q is not valid (use text or json)", c.LogFormat)
	}

	if c.MaxConnections < 1 {
		warn("max_connections %d is below minimum 1, clamping", c.MaxConnections)
		c.MaxConnections = 1
	} else if c.MaxConnections > 10000 {
		warn("max_connections %d exceeds maximum 10000, clamping", c.MaxConnections)
		c.MaxConnections = 10000
	}

	if c.CommandTimeoutSeconds < 0 {
		warn("command_timeout_seconds %d is negative, disabling the timeout", c.CommandTimeoutSeconds)
		c.CommandTimeoutSeconds = 0
	}

	if c.ShutdownTimeoutSeconds < 1 {
		warn("shutdown_timeout_seconds %d is below minimum 1, clamping", c.ShutdownTimeoutSeconds)
		c.ShutdownTimeoutSeconds = 1
	} else if c.ShutdownTimeoutSeconds > 300 {
		warn("shutdown_timeout_seconds %d exceeds maximum 300, clamping", c.ShutdownTimeoutSeconds)
		c.ShutdownTimeoutSeconds = 300
	}

	if c.LogMaxSizeMB < 1 {
		warn("log_max_size_mb %d is below minimum 1, clamping", c.LogMaxSizeMB)
		c.LogMaxSizeMB = 1
	} else if c.LogMaxSizeMB > 1024 {
		warn("log_max_size_mb %d exceeds maximum 1024, clamping", c.LogMaxSizeMB)
		c.LogMaxSizeMB = 1024
	}
	if c.LogMaxBackups < 1 {
		warn("log_max_backups %d is below minimum 1, clamping", c.LogMaxBackups)
		c.LogMaxBackups = 1
	} else if c.LogMaxBackups > 100 {
		warn("log_max_backups %d exceeds maximum 100, clamping", c.LogMaxBackups)
		c.LogMaxBackups = 100
	}

	if c.AllowlistFile == "" && len(c.Allow.Services) == 0 && len(c.Allow.Websites) == 0 {
		warn("allow-list is empty, every service and website will be hidden")
	}

	for _, err := range result.Fatals {
		slog.Error("config validation", "error", err)
	}
	for _, err := range result.Warnings {
		slog.Warn("config validation", "error", err)
	}

	return result
}
