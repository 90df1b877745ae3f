package config

import (
	"fmt"
	"time"
)

// validateConfig checks the configuration for missing or contradictory values.
// Validation runs after defaults so only genuinely required fields fail.
func validateConfig(cfg *Config) error {
	if cfg.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	if cfg.DevVersion.Command == "" {
		return fmt.Errorf("dev_version.command is required")
	}
	if cfg.Toolchain.Installer != "" && cfg.Toolchain.Requirements == "" && cfg.Toolchain.LocalPackage == "" {
		return fmt.Errorf("toolchain.installer set but neither requirements nor local_package given")
	}
	if cfg.Docs.Generator == "" {
		return fmt.Errorf("docs.generator is required")
	}
	switch cfg.Docs.Linkcheck {
	case LinkcheckOff, LinkcheckWarn, LinkcheckStrict:
	default:
		return fmt.Errorf("docs.linkcheck must be off, warn or strict (got %q)", cfg.Docs.Linkcheck)
	}
	if cfg.Publish.Remote == "" {
		return fmt.Errorf("publish.remote is required")
	}
	if cfg.Publish.Identity.Name == "" || cfg.Publish.Identity.Email == "" {
		return fmt.Errorf("publish.identity.name and publish.identity.email are required")
	}
	if cfg.Daemon != nil {
		if cfg.Daemon.Interval == "" {
			return fmt.Errorf("daemon.interval is required when daemon mode is configured")
		}
		if _, err := time.ParseDuration(cfg.Daemon.Interval); err != nil {
			return fmt.Errorf("daemon.interval is not a valid duration: %w", err)
		}
		if cfg.Daemon.NATS != nil {
			if cfg.Daemon.NATS.URL == "" || cfg.Daemon.NATS.Subject == "" {
				return fmt.Errorf("daemon.nats requires both url and subject")
			}
		}
	}
	return nil
}

// DaemonInterval returns the parsed daemon interval. Call only after Load.
func (c *Config) DaemonInterval() time.Duration {
	if c.Daemon == nil {
		return 0
	}
	d, _ := time.ParseDuration(c.Daemon.Interval)
	return d
}
