// Package config loads and validates the docship pipeline configuration.
//
// The configuration is a single YAML file (docship.yaml by default).
// Environment variables referenced as ${VAR} are expanded at load time, and
// a .env / .env.local file next to the working directory is loaded first
// (never overriding variables already present in the process environment).
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a docship pipeline.
type Config struct {
	Version    string           `yaml:"version"`
	Project    ProjectConfig    `yaml:"project"`
	DevVersion DevVersionConfig `yaml:"dev_version"`
	Toolchain  ToolchainConfig  `yaml:"toolchain"`
	Docs       DocsConfig       `yaml:"docs"`
	Publish    PublishConfig    `yaml:"publish"`
	Daemon     *DaemonConfig    `yaml:"daemon,omitempty"`
	History    *HistoryConfig   `yaml:"history,omitempty"`
}

// ProjectConfig identifies the project whose documentation is built.
type ProjectConfig struct {
	Name      string `yaml:"name"`       // Friendly project name, used in titles and logs
	SourceDir string `yaml:"source_dir"` // Repository root; working directory for all steps
}

// DevVersionConfig controls how the development version string is derived
// from build-tool metadata.
type DevVersionConfig struct {
	Command       string   `yaml:"command"`        // Build tool binary (e.g. mvn, poetry)
	Args          []string `yaml:"args"`           // Arguments for the version query
	StripSuffixes []string `yaml:"strip_suffixes"` // Pre-release suffixes removed from the token
}

// ToolchainConfig describes the documentation toolchain installation.
type ToolchainConfig struct {
	Installer    string   `yaml:"installer"`     // Package installer binary (e.g. pip3)
	InstallArgs  []string `yaml:"install_args"`  // Arguments preceding the target (default: install)
	Requirements string   `yaml:"requirements"`  // Requirements file installed first
	LocalPackage string   `yaml:"local_package"` // Local package definition installed second (e.g. ".")
}

// DocsConfig describes the documentation generator and its output.
type DocsConfig struct {
	Generator string        `yaml:"generator"` // Generator command (e.g. python3)
	Args      []string      `yaml:"args"`      // Generator arguments (e.g. [auto_doc.py])
	SiteDir   string        `yaml:"site_dir"`  // Directory the generator populates
	Linkcheck LinkcheckMode `yaml:"linkcheck"` // off|warn|strict
}

// LinkcheckMode controls post-generate link verification.
type LinkcheckMode string

const (
	LinkcheckOff    LinkcheckMode = "off"
	LinkcheckWarn   LinkcheckMode = "warn"
	LinkcheckStrict LinkcheckMode = "strict"
)

// PublishConfig describes the versioned publication target.
type PublishConfig struct {
	Remote         string   `yaml:"remote"`          // Remote URL or path of the pages repository
	Branch         string   `yaml:"branch"`          // Pages branch (default gh-pages)
	Alias          string   `yaml:"alias"`           // Movable alias updated on deploy (default dev)
	DefaultVersion string   `yaml:"default_version"` // Version or alias the root redirect points to
	Identity       Identity `yaml:"identity"`        // Commit identity
	LandingPage    string   `yaml:"landing_page"`    // Optional markdown rendered to the root index.html
	TokenEnv       string   `yaml:"token_env"`       // Env var holding the push token (default GITHUB_TOKEN)
	URL            string   `yaml:"url"`             // Public base URL of the published site (informational)
}

// Identity is the git author/committer used for publish commits.
type Identity struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// DaemonConfig enables scheduled pipeline runs with an admin HTTP surface.
type DaemonConfig struct {
	Interval string      `yaml:"interval"` // Run interval (Go duration, e.g. "4h")
	Listen   string      `yaml:"listen"`   // Admin/metrics listen address (default :8082)
	Metrics  bool        `yaml:"metrics"`  // Expose Prometheus /metrics
	NATS     *NATSConfig `yaml:"nats,omitempty"`
}

// NATSConfig enables run-completion event publication.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// HistoryConfig enables the sqlite run history store.
type HistoryConfig struct {
	Path string `yaml:"path"` // Database path; empty disables history
}

// Load reads, expands, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	// Load .env overlay if present; existing process env always wins, and
	// godotenv never overwrites, so .env.local goes first to take
	// precedence over .env.
	for _, envPath := range []string{".env.local", ".env"} {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				fmt.Fprintf(os.Stderr, "Note: %s could not be loaded: %v\n", envPath, err)
			}
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Version != "1.0" {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected 1.0)", config.Version)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	return os.WriteFile(configPath, []byte(exampleConfig), 0o600)
}

const exampleConfig = `version: "1.0"

project:
  name: myproject
  source_dir: .

# How the development version string is derived from build metadata.
dev_version:
  command: mvn
  args: ["help:evaluate", "-Dexpression=project.version", "-q", "-DforceStdout"]
  strip_suffixes: ["-SNAPSHOT"]

toolchain:
  installer: pip3
  requirements: requirements-docs.txt
  local_package: "."

docs:
  generator: python3
  args: ["auto_doc.py"]
  site_dir: site
  linkcheck: warn

publish:
  remote: https://github.com/example/myproject.git
  branch: gh-pages
  alias: dev
  identity:
    name: CI Bot
    email: ci@example.com
  token_env: GITHUB_TOKEN

# Optional: record runs in a local sqlite database.
history:
  path: .docship/history.db

# Optional: scheduled runs with an admin/metrics endpoint.
# daemon:
#   interval: 4h
#   listen: ":8082"
#   metrics: true
#   nats:
#     url: nats://localhost:4222
#     subject: docship.runs
`
