package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "docship.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `version: "1.0"
project:
  name: demo
dev_version:
  command: mvn
  args: ["help:evaluate", "-Dexpression=project.version", "-q", "-DforceStdout"]
toolchain:
  installer: pip3
  requirements: requirements-docs.txt
  local_package: "."
docs:
  generator: python3
  args: ["auto_doc.py"]
publish:
  remote: https://example.com/demo.git
  identity:
    name: CI Bot
    email: ci@example.com
`

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Project.SourceDir)
	assert.Equal(t, []string{"-SNAPSHOT"}, cfg.DevVersion.StripSuffixes)
	assert.Equal(t, []string{"install"}, cfg.Toolchain.InstallArgs)
	assert.Equal(t, "site", cfg.Docs.SiteDir)
	assert.Equal(t, LinkcheckOff, cfg.Docs.Linkcheck)
	assert.Equal(t, DefaultBranch, cfg.Publish.Branch)
	assert.Equal(t, DefaultAlias, cfg.Publish.Alias)
	assert.Equal(t, DefaultTokenEnv, cfg.Publish.TokenEnv)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	content := `version: "9.9"
project: {name: demo}
dev_version: {command: mvn}
docs: {generator: python3}
publish:
  remote: https://example.com/demo.git
  identity: {name: CI, email: ci@example.com}
`
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported configuration version")
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("DOCSHIP_TEST_REMOTE", "https://example.com/env.git")
	content := `version: "1.0"
project: {name: demo}
dev_version: {command: mvn}
docs: {generator: python3}
publish:
  remote: ${DOCSHIP_TEST_REMOTE}
  identity: {name: CI, email: ci@example.com}
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/env.git", cfg.Publish.Remote)
}

func TestLoadEnvLocalWinsOverEnv(t *testing.T) {
	content := `version: "1.0"
project: {name: demo}
dev_version: {command: mvn}
docs: {generator: python3}
publish:
  remote: ${DOCSHIP_TEST_OVERLAY}
  identity: {name: CI, email: ci@example.com}
`
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docship.yaml"), []byte(content), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("DOCSHIP_TEST_OVERLAY=https://example.com/base.git\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"),
		[]byte("DOCSHIP_TEST_OVERLAY=https://example.com/local.git\n"), 0o600))

	t.Chdir(dir)
	defer func() {
		_ = os.Unsetenv("DOCSHIP_TEST_OVERLAY")
	}()

	cfg, err := Load("docship.yaml")
	require.NoError(t, err)
	// Both overlay files load; .env.local takes precedence.
	assert.Equal(t, "https://example.com/local.git", cfg.Publish.Remote)
}

func TestValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"missing project name", func(c *Config) { c.Project.Name = "" }, "project.name"},
		{"missing version command", func(c *Config) { c.DevVersion.Command = "" }, "dev_version.command"},
		{"missing generator", func(c *Config) { c.Docs.Generator = "" }, "docs.generator"},
		{"missing remote", func(c *Config) { c.Publish.Remote = "" }, "publish.remote"},
		{"missing identity", func(c *Config) { c.Publish.Identity.Email = "" }, "identity"},
		{"bad linkcheck", func(c *Config) { c.Docs.Linkcheck = "aggressive" }, "linkcheck"},
		{"bad daemon interval", func(c *Config) { c.Daemon = &DaemonConfig{Interval: "often"} }, "interval"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalConfig))
			require.NoError(t, err)
			tc.mutate(cfg)
			err = validateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestDaemonInterval(t *testing.T) {
	cfg := &Config{Daemon: &DaemonConfig{Interval: "4h"}}
	assert.Equal(t, 4*time.Hour, cfg.DaemonInterval())

	cfg = &Config{}
	assert.Equal(t, time.Duration(0), cfg.DaemonInterval())
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docship.yaml")
	require.NoError(t, Init(path, false))

	// Second init without force must refuse to overwrite.
	err := Init(path, false)
	require.Error(t, err)
	require.NoError(t, Init(path, true))

	// The example file must load once required env-independent fields exist.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "myproject", cfg.Project.Name)
	assert.Equal(t, DefaultAlias, cfg.Publish.Alias)
}
