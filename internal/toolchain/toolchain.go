// Package toolchain installs the documentation toolchain and runs the
// documentation generator. Both are opaque external tools: docship only
// interprets exit codes.
package toolchain

import (
	"context"

	"log/slog"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/errors"
	"git.home.luguber.info/inful/docship/internal/execx"
	"git.home.luguber.info/inful/docship/internal/logfields"
)

// Installer installs the documentation toolchain with the configured
// package installer.
type Installer struct {
	cfg config.ToolchainConfig
	dir string
}

// NewInstaller creates an installer running in dir.
func NewInstaller(cfg config.ToolchainConfig, dir string) *Installer {
	return &Installer{cfg: cfg, dir: dir}
}

// Install runs up to two installer invocations: the requirements file, then
// the local package definition. Either failing fails the install; there is
// no retry.
func (i *Installer) Install(ctx context.Context) error {
	if i.cfg.Installer == "" {
		slog.Debug("No toolchain installer configured, skipping")
		return nil
	}

	if i.cfg.Requirements != "" {
		args := append(append([]string{}, i.cfg.InstallArgs...), "-r", i.cfg.Requirements)
		if err := i.run(ctx, args); err != nil {
			return err
		}
	}
	if i.cfg.LocalPackage != "" {
		args := append(append([]string{}, i.cfg.InstallArgs...), i.cfg.LocalPackage)
		if err := i.run(ctx, args); err != nil {
			return err
		}
	}
	return nil
}

func (i *Installer) run(ctx context.Context, args []string) error {
	cmd := execx.Command{Name: i.cfg.Installer, Args: args, Dir: i.dir}
	if _, err := execx.Run(ctx, cmd); err != nil {
		return errors.CommandFailed(err, cmd.String())
	}
	return nil
}

// Generator runs the documentation generation script.
type Generator struct {
	cfg config.DocsConfig
	dir string
	env map[string]string
}

// NewGenerator creates a generator running in dir with extra environment
// (the derived DEV_VERSION, primarily).
func NewGenerator(cfg config.DocsConfig, dir string, env map[string]string) *Generator {
	return &Generator{cfg: cfg, dir: dir, env: env}
}

// Generate runs the generator. It is expected to populate cfg.SiteDir; the
// publish step checks that, not this one, since the generator's output
// contract is its own business.
func (g *Generator) Generate(ctx context.Context) error {
	cmd := execx.Command{Name: g.cfg.Generator, Args: g.cfg.Args, Dir: g.dir, Env: g.env}
	slog.Info("Generating documentation", logfields.Command(cmd.String()))
	if _, err := execx.Run(ctx, cmd); err != nil {
		return errors.Wrap(err, errors.CategoryGenerate, errors.SeverityFatal, "documentation generator failed").
			WithContext("command", cmd.String())
	}
	return nil
}
