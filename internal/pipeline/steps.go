package pipeline

import (
	"context"
	"path/filepath"

	"log/slog"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/errors"
	"git.home.luguber.info/inful/docship/internal/linkcheck"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/publish"
	"git.home.luguber.info/inful/docship/internal/toolchain"
	"git.home.luguber.info/inful/docship/internal/version"
)

// BuildSteps assembles the standard four-step pipeline from configuration.
// The publisher is injected so callers control workspace and push behavior.
func BuildSteps(cfg *config.Config, pub *publish.Publisher, push bool) []Step {
	src := cfg.Project.SourceDir
	return []Step{
		&ExtractVersionStep{Extractor: version.NewExtractor(cfg.DevVersion, src)},
		&InstallToolchainStep{Installer: toolchain.NewInstaller(cfg.Toolchain, src)},
		&GenerateDocsStep{Docs: cfg.Docs, Dir: src},
		&PublishStep{Publisher: pub, Alias: cfg.Publish.Alias, Push: push},
	}
}

// ExtractVersionStep derives the dev version and stores it in the run
// environment. Re-running against the same repository state yields the same
// value.
type ExtractVersionStep struct {
	Extractor *version.Extractor
}

func (s *ExtractVersionStep) Name() StepName { return StepExtractVersion }

func (s *ExtractVersionStep) Execute(ctx context.Context, state *RunState) error {
	v, err := s.Extractor.Extract(ctx)
	if err != nil {
		return err
	}
	state.Env[EnvDevVersion] = v
	slog.Info("Derived dev version", logfields.RunID(state.RunID), logfields.Version(v))
	return nil
}

// InstallToolchainStep installs the documentation toolchain.
type InstallToolchainStep struct {
	Installer *toolchain.Installer
}

func (s *InstallToolchainStep) Name() StepName { return StepInstallToolchain }

func (s *InstallToolchainStep) Execute(ctx context.Context, _ *RunState) error {
	return s.Installer.Install(ctx)
}

// GenerateDocsStep runs the documentation generator with the run environment
// (DEV_VERSION included) and optionally verifies internal links in the
// generated site.
type GenerateDocsStep struct {
	Docs config.DocsConfig
	Dir  string
}

func (s *GenerateDocsStep) Name() StepName { return StepGenerateDocs }

func (s *GenerateDocsStep) Execute(ctx context.Context, state *RunState) error {
	gen := toolchain.NewGenerator(s.Docs, s.Dir, state.Env)
	if err := gen.Generate(ctx); err != nil {
		return err
	}

	if s.Docs.Linkcheck == config.LinkcheckOff || s.Docs.Linkcheck == "" {
		return nil
	}

	siteDir := s.Docs.SiteDir
	if !filepath.IsAbs(siteDir) {
		siteDir = filepath.Join(s.Dir, siteDir)
	}
	issues, err := linkcheck.Run(siteDir)
	if err != nil {
		return errors.Wrap(err, errors.CategoryGenerate, errors.SeverityError, "link verification failed").
			WithContext("site_dir", siteDir)
	}
	if len(issues) == 0 {
		return nil
	}

	for _, issue := range issues {
		slog.Warn("Broken internal link", logfields.RunID(state.RunID), logfields.Path(issue.File), slog.String("target", issue.Target))
	}
	if s.Docs.Linkcheck == config.LinkcheckStrict {
		return errors.New(errors.CategoryGenerate, errors.SeverityFatal, "generated site has broken internal links").
			WithContext("broken_links", len(issues))
	}
	return nil
}

// PublishStep deploys the generated site under the derived version and moves
// the configured alias to it.
type PublishStep struct {
	Publisher *publish.Publisher
	Alias     string
	Push      bool
}

func (s *PublishStep) Name() StepName { return StepPublish }

func (s *PublishStep) Execute(ctx context.Context, state *RunState) error {
	v := state.DevVersion()
	if v == "" {
		return errors.New(errors.CategoryInternal, errors.SeverityFatal, "publish step reached without a derived version")
	}

	req := publish.DeployRequest{
		Version:       v,
		UpdateAliases: true,
		Push:          s.Push,
	}
	if s.Alias != "" {
		req.Aliases = []string{s.Alias}
	}
	return s.Publisher.Deploy(ctx, req)
}
