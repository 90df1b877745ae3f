// Package publish deploys a generated documentation site as a versioned
// tree on a git pages branch. Each version lives in its own directory,
// movable aliases (dev, latest, ...) mirror the version they point at, and
// versions.json records what is published. The layout is compatible with
// version-aware static doc hosts.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/errors"
	"git.home.luguber.info/inful/docship/internal/gitrepo"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/metrics"
	"git.home.luguber.info/inful/docship/internal/version"
	"git.home.luguber.info/inful/docship/internal/workspace"
)

// DeployRequest describes one versioned deployment.
type DeployRequest struct {
	Version       string   // Version token (already validated or validated here)
	Title         string   // Display title; defaults to the version
	Aliases       []string // Aliases to (re)point at this version
	UpdateAliases bool     // Allow stealing an alias from another version (-u semantics)
	Push          bool     // Push the pages branch after committing
}

// Publisher deploys, lists and deletes published versions.
type Publisher struct {
	cfg      config.PublishConfig
	siteDir  string
	client   *gitrepo.Client
	ws       *workspace.Manager
	recorder metrics.Recorder
}

// NewPublisher creates a publisher for the given publish config. siteDir is
// the generated site to deploy; ws provides the pages checkout directory.
func NewPublisher(cfg config.PublishConfig, siteDir string, ws *workspace.Manager) *Publisher {
	return &Publisher{
		cfg:      cfg,
		siteDir:  siteDir,
		client:   gitrepo.NewClient(cfg),
		ws:       ws,
		recorder: metrics.NoopRecorder{},
	}
}

// WithRecorder injects a metrics recorder (fluent helper).
func (p *Publisher) WithRecorder(r metrics.Recorder) *Publisher {
	if r != nil {
		p.recorder = r
	}
	return p
}

// Deploy publishes the site directory as req.Version and repoints aliases.
// Deploying the same tree twice is idempotent: the second run finds nothing
// to commit and leaves the alias target unchanged.
func (p *Publisher) Deploy(ctx context.Context, req DeployRequest) error {
	start := time.Now()

	if !version.IsValidToken(req.Version) {
		return errors.New(errors.CategoryPublish, errors.SeverityFatal, "not a valid version token").
			WithContext("version", req.Version)
	}
	if empty, err := dirMissingOrEmpty(p.siteDir); err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "cannot read site directory")
	} else if empty {
		return errors.SiteDirMissing(p.siteDir)
	}

	co, m, err := p.materialize(ctx)
	if err != nil {
		return err
	}

	// Alias ownership check before touching anything.
	for _, alias := range req.Aliases {
		owner := m.AliasOwner(alias)
		if owner != "" && owner != req.Version && !req.UpdateAliases {
			return errors.New(errors.CategoryPublish, errors.SeverityFatal, "alias already in use").
				WithContext("alias", alias).
				WithContext("owner", owner)
		}
	}

	versionDir := Slugify(req.Version)
	if err := replaceTree(p.siteDir, filepath.Join(co.Dir, versionDir)); err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "copy site into version directory")
	}
	for _, alias := range req.Aliases {
		if err := replaceTree(p.siteDir, filepath.Join(co.Dir, Slugify(alias))); err != nil {
			return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "copy site into alias directory")
		}
	}

	m.Add(req.Version, req.Title, req.Aliases)
	if err := m.Save(filepath.Join(co.Dir, ManifestFile)); err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "write version manifest")
	}

	if err := p.writeRootIndex(co.Dir, m); err != nil {
		return err
	}

	message := fmt.Sprintf("Deployed %s with docship", req.Version)
	if len(req.Aliases) > 0 {
		message = fmt.Sprintf("Deployed %s (%s) with docship", req.Version, joinAliases(req.Aliases))
	}
	if err := p.commitAndMaybePush(ctx, co, message, req.Push); err != nil {
		return err
	}

	p.recorder.ObservePublishDuration(time.Since(start))
	slog.Info("Deployed documentation version",
		logfields.Version(req.Version),
		slog.Any("aliases", req.Aliases),
		logfields.Branch(p.cfg.Branch),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return nil
}

// List returns the published versions, newest first.
func (p *Publisher) List(ctx context.Context) ([]VersionInfo, error) {
	_, m, err := p.materialize(ctx)
	if err != nil {
		return nil, err
	}
	return m.Entries, nil
}

// Delete removes versions (or aliases) from the pages branch. Deleting a
// version also removes its alias directories; deleting an alias leaves the
// version in place.
func (p *Publisher) Delete(ctx context.Context, refs []string, push bool) error {
	co, m, err := p.materialize(ctx)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		entry, ok := m.Find(ref)
		if !ok {
			return errors.New(errors.CategoryPublish, errors.SeverityFatal, "version or alias not found").
				WithContext("ref", ref)
		}

		if entry.Version == ref {
			aliases, _ := m.Remove(ref)
			dirs := append([]string{ref}, aliases...)
			for _, d := range dirs {
				if err := os.RemoveAll(filepath.Join(co.Dir, Slugify(d))); err != nil {
					return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "remove published directory")
				}
			}
			slog.Info("Removed published version", logfields.Version(ref), slog.Any("aliases", aliases))
		} else {
			// ref is an alias: detach it from its version.
			m.removeAlias(ref)
			if err := os.RemoveAll(filepath.Join(co.Dir, Slugify(ref))); err != nil {
				return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "remove alias directory")
			}
			slog.Info("Removed alias", logfields.Alias(ref), logfields.Version(entry.Version))
		}
	}

	if err := m.Save(filepath.Join(co.Dir, ManifestFile)); err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "write version manifest")
	}
	if err := p.writeRootIndex(co.Dir, m); err != nil {
		return err
	}

	return p.commitAndMaybePush(ctx, co, fmt.Sprintf("Removed %s with docship", joinAliases(refs)), push)
}

// SetDefault points the root redirect at ref (a version or alias).
func (p *Publisher) SetDefault(ctx context.Context, ref string, push bool) error {
	co, m, err := p.materialize(ctx)
	if err != nil {
		return err
	}
	if _, ok := m.Find(ref); !ok {
		return errors.New(errors.CategoryPublish, errors.SeverityFatal, "version or alias not found").
			WithContext("ref", ref)
	}

	if err := os.WriteFile(filepath.Join(co.Dir, "index.html"), RenderRedirect(Slugify(ref)), 0o644); err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "write root redirect")
	}

	return p.commitAndMaybePush(ctx, co, fmt.Sprintf("Set default version to %s with docship", ref), push)
}

// materialize prepares the pages checkout and loads the manifest.
func (p *Publisher) materialize(ctx context.Context) (*gitrepo.Checkout, *Manifest, error) {
	if err := p.ws.Create(); err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "create workspace")
	}
	pagesDir, err := p.ws.Subdir("pages")
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "create pages directory")
	}

	co, err := p.client.Materialize(ctx, pagesDir)
	if err != nil {
		return nil, nil, errors.GitOperation(err, "materialize pages branch")
	}

	m, err := LoadManifest(filepath.Join(co.Dir, ManifestFile))
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "load version manifest")
	}
	return co, m, nil
}

// writeRootIndex writes the root index.html: a rendered landing page when
// configured, otherwise a redirect to the default version (when set).
func (p *Publisher) writeRootIndex(dir string, m *Manifest) error {
	indexPath := filepath.Join(dir, "index.html")

	if p.cfg.LandingPage != "" {
		body, err := RenderLandingPage(p.cfg.LandingPage, p.cfg.URL)
		if err != nil {
			return errors.Wrap(err, errors.CategoryPublish, errors.SeverityFatal, "render landing page")
		}
		return os.WriteFile(indexPath, body, 0o644)
	}

	if p.cfg.DefaultVersion == "" {
		return nil
	}
	if _, ok := m.Find(p.cfg.DefaultVersion); !ok {
		slog.Warn("Configured default version is not published, skipping root redirect",
			logfields.Version(p.cfg.DefaultVersion))
		return nil
	}
	return os.WriteFile(indexPath, RenderRedirect(Slugify(p.cfg.DefaultVersion)), 0o644)
}

func (p *Publisher) commitAndMaybePush(ctx context.Context, co *gitrepo.Checkout, message string, push bool) error {
	_, committed, err := p.client.CommitAll(co, message)
	if err != nil {
		return errors.GitOperation(err, "commit pages update")
	}
	if !push {
		return nil
	}
	if !committed {
		slog.Debug("Nothing committed, skipping push")
		return nil
	}
	if err := p.client.Push(ctx, co); err != nil {
		return errors.GitOperation(err, "push pages branch")
	}
	return nil
}

// replaceTree replaces dst with a copy of src.
func replaceTree(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return copyTree(src, dst)
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func dirMissingOrEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

func joinAliases(list []string) string {
	return strings.Join(list, ", ")
}
