package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/errors"
	"git.home.luguber.info/inful/docship/internal/workspace"
)

type fixture struct {
	publisher *Publisher
	remote    string
	siteDir   string
	cfg       config.PublishConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	remote := filepath.Join(t.TempDir(), "pages.git")
	_, err := git.PlainInit(remote, true)
	require.NoError(t, err)

	siteDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "index.html"), []byte("<html>docs</html>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(siteDir, "api"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "api", "index.html"), []byte("<html>api</html>"), 0o600))

	cfg := config.PublishConfig{
		Remote:   remote,
		Branch:   "gh-pages",
		Alias:    "dev",
		TokenEnv: "DOCSHIP_TEST_TOKEN_UNSET",
		Identity: config.Identity{Name: "CI Bot", Email: "ci@example.com"},
	}

	ws := workspace.NewPersistentManager(t.TempDir(), "working")
	return &fixture{
		publisher: NewPublisher(cfg, siteDir, ws),
		remote:    remote,
		siteDir:   siteDir,
		cfg:       cfg,
	}
}

func (f *fixture) deploy(t *testing.T, version string, aliases []string, update bool) error {
	t.Helper()
	return f.publisher.Deploy(context.Background(), DeployRequest{
		Version:       version,
		Aliases:       aliases,
		UpdateAliases: update,
		Push:          true,
	})
}

// cloneRemote checks out the pages branch fresh to inspect what was pushed.
func cloneRemote(t *testing.T, remote string) string {
	t.Helper()
	dir := t.TempDir()
	_, err := git.PlainClone(dir, false, &git.CloneOptions{
		URL:           remote,
		ReferenceName: plumbing.NewBranchReferenceName("gh-pages"),
		SingleBranch:  true,
	})
	require.NoError(t, err)
	return dir
}

func TestDeployCreatesVersionAndAlias(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deploy(t, "3.8.0", []string{"dev"}, true))

	pages := cloneRemote(t, f.remote)
	for _, p := range []string{
		"3.8.0/index.html",
		"3.8.0/api/index.html",
		"dev/index.html",
		ManifestFile,
	} {
		_, err := os.Stat(filepath.Join(pages, p))
		assert.NoError(t, err, "expected %s on pages branch", p)
	}

	m, err := LoadManifest(filepath.Join(pages, ManifestFile))
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "3.8.0", m.Entries[0].Version)
	assert.Equal(t, []string{"dev"}, m.Entries[0].Aliases)
}

func TestDeployTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deploy(t, "3.8.0", []string{"dev"}, true))
	// Unchanged site, unchanged version: second run commits nothing and the
	// alias still points at the same version.
	require.NoError(t, f.deploy(t, "3.8.0", []string{"dev"}, true))

	pages := cloneRemote(t, f.remote)
	m, err := LoadManifest(filepath.Join(pages, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "3.8.0", m.AliasOwner("dev"))
	require.Len(t, m.Entries, 1)
}

func TestRedeployWithoutAliasesKeepsAliasPublished(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deploy(t, "3.8.0", []string{"dev"}, true))
	require.NoError(t, f.deploy(t, "3.8.0", nil, true))

	pages := cloneRemote(t, f.remote)
	m, err := LoadManifest(filepath.Join(pages, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "3.8.0", m.AliasOwner("dev"),
		"manifest must keep tracking the alias while its directory is published")
	_, err = os.Stat(filepath.Join(pages, "dev", "index.html"))
	assert.NoError(t, err)

	// With the alias still owned, a later deploy cannot silently claim it.
	err = f.deploy(t, "3.9.0", []string{"dev"}, false)
	require.Error(t, err)
}

func TestDeployMovesAliasAcrossVersions(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deploy(t, "3.8.0", []string{"dev"}, true))

	require.NoError(t, os.WriteFile(filepath.Join(f.siteDir, "index.html"), []byte("<html>v2</html>"), 0o600))
	require.NoError(t, f.deploy(t, "3.9.0", []string{"dev"}, true))

	pages := cloneRemote(t, f.remote)
	m, err := LoadManifest(filepath.Join(pages, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "3.9.0", m.AliasOwner("dev"))
	assert.Equal(t, "3.9.0", m.Entries[0].Version, "newest first")

	data, err := os.ReadFile(filepath.Join(pages, "dev", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "v2")

	// The old version stays published.
	_, err = os.Stat(filepath.Join(pages, "3.8.0", "index.html"))
	assert.NoError(t, err)
}

func TestDeployRefusesAliasTakeoverWithoutUpdate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deploy(t, "3.8.0", []string{"dev"}, true))

	err := f.deploy(t, "3.9.0", []string{"dev"}, false)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPublish))
}

func TestDeployRejectsInvalidVersion(t *testing.T) {
	f := newFixture(t)
	err := f.deploy(t, "not-a-version", nil, false)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPublish))
}

func TestDeployRejectsEmptySiteDir(t *testing.T) {
	f := newFixture(t)
	f.publisher.siteDir = t.TempDir() // empty
	err := f.deploy(t, "3.8.0", nil, false)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPublish))
}

func TestListAndDelete(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deploy(t, "3.8.0", []string{"dev"}, true))
	require.NoError(t, f.deploy(t, "3.9.0", nil, true))

	versions, err := f.publisher.List(context.Background())
	require.NoError(t, err)
	require.Len(t, versions, 2)

	require.NoError(t, f.publisher.Delete(context.Background(), []string{"3.8.0"}, true))

	pages := cloneRemote(t, f.remote)
	_, err = os.Stat(filepath.Join(pages, "3.8.0"))
	assert.True(t, os.IsNotExist(err), "deleted version directory must be gone")
	_, err = os.Stat(filepath.Join(pages, "dev"))
	assert.True(t, os.IsNotExist(err), "alias of deleted version must be gone")

	m, err := LoadManifest(filepath.Join(pages, ManifestFile))
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "3.9.0", m.Entries[0].Version)
}

func TestDeleteAliasKeepsVersion(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deploy(t, "3.8.0", []string{"dev"}, true))
	require.NoError(t, f.publisher.Delete(context.Background(), []string{"dev"}, true))

	pages := cloneRemote(t, f.remote)
	_, err := os.Stat(filepath.Join(pages, "dev"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(pages, "3.8.0", "index.html"))
	assert.NoError(t, err)

	m, err := LoadManifest(filepath.Join(pages, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "", m.AliasOwner("dev"))
}

func TestDeleteUnknownRef(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deploy(t, "3.8.0", nil, true))
	err := f.publisher.Delete(context.Background(), []string{"9.9.9"}, false)
	require.Error(t, err)
}

func TestSetDefaultWritesRedirect(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deploy(t, "3.8.0", []string{"dev"}, true))
	require.NoError(t, f.publisher.SetDefault(context.Background(), "dev", true))

	pages := cloneRemote(t, f.remote)
	data, err := os.ReadFile(filepath.Join(pages, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `url=dev/`)
}

func TestSetDefaultUnknownRef(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.deploy(t, "3.8.0", nil, true))
	err := f.publisher.SetDefault(context.Background(), "stable", false)
	require.Error(t, err)
}

func TestLandingPageRendered(t *testing.T) {
	f := newFixture(t)
	landing := filepath.Join(t.TempDir(), "landing.md")
	require.NoError(t, os.WriteFile(landing, []byte("# Project Docs\n\nWelcome to the *docs*.\n"), 0o600))
	f.publisher.cfg.LandingPage = landing

	require.NoError(t, f.deploy(t, "3.8.0", []string{"dev"}, true))

	pages := cloneRemote(t, f.remote)
	data, err := os.ReadFile(filepath.Join(pages, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1")
	assert.Contains(t, string(data), "Project Docs")
}
