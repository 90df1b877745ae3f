package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docship/internal/config"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	remote := filepath.Join(t.TempDir(), "pages.git")
	_, err := git.PlainInit(remote, true)
	require.NoError(t, err)

	client := NewClient(config.PublishConfig{
		Remote:   remote,
		Branch:   "gh-pages",
		TokenEnv: "DOCSHIP_TEST_TOKEN_UNSET",
		Identity: config.Identity{Name: "CI Bot", Email: "ci@example.com"},
	})
	return client, remote
}

func TestMaterializeInitializesMissingBranch(t *testing.T) {
	client, _ := newTestClient(t)
	dir := filepath.Join(t.TempDir(), "checkout")

	co, err := client.Materialize(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, dir, co.Dir)

	// First commit creates the branch.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o600))
	hash, committed, err := client.CommitAll(co, "Deployed 1.0.0 with docship")
	require.NoError(t, err)
	require.True(t, committed)
	require.False(t, hash.IsZero())

	require.NoError(t, client.Push(context.Background(), co))
}

func TestMaterializeClonesExistingBranch(t *testing.T) {
	client, _ := newTestClient(t)
	first := filepath.Join(t.TempDir(), "first")

	co, err := client.Materialize(context.Background(), first)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(first, "1.0.0.txt"), []byte("v1"), 0o600))
	_, _, err = client.CommitAll(co, "deploy 1.0.0")
	require.NoError(t, err)
	require.NoError(t, client.Push(context.Background(), co))

	// A fresh checkout sees the published content.
	second := filepath.Join(t.TempDir(), "second")
	_, err = client.Materialize(context.Background(), second)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(second, "1.0.0.txt"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(data))
}

func TestMaterializeRefreshesExistingCheckout(t *testing.T) {
	client, _ := newTestClient(t)
	dir := filepath.Join(t.TempDir(), "checkout")

	co, err := client.Materialize(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o600))
	_, _, err = client.CommitAll(co, "deploy a")
	require.NoError(t, err)
	require.NoError(t, client.Push(context.Background(), co))

	// Reusing the same directory goes through the refresh path.
	co2, err := client.Materialize(context.Background(), dir)
	require.NoError(t, err)
	require.NotNil(t, co2)
}

func TestCommitAllNoChanges(t *testing.T) {
	client, _ := newTestClient(t)
	dir := filepath.Join(t.TempDir(), "checkout")

	co, err := client.Materialize(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o600))
	_, committed, err := client.CommitAll(co, "deploy a")
	require.NoError(t, err)
	require.True(t, committed)

	_, committed, err = client.CommitAll(co, "deploy a again")
	require.NoError(t, err)
	require.False(t, committed, "identical tree must not produce a commit")
}

func TestClassifyRemoteError(t *testing.T) {
	err := classifyRemoteError("push", "https://example.com/r.git", os.ErrPermission)
	require.Error(t, err)

	authErr := classifyRemoteError("clone", "u", errAuth{})
	if _, ok := authErr.(*AuthError); !ok {
		t.Fatalf("expected AuthError, got %T", authErr)
	}
}

type errAuth struct{}

func (errAuth) Error() string { return "authentication required" }
