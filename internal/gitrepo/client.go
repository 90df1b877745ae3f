// Package gitrepo wraps the go-git operations docship needs for versioned
// publication: materializing the pages branch in a workspace, committing
// the deployed tree with a fixed identity, and pushing it back.
package gitrepo

import (
	"context"
	"fmt"
	"os"
	"strings"

	"log/slog"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Client handles git operations against the pages repository.
type Client struct {
	remote   string
	branch   string
	identity config.Identity
	auth     transport.AuthMethod
}

// NewClient creates a client for the publish target. A push token is read
// from the environment variable named by cfg.TokenEnv; when present it is
// used as HTTP basic auth for http(s) remotes.
func NewClient(cfg config.PublishConfig) *Client {
	c := &Client{
		remote:   cfg.Remote,
		branch:   cfg.Branch,
		identity: cfg.Identity,
	}
	if token := os.Getenv(cfg.TokenEnv); token != "" && strings.HasPrefix(cfg.Remote, "http") {
		c.auth = &githttp.BasicAuth{Username: "docship", Password: token}
	}
	return c
}

// Checkout is a materialized working tree of the pages branch.
type Checkout struct {
	Dir  string
	repo *git.Repository
	wt   *git.Worktree
}

// Materialize clones or refreshes the pages branch into dir. If the branch
// does not exist on the remote yet, an empty repository is initialized with
// the branch checked out, ready for the first deploy commit.
func (c *Client) Materialize(ctx context.Context, dir string) (*Checkout, error) {
	if _, err := os.Stat(dir + "/.git"); err == nil {
		return c.refresh(ctx, dir)
	}
	return c.clone(ctx, dir)
}

func (c *Client) clone(ctx context.Context, dir string) (*Checkout, error) {
	slog.Debug("Cloning pages branch", logfields.Branch(c.branch), logfields.Path(dir))

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           c.remote,
		ReferenceName: plumbing.NewBranchReferenceName(c.branch),
		SingleBranch:  true,
		Auth:          c.auth,
	})
	if err != nil {
		if isMissingBranch(err) {
			return c.initEmpty(dir)
		}
		return nil, classifyRemoteError("clone", c.remote, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	return &Checkout{Dir: dir, repo: repo, wt: wt}, nil
}

// initEmpty prepares a fresh repository whose first commit will create the
// pages branch on the remote.
func (c *Client) initEmpty(dir string) (*Checkout, error) {
	slog.Info("Pages branch not found on remote, initializing", logfields.Branch(c.branch))

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("reset checkout dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkout dir: %w", err)
	}

	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(c.branch)},
	})
	if err != nil {
		return nil, fmt.Errorf("init pages repository: %w", err)
	}
	if _, err := repo.CreateRemote(&gitcfg.RemoteConfig{
		Name: "origin",
		URLs: []string{c.remote},
	}); err != nil {
		return nil, fmt.Errorf("create remote: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	return &Checkout{Dir: dir, repo: repo, wt: wt}, nil
}

// refresh brings an existing checkout up to date with the remote branch.
func (c *Client) refresh(ctx context.Context, dir string) (*Checkout, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("open pages checkout: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}

	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(c.branch),
		SingleBranch:  true,
		Auth:          c.auth,
	})
	switch {
	case err == nil, err == git.NoErrAlreadyUpToDate:
	case isMissingBranch(err):
		// Remote branch disappeared (or was never pushed); keep local state.
	default:
		return nil, classifyRemoteError("pull", c.remote, err)
	}

	return &Checkout{Dir: dir, repo: repo, wt: wt}, nil
}

// CommitAll stages the whole tree and commits it with the configured
// identity. Returns committed=false when the tree is unchanged.
func (c *Client) CommitAll(co *Checkout, message string) (plumbing.Hash, bool, error) {
	if err := co.wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("stage changes: %w", err)
	}

	status, err := co.wt.Status()
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("status: %w", err)
	}
	if status.IsClean() {
		slog.Info("Pages tree unchanged, nothing to commit")
		return plumbing.ZeroHash, false, nil
	}

	sig := &object.Signature{Name: c.identity.Name, Email: c.identity.Email, When: now()}
	hash, err := co.wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("commit: %w", err)
	}

	slog.Info("Committed pages update", slog.String("commit", hash.String()[:8]), logfields.Branch(c.branch))
	return hash, true, nil
}

// Push pushes the pages branch to the remote.
func (c *Client) Push(ctx context.Context, co *Checkout) error {
	refspec := gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", c.branch, c.branch))
	err := co.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{refspec},
		Auth:       c.auth,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return classifyRemoteError("push", c.remote, err)
	}
	slog.Info("Pushed pages branch", logfields.Branch(c.branch))
	return nil
}

func isMissingBranch(err error) bool {
	if err == nil {
		return false
	}
	l := strings.ToLower(err.Error())
	return strings.Contains(l, "couldn't find remote ref") ||
		strings.Contains(l, "reference not found") ||
		strings.Contains(l, "remote repository is empty")
}
