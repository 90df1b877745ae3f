package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/daemon"
	"git.home.luguber.info/inful/docship/internal/history"
	"git.home.luguber.info/inful/docship/internal/publish"
	"git.home.luguber.info/inful/docship/internal/runner"
	"git.home.luguber.info/inful/docship/internal/version"
	"git.home.luguber.info/inful/docship/internal/workspace"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docship.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print docship version and exit"`

	Run struct {
		NoPush bool `help:"Commit the deployment locally without pushing"`
	} `cmd:"" help:"Run the full pipeline: extract version, install toolchain, generate docs, publish"`

	ExtractVersion struct{} `cmd:"" help:"Derive and print the dev version without building anything"`

	Deploy struct {
		Version       string   `arg:"" help:"Version to deploy the generated site under"`
		Title         string   `help:"Display title for the version (defaults to the version)"`
		Alias         []string `help:"Aliases to point at this version"`
		UpdateAliases bool     `short:"u" help:"Move aliases that already point at another version"`
		NoPush        bool     `help:"Commit the deployment locally without pushing"`
	} `cmd:"" help:"Deploy an already generated site under an explicit version"`

	List struct{} `cmd:"" help:"List published versions and their aliases"`

	Delete struct {
		Refs   []string `arg:"" help:"Versions or aliases to delete"`
		NoPush bool     `help:"Commit locally without pushing"`
	} `cmd:"" help:"Delete published versions or detach aliases"`

	SetDefault struct {
		Ref    string `arg:"" help:"Version or alias the site root redirects to"`
		NoPush bool   `help:"Commit locally without pushing"`
	} `cmd:"" help:"Point the site root redirect at a version or alias"`

	Runs struct {
		Limit int `help:"Maximum number of runs to show" default:"20"`
	} `cmd:"" help:"Show recent pipeline runs from the history store"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Daemon struct{} `cmd:"" help:"Run scheduled pipeline runs with an admin endpoint"`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Vars{
		"version": fmt.Sprintf("docship %s (%s, built %s)", version.Version, version.GitCommit, version.BuildTime),
	})

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch ctx.Command() {
	case "run":
		cfg := loadConfig()
		if err := runPipeline(cfg, !CLI.Run.NoPush); err != nil {
			slog.Error("Pipeline run failed", "error", err)
			os.Exit(1)
		}
	case "extract-version":
		cfg := loadConfig()
		if err := runExtractVersion(cfg); err != nil {
			slog.Error("Version extraction failed", "error", err)
			os.Exit(1)
		}
	case "deploy <version>":
		cfg := loadConfig()
		if err := runDeploy(cfg); err != nil {
			slog.Error("Deploy failed", "error", err)
			os.Exit(1)
		}
	case "list":
		cfg := loadConfig()
		if err := runList(cfg); err != nil {
			slog.Error("List failed", "error", err)
			os.Exit(1)
		}
	case "delete <refs>":
		cfg := loadConfig()
		if err := runDelete(cfg); err != nil {
			slog.Error("Delete failed", "error", err)
			os.Exit(1)
		}
	case "set-default <ref>":
		cfg := loadConfig()
		if err := runSetDefault(cfg); err != nil {
			slog.Error("Set-default failed", "error", err)
			os.Exit(1)
		}
	case "runs":
		cfg := loadConfig()
		if err := runRuns(cfg); err != nil {
			slog.Error("Runs query failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", CLI.Config)
	case "daemon":
		cfg := loadConfig()
		if err := runDaemon(cfg); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runPipeline(cfg *config.Config, push bool) error {
	ctx, cancel := signalContext()
	defer cancel()

	opts := runner.Options{Push: push}
	if cfg.History != nil && cfg.History.Path != "" {
		store, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			slog.Warn("Run history disabled", "error", err)
		} else {
			opts.Store = store
			defer func() {
				_ = store.Close()
			}()
		}
	}

	state, err := runner.Execute(ctx, cfg, opts)
	if err != nil {
		return err
	}
	fmt.Printf("Published %s version %s\n", cfg.Project.Name, state.DevVersion())
	return nil
}

func runExtractVersion(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	ex := version.NewExtractor(cfg.DevVersion, cfg.Project.SourceDir)
	v, err := ex.Extract(ctx)
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runDeploy(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	pub, ws := newPublisher(cfg)
	defer cleanupWorkspace(ws)
	return pub.Deploy(ctx, publish.DeployRequest{
		Version:       CLI.Deploy.Version,
		Title:         CLI.Deploy.Title,
		Aliases:       CLI.Deploy.Alias,
		UpdateAliases: CLI.Deploy.UpdateAliases,
		Push:          !CLI.Deploy.NoPush,
	})
}

func runList(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	pub, ws := newPublisher(cfg)
	defer cleanupWorkspace(ws)
	versions, err := pub.List(ctx)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Println("No published versions")
		return nil
	}
	for _, v := range versions {
		if len(v.Aliases) > 0 {
			fmt.Printf("%s [%s]\n", v.Version, strings.Join(v.Aliases, ", "))
		} else {
			fmt.Println(v.Version)
		}
	}
	return nil
}

func runDelete(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	pub, ws := newPublisher(cfg)
	defer cleanupWorkspace(ws)
	return pub.Delete(ctx, CLI.Delete.Refs, !CLI.Delete.NoPush)
}

func runSetDefault(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	pub, ws := newPublisher(cfg)
	defer cleanupWorkspace(ws)
	return pub.SetDefault(ctx, CLI.SetDefault.Ref, !CLI.SetDefault.NoPush)
}

func runRuns(cfg *config.Config) error {
	if cfg.History == nil || cfg.History.Path == "" {
		return fmt.Errorf("run history is not configured (set history.path)")
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	runs, err := store.RecentRuns(ctx, CLI.Runs.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs")
		return nil
	}
	for _, r := range runs {
		v := r.Version
		if v == "" {
			v = "-"
		}
		fmt.Printf("%s  %-8s %-10s %s  %s\n",
			r.Started.Format("2006-01-02 15:04:05"), r.Outcome, v, r.Duration.Round(10*time.Millisecond), r.ID)
	}
	return nil
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	d, err := daemon.New(CLI.Config, cfg)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

// newPublisher returns a publisher and the workspace backing its pages
// checkout; callers must clean the workspace up when done.
func newPublisher(cfg *config.Config) (*publish.Publisher, *workspace.Manager) {
	ws := workspace.NewManager("")
	return publish.NewPublisher(cfg.Publish, runner.SiteDir(cfg), ws), ws
}

func cleanupWorkspace(ws *workspace.Manager) {
	if err := ws.Cleanup(); err != nil {
		slog.Warn("Workspace cleanup failed", "error", err)
	}
}
