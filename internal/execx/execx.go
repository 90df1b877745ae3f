// Package execx runs external commands with captured output and structured
// logging. Every pipeline step that shells out goes through here so that
// command, duration and failure output are logged uniformly.
package execx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/docship/internal/logfields"
)

// Command describes a single external process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string            // working directory; empty means inherit
	Env  map[string]string // appended to the inherited environment
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result holds the outcome of a completed invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Run executes the command and waits for it to exit. A non-zero exit status
// (or failure to start) returns an error together with the captured Result.
// The process inherits the parent environment plus cmd.Env.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("empty command")
	}

	execCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	execCmd.Dir = cmd.Dir
	execCmd.Env = mergedEnv(cmd.Env)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	slog.Debug("Running external command", logfields.Command(cmd.String()), logfields.Path(cmd.Dir))

	start := time.Now()
	err := execCmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if execCmd.ProcessState != nil {
		res.ExitCode = execCmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		slog.Error("External command failed",
			logfields.Command(cmd.String()),
			slog.Int("exit_code", res.ExitCode),
			slog.String("stderr", tail(res.Stderr, 20)),
			logfields.DurationMS(float64(res.Duration.Milliseconds())))
		return res, fmt.Errorf("%s: %w", cmd.String(), err)
	}

	slog.Debug("External command completed",
		logfields.Command(cmd.String()),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res, nil
}

func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// tail returns the last n lines of s for compact failure logging.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
