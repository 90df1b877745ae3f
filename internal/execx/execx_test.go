package execx

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesStdout(t *testing.T) {
	res, err := Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Fatalf("expected hello got %q", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit 0 got %d", res.ExitCode)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	res, err := Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if res == nil || res.ExitCode != 3 {
		t.Fatalf("expected exit 3, got %+v", res)
	}
	if !strings.Contains(res.Stderr, "oops") {
		t.Fatalf("stderr not captured: %q", res.Stderr)
	}
}

func TestRunEnvInjection(t *testing.T) {
	res, err := Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "printf %s \"$DEV_VERSION\""},
		Env:  map[string]string{"DEV_VERSION": "4.2.0"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "4.2.0" {
		t.Fatalf("env not injected, got %q", res.Stdout)
	}
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Run(ctx, Command{Name: "sleep", Args: []string{"5"}})
	if err == nil {
		t.Fatal("expected error after context timeout")
	}
}

func TestTail(t *testing.T) {
	s := "a\nb\nc\nd\n"
	if got := tail(s, 2); got != "c\nd" {
		t.Fatalf("expected last two lines, got %q", got)
	}
	if got := tail("only", 5); got != "only" {
		t.Fatalf("short input should pass through, got %q", got)
	}
}
