package gitrepo

import (
	"fmt"
	"strings"
	"time"
)

func now() time.Time { return time.Now() }

// AuthError indicates the remote rejected our credentials.
type AuthError struct {
	Op  string
	URL string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("git %s authentication failed for %s: %v", e.Op, e.URL, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError indicates the remote repository does not exist.
type NotFoundError struct {
	Op  string
	URL string
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("git %s: repository not found: %s: %v", e.Op, e.URL, e.Err)
}
func (e *NotFoundError) Unwrap() error { return e.Err }

// classifyRemoteError wraps underlying go-git errors into typed failures so
// downstream code can classify without string parsing.
func classifyRemoteError(op, url string, err error) error {
	l := strings.ToLower(err.Error())
	if strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password") || strings.Contains(l, "authorization") {
		return &AuthError{Op: op, URL: url, Err: err}
	}
	if strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist") {
		return &NotFoundError{Op: op, URL: url, Err: err}
	}
	return fmt.Errorf("git %s failed for %s: %w", op, url, err)
}
