// Package version derives the development version string from build-tool
// metadata. The extraction runs the configured build tool, filters its
// stdout for a version token and strips configured pre-release suffixes.
// For a given repository state the result is deterministic.
package version

import (
	"context"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/errors"
	"git.home.luguber.info/inful/docship/internal/execx"
)

// tokenPattern matches a bare version token: MAJOR.MINOR.PATCH with an
// optional pre-release suffix (1.2.3, 3.8.0-SNAPSHOT, 2.0.0-rc.1).
var tokenPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)

// Extractor runs the build tool version query.
type Extractor struct {
	cfg config.DevVersionConfig
	dir string
}

// NewExtractor creates an extractor for the given dev_version config,
// executing the build tool in dir.
func NewExtractor(cfg config.DevVersionConfig, dir string) *Extractor {
	return &Extractor{cfg: cfg, dir: dir}
}

// Extract runs the build tool and returns the derived dev version.
// Build tools tend to interleave log lines with the actual value, so the
// output is scanned line by line and the first valid token wins.
func (e *Extractor) Extract(ctx context.Context) (string, error) {
	cmd := execx.Command{Name: e.cfg.Command, Args: e.cfg.Args, Dir: e.dir}
	res, err := execx.Run(ctx, cmd)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryVersion, errors.SeverityFatal, "build tool version query failed").
			WithContext("command", cmd.String())
	}

	token, ok := FilterToken(res.Stdout)
	if !ok {
		return "", errors.VersionNotFound(cmd.String())
	}
	return StripSuffixes(token, e.cfg.StripSuffixes), nil
}

// FilterToken scans build tool output for the first line that is a bare
// version token.
func FilterToken(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if tokenPattern.MatchString(line) {
			return line, true
		}
	}
	return "", false
}

// StripSuffixes removes the first matching suffix from the token.
func StripSuffixes(token string, suffixes []string) string {
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(token, s) {
			return strings.TrimSuffix(token, s)
		}
	}
	return token
}

// IsValidToken reports whether v is a syntactically valid version token.
func IsValidToken(v string) bool {
	return tokenPattern.MatchString(v)
}
