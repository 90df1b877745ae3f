// Package linkcheck verifies internal links in a generated HTML site tree.
// It is a post-generate sanity pass: external URLs are never fetched, only
// site-relative targets are resolved against the tree on disk.
package linkcheck

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docship/internal/logfields"
)

// Issue is one broken internal link.
type Issue struct {
	File   string // HTML file containing the link, relative to the site root
	Target string // The link target as written
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: broken link %q", i.File, i.Target)
}

// Run walks the site tree, extracts links from every HTML file and reports
// internal links whose targets do not exist.
func Run(siteDir string) ([]Issue, error) {
	var issues []Issue

	err := filepath.Walk(siteDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		rel, err := filepath.Rel(siteDir, path)
		if err != nil {
			return err
		}

		targets, err := extractTargets(path)
		if err != nil {
			slog.Warn("Skipping unparsable HTML file", logfields.Path(rel), logfields.Error(err))
			return nil
		}

		for _, target := range targets {
			if !isInternal(target) {
				continue
			}
			if !targetExists(siteDir, rel, target) {
				issues = append(issues, Issue{File: rel, Target: target})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk site tree: %w", err)
	}
	return issues, nil
}

// extractTargets parses an HTML file and collects href/src values.
func extractTargets(path string) ([]string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close() // read-only
	}()
	return ExtractTargetsFromReader(file)
}

// ExtractTargetsFromReader collects link targets (a/href, img/src,
// link/href, script/src) from HTML content.
func ExtractTargetsFromReader(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var targets []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a", "link":
				if v := getAttr(n, "href"); v != "" {
					targets = append(targets, v)
				}
			case "img", "script":
				if v := getAttr(n, "src"); v != "" {
					targets = append(targets, v)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return targets, nil
}

func getAttr(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

// isInternal reports whether target is a site-relative link we can check on
// disk. Absolute URLs, mailto/tel, and pure fragments are skipped.
func isInternal(target string) bool {
	if target == "" || strings.HasPrefix(target, "#") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// targetExists resolves target relative to the linking file (or the site
// root for absolute paths) and checks the filesystem. Directory targets
// count as existing when the directory or its index.html exists.
func targetExists(siteDir, fromFile, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" { // fragment-only after parsing
		return true
	}

	var resolved string
	if strings.HasPrefix(p, "/") {
		resolved = filepath.Join(siteDir, filepath.FromSlash(p))
	} else {
		resolved = filepath.Join(siteDir, filepath.Dir(fromFile), filepath.FromSlash(p))
	}

	// Files and directories both count; hosts serve index.html for
	// directory links when present.
	if _, err := os.Stat(resolved); err == nil {
		return true
	}
	// Pretty URLs: "foo/" may be written as "foo".
	if _, err := os.Stat(resolved + ".html"); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(resolved, "index.html")); err == nil {
		return true
	}
	return false
}
