package publish

import (
	"bytes"
	"fmt"
	"html"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const landingTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s
</body>
</html>
`

const redirectTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="0; url=%s/">
<link rel="canonical" href="%s/">
<title>Redirecting</title>
</head>
<body>
<p>Redirecting to <a href="%s/">%s</a>...</p>
</body>
</html>
`

// RenderLandingPage converts the markdown file at srcPath into a standalone
// index.html body.
func RenderLandingPage(srcPath, title string) ([]byte, error) {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("read landing page: %w", err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("render landing page: %w", err)
	}
	return fmt.Appendf(nil, landingTemplate, html.EscapeString(title), buf.String()), nil
}

// RenderRedirect produces a root index.html redirecting to target (a version
// or alias directory).
func RenderRedirect(target string) []byte {
	escaped := html.EscapeString(target)
	return fmt.Appendf(nil, redirectTemplate, escaped, escaped, escaped, escaped)
}
