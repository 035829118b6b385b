package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/ternarybob/relatio/internal/models"
)

// htmlPage wraps the converted body in a minimal standalone document.
const htmlPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Support Ticket Analysis Report</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; max-width: 860px; margin: 2em auto; padding: 0 1em; color: #24292f; }
blockquote { border-left: 4px solid #d0d7de; margin-left: 0; padding-left: 1em; color: #57606a; }
table { border-collapse: collapse; }
td, th { border: 1px solid #d0d7de; padding: 4px 8px; }
</style>
</head>
<body>
%s</body>
</html>
`

// HTML renders the report as a standalone HTML document by converting its
// Markdown form.
func HTML(report *models.ExecutiveReport) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(report)), &body); err != nil {
		return nil, fmt.Errorf("failed to convert report markdown to HTML: %w", err)
	}

	return []byte(fmt.Sprintf(htmlPage, body.String())), nil
}
