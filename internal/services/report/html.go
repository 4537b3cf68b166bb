package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// RenderHTML converts report markdown into a standalone styled page.
// Raw HTML inside the markdown is dropped by goldmark, so model output
// embedded in the analysis text cannot inject markup into the page.
func (s *Service) RenderHTML(markdown string, title string) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		s.logger.Error().Err(err).Int("markdown_len", len(markdown)).Msg("Failed to convert report markdown to HTML")
		return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}

	page := wrapInPage(buf.String(), title)
	s.logger.Debug().Int("html_len", len(page)).Str("title", title).Msg("Report HTML rendered")
	return []byte(page), nil
}

// wrapInPage wraps converted markdown in a self-contained document with
// inline styles, so the report renders the same saved to disk or served
func wrapInPage(content, title string) string {
	return `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>` + escapeHTML(title) + `</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
      line-height: 1.6;
      color: #333;
      max-width: 860px;
      margin: 0 auto;
      padding: 24px;
      background-color: #f9f9f9;
    }
    .report {
      background-color: #fff;
      padding: 32px;
      border-radius: 8px;
      box-shadow: 0 1px 3px rgba(0,0,0,0.1);
    }
    h1 { color: #1a1a1a; font-size: 26px; margin-top: 0; border-bottom: 2px solid #eee; padding-bottom: 10px; }
    h2 { color: #2a2a2a; font-size: 20px; margin-top: 28px; }
    h3 { color: #3a3a3a; font-size: 16px; margin-top: 22px; }
    h4 { color: #555; font-size: 13px; margin-top: 18px; text-transform: uppercase; letter-spacing: 0.04em; }
    p { margin: 12px 0; }
    ul, ol { padding-left: 24px; margin: 12px 0; }
    li { margin: 6px 0; }
    strong { color: #1a1a1a; }
    code { background: #f4f4f4; padding: 2px 6px; border-radius: 3px; font-family: 'SF Mono', Monaco, 'Courier New', monospace; font-size: 14px; }
    blockquote { border-left: 4px solid #0066cc; margin: 16px 0; padding: 4px 16px; color: #444; background: #f4f8fc; }
    table { border-collapse: collapse; width: 100%; margin: 16px 0; }
    th, td { border: 1px solid #ddd; padding: 8px 12px; text-align: left; }
    th { background: #f4f4f4; font-weight: 600; }
    hr { border: none; border-top: 1px solid #eee; margin: 24px 0; }
    a { color: #0066cc; text-decoration: none; }
    a:hover { text-decoration: underline; }
  </style>
</head>
<body>
  <div class="report">
    ` + content + `
  </div>
</body>
</html>`
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}
