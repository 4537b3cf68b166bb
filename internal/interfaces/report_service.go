package interfaces

import "context"

// ReportService renders a session's review findings as a document
type ReportService interface {
	// BuildMarkdown assembles the session report as markdown
	BuildMarkdown(ctx context.Context, identity *Identity, sessionID string) (string, error)

	// RenderHTML converts report markdown to a standalone HTML page
	RenderHTML(markdown string, title string) ([]byte, error)

	// RenderPDF converts report markdown to a PDF byte slice
	RenderPDF(markdown string, title string) ([]byte, error)
}
