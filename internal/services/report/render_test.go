package report

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimlens/internal/interfaces"
)

func newRenderService() *Service {
	return NewService(newMemChatStorage(), &memReviewStorage{}, arbor.NewLogger())
}

func TestRenderHTML(t *testing.T) {
	service := newRenderService()

	markdown := "# Review\n\n> Aspirin cures all headaches\n\nSee the trial data.[1][0.88]\n\n" +
		"#### Citations\n\n1. [Mayo Clinic](https://mayo.example/aspirin)\n\n" +
		"| Text | Suggestion |\n| --- | --- |\n| usually | sometimes |\n"

	page, err := service.RenderHTML(markdown, "Aspirin & Friends")
	require.NoError(t, err)
	html := string(page)

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<title>Aspirin &amp; Friends</title>")
	assert.Contains(t, html, "<h1>Review</h1>")
	assert.Contains(t, html, "<blockquote>")
	assert.Contains(t, html, "[1][0.88]")
	assert.Contains(t, html, `<a href="https://mayo.example/aspirin">Mayo Clinic</a>`)
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>usually</td>")
}

func TestRenderHTMLDropsRawMarkup(t *testing.T) {
	service := newRenderService()

	page, err := service.RenderHTML("Hello <script>alert(1)</script> world", "Report")
	require.NoError(t, err)

	assert.NotContains(t, string(page), "<script>alert(1)</script>")
}

func TestRenderPDF(t *testing.T) {
	service := newRenderService()

	tests := []struct {
		name     string
		markdown string
	}{
		{
			name:     "Headings and paragraph",
			markdown: "# Review\n\nSome analysis text with a marker.[1][0.92]",
		},
		{
			name:     "Empty markdown",
			markdown: "",
		},
		{
			name:     "Quote and numbered citations",
			markdown: "> Aspirin cures all headaches\n\n#### Citations\n\n1. [Mayo Clinic](https://mayo.example/aspirin)\n2. [NHS](https://nhs.example/headache)",
		},
		{
			name:     "Table and rule",
			markdown: "| Text | Suggestion |\n| --- | --- |\n| usually helps everyone | may help some people |\n\n---\n\n*Generated line.*",
		},
		{
			name:     "Styling",
			markdown: "Normal **Bold** *Italic* and `code`.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfBytes, err := service.RenderPDF(tt.markdown, "Review Report")
			require.NoError(t, err)
			require.NotEmpty(t, pdfBytes)
			assert.Equal(t, "%PDF", string(pdfBytes[:4]))
		})
	}
}

func TestRenderPDFFullReport(t *testing.T) {
	chat := newMemChatStorage()
	review := &memReviewStorage{}
	seedReviewedSession(t, chat, review)
	service := NewService(chat, review, arbor.NewLogger())

	markdown, err := service.BuildMarkdown(context.Background(), &interfaces.Identity{UserID: "user_1"}, "chat_1")
	require.NoError(t, err)

	pdfBytes, err := service.RenderPDF(markdown, "Aspirin Claims Review")
	require.NoError(t, err)
	assert.Greater(t, len(pdfBytes), 1000)
	assert.Equal(t, "%PDF", string(pdfBytes[:4]))
}
