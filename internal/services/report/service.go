// Package report assembles a session's review findings into a markdown
// document and renders it as a standalone HTML page or a PDF.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

// fallbackTitle heads reports for sessions that never had a title generated
const fallbackTitle = "Medical Content Review"

// Service renders session review reports
type Service struct {
	chatStorage   interfaces.ChatStorage
	reviewStorage interfaces.ReviewStorage
	logger        arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ReportService = (*Service)(nil)

// NewService creates a new report service
func NewService(chatStorage interfaces.ChatStorage, reviewStorage interfaces.ReviewStorage, logger arbor.ILogger) *Service {
	return &Service{
		chatStorage:   chatStorage,
		reviewStorage: reviewStorage,
		logger:        logger,
	}
}

// BuildMarkdown assembles the full report for a session the caller owns.
// Claims keep their recorded order and each one carries its own numbered
// citation list, so the inline [n][score] markers in the analysis text
// resolve against the list printed beneath it.
func (s *Service) BuildMarkdown(ctx context.Context, identity *interfaces.Identity, sessionID string) (string, error) {
	if identity == nil {
		return "", interfaces.ErrUnauthorized
	}

	session, err := s.chatStorage.GetSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session.UserID != identity.UserID {
		return "", interfaces.ErrForbidden
	}

	messages, err := s.chatStorage.ListMessagesBySession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load messages for session %s: %w", sessionID, err)
	}
	claims, err := s.reviewStorage.ListClaimsBySession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load claims for session %s: %w", sessionID, err)
	}
	imprecise, err := s.reviewStorage.ListImpreciseBySession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load imprecise-language records for session %s: %w", sessionID, err)
	}

	var b strings.Builder

	title := strings.TrimSpace(session.Title)
	if title == "" {
		title = fallbackTitle
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	writeOverview(&b, session, len(claims), len(imprecise))
	writeSubmitted(&b, messages)
	writeClaims(&b, claims)
	writeImprecise(&b, imprecise)

	fmt.Fprintf(&b, "---\n\n*Generated by ClaimLens on %s.*\n", time.Now().Format("2 January 2006"))

	s.logger.Debug().
		Str("session_id", sessionID).
		Int("claims", len(claims)).
		Int("imprecise", len(imprecise)).
		Int("markdown_len", b.Len()).
		Msg("Report markdown assembled")

	return b.String(), nil
}

func writeOverview(b *strings.Builder, session *models.ChatSession, claimCount, impreciseCount int) {
	b.WriteString("| Status | Messages | Claims reviewed | Imprecise language |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	fmt.Fprintf(b, "| %s | %d | %d | %d |\n\n", session.Status, session.MessageCount, claimCount, impreciseCount)
}

// writeSubmitted quotes the user turns so the findings can be read against
// the text that produced them. Model replies stay out of the report.
func writeSubmitted(b *strings.Builder, messages []*models.ChatMessage) {
	submitted := make([]*models.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == models.MessageRoleUser && strings.TrimSpace(msg.Text) != "" {
			submitted = append(submitted, msg)
		}
	}
	if len(submitted) == 0 {
		return
	}

	b.WriteString("## Submitted Content\n\n")
	for _, msg := range submitted {
		b.WriteString(blockquote(msg.Text))
		b.WriteString("\n\n")
	}
}

func writeClaims(b *strings.Builder, claims []*models.ClaimRecord) {
	b.WriteString("## Medical Claims\n\n")
	if len(claims) == 0 {
		b.WriteString("No medical claims were identified.\n\n")
		return
	}

	for i, claim := range claims {
		fmt.Fprintf(b, "### Claim %d\n\n", i+1)
		b.WriteString(blockquote(claim.Text))
		b.WriteString("\n\n")
		fmt.Fprintf(b, "**Classification:** %s\n\n", classificationLabel(claim.Classification))
		if analysis := strings.TrimSpace(claim.Analysis); analysis != "" {
			b.WriteString(analysis)
			b.WriteString("\n\n")
		}
		writeAlternatives(b, claim.Alternatives)
		writeCitations(b, claim.Citations)
	}
}

func writeAlternatives(b *strings.Builder, alternatives []models.ClaimAlternative) {
	if len(alternatives) == 0 {
		return
	}

	b.WriteString("#### Alternatives\n\n")
	for i, alt := range alternatives {
		fmt.Fprintf(b, "%d. %s", i+1, alt.ImprovedClaim)
		if alt.Explanation != "" {
			fmt.Fprintf(b, "  \n   *%s*", alt.Explanation)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeCitations(b *strings.Builder, citations []models.Citation) {
	if len(citations) == 0 {
		return
	}

	b.WriteString("#### Citations\n\n")
	for i, citation := range citations {
		title := citation.Title
		if title == "" {
			title = citation.URI
		}
		fmt.Fprintf(b, "%d. [%s](%s)\n", i+1, title, citation.URI)
	}
	b.WriteString("\n")
}

func writeImprecise(b *strings.Builder, records []*models.ImpreciseLanguageRecord) {
	b.WriteString("## Imprecise Language\n\n")
	if len(records) == 0 {
		b.WriteString("No imprecise language was identified.\n\n")
		return
	}

	b.WriteString("| Text | Suggestion |\n")
	b.WriteString("| --- | --- |\n")
	for _, record := range records {
		fmt.Fprintf(b, "| %s | %s |\n", tableCell(record.Text), tableCell(record.Suggestion))
	}
	b.WriteString("\n")
}

func classificationLabel(classification models.ClaimClassification) string {
	return strings.ReplaceAll(string(classification), "_", " ")
}

// blockquote prefixes every line so multi-paragraph text stays inside a
// single quote block
func blockquote(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = "> " + strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// tableCell flattens text into a single GFM table cell
func tableCell(text string) string {
	text = strings.ReplaceAll(text, "|", "\\|")
	return strings.Join(strings.Fields(text), " ")
}
