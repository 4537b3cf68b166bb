// Package title derives a short session title from the first user
// message, using the Claude text generator rather than the review
// model.
package title

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

// titleRuneLimit bounds stored titles; longer generations are cut at a
// word boundary where one exists
const titleRuneLimit = 80

var whitespacePattern = regexp.MustCompile(`\s+`)

// Service generates and persists chat session titles
type Service struct {
	chatStorage   interfaces.ChatStorage
	generator     interfaces.TextGenerator
	configService interfaces.ConfigService
	eventService  interfaces.EventService
	logger        arbor.ILogger
}

var _ interfaces.TitleService = (*Service)(nil)

func NewService(
	chatStorage interfaces.ChatStorage,
	generator interfaces.TextGenerator,
	configService interfaces.ConfigService,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		chatStorage:   chatStorage,
		generator:     generator,
		configService: configService,
		eventService:  eventService,
		logger:        logger,
	}
}

// GenerateTitle builds a title from the session's first user message,
// stores it on the session and returns it. The title prompt is resolved
// fresh on every call so prompt changes apply immediately.
func (s *Service) GenerateTitle(ctx context.Context, identity *interfaces.Identity, sessionID string) (string, error) {
	if identity == nil {
		return "", interfaces.ErrUnauthorized
	}
	if s.generator == nil {
		return "", fmt.Errorf("title generation is not configured")
	}

	session, err := s.chatStorage.GetSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session.UserID != identity.UserID {
		return "", interfaces.ErrForbidden
	}

	input, err := s.firstUserText(ctx, sessionID)
	if err != nil {
		return "", err
	}

	title, err := s.generateFromText(ctx, input)
	if err != nil {
		return "", err
	}

	session.Title = title
	session.UpdatedAt = time.Now()
	if err := s.chatStorage.SaveSession(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save session title: %w", err)
	}

	s.publishTitle(ctx, session)

	s.logger.Info().
		Str("chat_id", session.ID).
		Str("title", title).
		Msg("Generated chat title")
	return title, nil
}

// GenerateTitleForText titles arbitrary text without touching any
// session. Used when the caller supplies the content directly.
func (s *Service) GenerateTitleForText(ctx context.Context, text string) (string, error) {
	if s.generator == nil {
		return "", fmt.Errorf("title generation is not configured")
	}

	input := strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if input == "" {
		return "", fmt.Errorf("no text to derive a title from")
	}

	return s.generateFromText(ctx, input)
}

// generateFromText resolves the title prompt fresh, runs the generator
// and sanitizes the result
func (s *Service) generateFromText(ctx context.Context, input string) (string, error) {
	def, err := s.configService.GetPrompt(ctx, models.PromptGenerateChatTitle)
	if err != nil {
		return "", fmt.Errorf("failed to resolve title prompt: %w", err)
	}

	prompt := common.ReplaceKeyReferences(def.Template, map[string]string{"input_text": input}, s.logger)

	raw, err := s.generator.GenerateText(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	title := sanitizeTitle(raw)
	if title == "" {
		return "", fmt.Errorf("title generation returned an empty result")
	}
	return title, nil
}

// firstUserText returns the session's first non-empty user message with
// its whitespace collapsed
func (s *Service) firstUserText(ctx context.Context, sessionID string) (string, error) {
	messages, err := s.chatStorage.ListMessagesBySession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load session history: %w", err)
	}

	for _, message := range messages {
		if message.Role != models.MessageRoleUser {
			continue
		}
		text := strings.TrimSpace(whitespacePattern.ReplaceAllString(message.Text, " "))
		if text != "" {
			return text, nil
		}
	}

	return "", fmt.Errorf("session %s has no user message to derive a title from", sessionID)
}

func (s *Service) publishTitle(ctx context.Context, session *models.ChatSession) {
	if s.eventService == nil {
		return
	}

	event := interfaces.Event{
		Type: interfaces.EventTitleUpdated,
		Payload: map[string]interface{}{
			"session_id": session.ID,
			"user_id":    session.UserID,
			"title":      session.Title,
			"timestamp":  time.Now().Format(time.RFC3339),
		},
	}
	if err := s.eventService.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("chat_id", session.ID).Msg("Failed to publish title updated event")
	}
}

// sanitizeTitle flattens the model output into one bounded line,
// dropping any quoting the model wrapped around it
func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(whitespacePattern.ReplaceAllString(raw, " "))
	title = strings.TrimSpace(strings.Trim(title, `"'`))

	runes := []rune(title)
	if len(runes) <= titleRuneLimit {
		return title
	}

	cut := string(runes[:titleRuneLimit])
	if i := strings.LastIndexByte(cut, ' '); i > titleRuneLimit/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}
