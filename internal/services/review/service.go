// -----------------------------------------------------------------------
// Last Modified: Monday, 20th April 2026 09:42:17 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

// Package review runs the content review pipeline: function-calling
// extraction of medical claims and imprecise language, grounded
// verification of each claim, and a single flush of the results into
// storage once the whole pass has succeeded.
package review

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

// reviewSentinel is the exact client text that forces the full review
// workflow instead of letting the model choose how to respond. Config may
// override it (review.sentinel); blank keeps this default.
const reviewSentinel = "Please find all medical claims and instances of imprecise language. Be thorough and complete."

const listingPreviewLimit = 200

// Service implements the review pipeline. ProcessTask is transport
// pure: the queue worker and the task endpoint call it with identical
// semantics.
type Service struct {
	gemini        *common.GeminiConfig
	review        *common.ReviewConfig
	chatStorage   interfaces.ChatStorage
	reviewStorage interfaces.ReviewStorage
	mediaService  interfaces.MediaService
	llm           interfaces.LLMService
	configService interfaces.ConfigService
	eventService  interfaces.EventService
	limiter       *rate.Limiter
	capture       *captureClient
	logger        arbor.ILogger
}

var _ interfaces.ReviewService = (*Service)(nil)

// NewService creates the review service. The rate limiter is shared by
// every verification call the service ever makes, not scoped per task.
func NewService(
	cfg *common.Config,
	chatStorage interfaces.ChatStorage,
	reviewStorage interfaces.ReviewStorage,
	mediaService interfaces.MediaService,
	llm interfaces.LLMService,
	configService interfaces.ConfigService,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	perMinute := cfg.Review.VerifyPerMinute
	if perMinute <= 0 {
		perMinute = defaultVerifyPerMinute
	}

	svc := &Service{
		gemini:        &cfg.Gemini,
		review:        &cfg.Review,
		chatStorage:   chatStorage,
		reviewStorage: reviewStorage,
		mediaService:  mediaService,
		llm:           llm,
		configService: configService,
		eventService:  eventService,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		logger:        logger,
	}
	if cfg.Review.CaptureCitations {
		svc.capture = newCaptureClient(&cfg.Review, logger)
	}

	return svc
}

// ProcessTask reviews one user message end to end. Any failure before
// the flush leaves storage untouched so queue redelivery retries the
// whole task.
func (s *Service) ProcessTask(ctx context.Context, task *models.ReviewTask) error {
	if task == nil {
		return fmt.Errorf("review task is nil")
	}
	if err := task.Validate(); err != nil {
		return err
	}
	if s.llm == nil {
		return fmt.Errorf("review model is not configured")
	}

	start := time.Now()

	session, err := s.chatStorage.GetSession(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", task.SessionID, err)
	}

	prompts, err := s.resolvePrompts(ctx)
	if err != nil {
		return err
	}

	messages, err := s.buildMessages(ctx, task)
	if err != nil {
		return err
	}

	forced := strings.TrimSpace(task.Text) == s.sentinel()
	req := &interfaces.GenerateRequest{
		SystemInstruction: prompts.system,
		Messages:          messages,
		Functions:         functionDecls(prompts.claims, prompts.imprecise),
		Mode:              interfaces.ToolModeAuto,
		Temperature:       &s.gemini.Temperature,
	}
	if forced {
		req.Mode = interfaces.ToolModeAny
		req.AllowedFunctions = []string{prompts.claims.Name, prompts.imprecise.Name}
	}

	resp, err := s.llm.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("review pass failed: %w", err)
	}

	var claims []string
	var instances []impreciseInstance
	for _, call := range resp.FunctionCalls {
		switch call.Name {
		case prompts.claims.Name:
			claims = append(claims, parseClaims(call.Args)...)
		case prompts.imprecise.Name:
			instances = append(instances, parseInstances(call.Args)...)
		default:
			s.logger.Warn().Str("function", call.Name).Msg("Model called an undeclared function, ignoring")
		}
	}

	result := &models.ReviewResult{
		SessionID:  task.SessionID,
		MessageID:  task.MessageID,
		ModelReply: strings.TrimSpace(resp.Text),
	}

	if len(claims) == 0 && len(instances) == 0 {
		if result.ModelReply == "" {
			return fmt.Errorf("model returned neither text nor function calls")
		}

		// Conversational turn: persist the reply, write no records
		if err := s.flush(ctx, session, task, result); err != nil {
			return err
		}

		s.logger.Info().
			Str("chat_id", task.SessionID).
			Str("message_id", task.MessageID).
			Dur("duration", time.Since(start)).
			Msg("Review task completed as conversational turn")
		return nil
	}

	if limit := s.review.MaxClaims; limit > 0 && len(claims) > limit {
		s.logger.Warn().
			Str("chat_id", task.SessionID).
			Int("identified", len(claims)).
			Int("max_claims", limit).
			Msg("Claim count exceeds configured bound, truncating")
		claims = claims[:limit]
	}

	verifications, err := s.verifyClaims(ctx, prompts.verify.Template, claims)
	if err != nil {
		return err
	}

	// Per-record timestamps keep CreatedAt sorting stable within a task
	for i, claim := range claims {
		v := verifications[i]
		result.Claims = append(result.Claims, &models.ClaimRecord{
			ID:             common.NewRecordID(),
			SessionID:      task.SessionID,
			MessageID:      task.MessageID,
			Text:           claim,
			Classification: v.Classification,
			Analysis:       v.Analysis,
			Alternatives:   v.Alternatives,
			Citations:      v.Citations,
			CreatedAt:      time.Now(),
		})
	}
	for _, instance := range instances {
		result.Imprecise = append(result.Imprecise, &models.ImpreciseLanguageRecord{
			ID:         common.NewRecordID(),
			SessionID:  task.SessionID,
			MessageID:  task.MessageID,
			Text:       instance.Text,
			Suggestion: instance.Suggestion,
			CreatedAt:  time.Now(),
		})
	}

	if s.capture != nil {
		s.capture.enrich(ctx, result.Claims)
	}

	if result.ModelReply == "" {
		result.ModelReply = summarizeFindings(len(result.Claims), len(result.Imprecise))
	}

	if err := s.flush(ctx, session, task, result); err != nil {
		return err
	}

	s.logger.Info().
		Str("chat_id", task.SessionID).
		Str("message_id", task.MessageID).
		Int("claims", len(result.Claims)).
		Int("imprecise", len(result.Imprecise)).
		Bool("forced_workflow", forced).
		Dur("duration", time.Since(start)).
		Msg("Review task completed")
	return nil
}

// sentinel returns the trigger text for the forced review pass
func (s *Service) sentinel() string {
	if v := strings.TrimSpace(s.review.Sentinel); v != "" {
		return v
	}
	return reviewSentinel
}

// reviewPrompts is the prompt set one task runs with, resolved up front
// so a config problem surfaces before any model call
type reviewPrompts struct {
	system    string
	claims    *models.PromptDefinition
	imprecise *models.PromptDefinition
	verify    *models.PromptDefinition
}

// resolvePrompts loads the prompt set. System instructions are
// optional; the function and verification prompts are not, since the
// pipeline cannot run without them.
func (s *Service) resolvePrompts(ctx context.Context) (*reviewPrompts, error) {
	prompts := &reviewPrompts{}

	if def, err := s.configService.GetPrompt(ctx, models.PromptSystemInstructions); err == nil {
		prompts.system = def.Template
	} else {
		s.logger.Warn().Err(err).Msg("System instructions prompt unavailable, continuing without")
	}

	var err error
	if prompts.claims, err = s.configService.GetPrompt(ctx, models.PromptMedicalClaims); err != nil {
		return nil, fmt.Errorf("failed to resolve claims prompt: %w", err)
	}
	if prompts.imprecise, err = s.configService.GetPrompt(ctx, models.PromptImpreciseLanguage); err != nil {
		return nil, fmt.Errorf("failed to resolve imprecise language prompt: %w", err)
	}
	if prompts.verify, err = s.configService.GetPrompt(ctx, models.PromptClaimVerification); err != nil {
		return nil, fmt.Errorf("failed to resolve verification prompt: %w", err)
	}

	return prompts, nil
}

// buildMessages assembles the model conversation: stored history, then
// the task text as the final user turn with its media attached.
// Extracted PDF text is appended to the turn; images are inlined.
func (s *Service) buildMessages(ctx context.Context, task *models.ReviewTask) ([]interfaces.Message, error) {
	stored, err := s.chatStorage.ListMessagesBySession(ctx, task.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}

	var messages []interfaces.Message
	for _, m := range stored {
		if m.ID == task.MessageID {
			continue
		}
		messages = append(messages, interfaces.Message{
			Role:    string(m.Role),
			Content: m.Text,
		})
	}

	final := interfaces.Message{
		Role:    string(models.MessageRoleUser),
		Content: task.Text,
	}

	identity := &interfaces.Identity{UserID: task.UserID}
	for _, assetID := range task.MediaIDs {
		asset, reader, err := s.mediaService.Open(ctx, identity, assetID)
		if err != nil {
			return nil, fmt.Errorf("failed to open media %s: %w", assetID, err)
		}

		if asset.IsImage() {
			data, err := io.ReadAll(reader)
			reader.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read media %s: %w", assetID, err)
			}
			final.Inline = append(final.Inline, interfaces.InlinePart{
				MIMEType: asset.ContentType,
				Data:     data,
			})
			continue
		}

		reader.Close()
		if asset.ExtractedText == "" {
			s.logger.Warn().
				Str("media_id", assetID).
				Str("file_name", asset.FileName).
				Msg("Attachment has no extracted text, skipping")
			continue
		}
		final.Content += fmt.Sprintf("\n\n--- Attached document: %s ---\n%s", asset.FileName, asset.ExtractedText)
	}

	return append(messages, final), nil
}

// flush writes everything a successful task produces in one pass:
// records, the model message, the session transition, and the
// completion events
func (s *Service) flush(ctx context.Context, session *models.ChatSession, task *models.ReviewTask, result *models.ReviewResult) error {
	if len(result.Claims) > 0 {
		if err := s.reviewStorage.SaveClaims(ctx, result.Claims); err != nil {
			return fmt.Errorf("failed to save claim records: %w", err)
		}
	}
	if len(result.Imprecise) > 0 {
		if err := s.reviewStorage.SaveImprecise(ctx, result.Imprecise); err != nil {
			return fmt.Errorf("failed to save imprecise language records: %w", err)
		}
	}

	message := &models.ChatMessage{
		ID:        common.NewMessageID(),
		SessionID: task.SessionID,
		UserID:    task.UserID,
		Role:      models.MessageRoleModel,
		Text:      result.ModelReply,
		CreatedAt: time.Now(),
	}
	if err := s.chatStorage.SaveMessage(ctx, message); err != nil {
		return fmt.Errorf("failed to save model message: %w", err)
	}

	session.Status = models.SessionStatusCompleted
	session.LastMessage = truncateForListing(result.ModelReply)
	session.MessageCount++
	session.UpdatedAt = time.Now()
	if err := s.chatStorage.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	s.publishCompleted(ctx, session, result)
	return nil
}

// publishCompleted emits the status transition and the review summary.
// Event delivery is best effort; a failed publish never fails the task.
func (s *Service) publishCompleted(ctx context.Context, session *models.ChatSession, result *models.ReviewResult) {
	if s.eventService == nil {
		return
	}

	status := interfaces.Event{
		Type: interfaces.EventSessionStatus,
		Payload: map[string]interface{}{
			"session_id": session.ID,
			"user_id":    session.UserID,
			"status":     string(session.Status),
			"timestamp":  time.Now().Format(time.RFC3339),
		},
	}
	if err := s.eventService.Publish(ctx, status); err != nil {
		s.logger.Warn().Err(err).Str("chat_id", session.ID).Msg("Failed to publish session status event")
	}

	completed := interfaces.Event{
		Type: interfaces.EventReviewCompleted,
		Payload: map[string]interface{}{
			"session_id":      session.ID,
			"user_id":         session.UserID,
			"message_id":      result.MessageID,
			"claim_count":     len(result.Claims),
			"imprecise_count": len(result.Imprecise),
			"timestamp":       time.Now().Format(time.RFC3339),
		},
	}
	if err := s.eventService.Publish(ctx, completed); err != nil {
		s.logger.Warn().Err(err).Str("chat_id", session.ID).Msg("Failed to publish review completed event")
	}
}

// summarizeFindings builds the transcript reply for runs where the
// model only returned function calls
func summarizeFindings(claimCount, impreciseCount int) string {
	return fmt.Sprintf(
		"The input text has been processed. Identified %d medical %s and %d %s of imprecise language. Ask about any finding for more detail.",
		claimCount, pluralize(claimCount, "claim", "claims"),
		impreciseCount, pluralize(impreciseCount, "instance", "instances"),
	)
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

func truncateForListing(text string) string {
	runes := []rune(text)
	if len(runes) <= listingPreviewLimit {
		return text
	}
	return string(runes[:listingPreviewLimit]) + "..."
}
