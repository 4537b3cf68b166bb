package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// ClaudeService implements plain text generation using the Anthropic API.
// Chat title generation runs through here; the review pipeline does not.
type ClaudeService struct {
	client  anthropic.Client
	config  *common.ClaudeConfig
	timeout time.Duration
	retry   *RetryConfig
	logger  arbor.ILogger
}

// NewClaudeService creates a Claude-backed text generator. The API key is
// resolved through env and KV storage with the config value as fallback.
func NewClaudeService(ctx context.Context, config *common.ClaudeConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*ClaudeService, error) {
	apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "anthropic_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Anthropic API key: %w", err)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	timeout := time.Minute
	if config.Timeout != "" {
		if parsed, parseErr := time.ParseDuration(config.Timeout); parseErr == nil {
			timeout = parsed
		}
	}

	logger.Info().
		Str("model", config.Model).
		Msg("Claude service initialized")

	return &ClaudeService{
		client:  client,
		config:  config,
		timeout: timeout,
		retry:   NewDefaultRetryConfig(),
		logger:  logger,
	}, nil
}

// GenerateText performs a single-turn completion
func (s *ClaudeService) GenerateText(ctx context.Context, system string, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	maxTokens := s.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp *anthropic.Message
	var apiErr error

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		resp, apiErr = s.client.Messages.New(callCtx, params)
		if apiErr == nil {
			break
		}

		if attempt == s.retry.MaxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * 2 * time.Second
		if IsRateLimitError(apiErr) {
			backoff = s.retry.CalculateBackoff(attempt, 0)
		}

		s.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Claude API call")

		select {
		case <-callCtx.Done():
			return "", callCtx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("Claude API call failed after %d retries: %w", s.retry.MaxRetries, apiErr)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}

	return text.String(), nil
}
