package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// GeminiService implements generation against the Gemini API. Function
// calling, forced tool mode and search grounding are all driven off the
// request so one retry-wrapped code path serves extraction and
// verification alike.
type GeminiService struct {
	client  *genai.Client
	config  *common.GeminiConfig
	timeout time.Duration
	retry   *RetryConfig
	logger  arbor.ILogger
}

// NewGeminiService creates a Gemini-backed LLM service.
//
// Initialization resolves the API key through env and KV storage with the
// config value as fallback, then creates the client against the Gemini API
// backend. The operation timeout is parsed once here.
func NewGeminiService(ctx context.Context, config *common.GeminiConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*GeminiService, error) {
	apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "gemini_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	timeout := 2 * time.Minute
	if config.Timeout != "" {
		if parsed, parseErr := time.ParseDuration(config.Timeout); parseErr == nil {
			timeout = parsed
		}
	}

	logger.Info().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Gemini service initialized")

	return &GeminiService{
		client:  client,
		config:  config,
		timeout: timeout,
		retry:   NewDefaultRetryConfig(),
		logger:  logger,
	}, nil
}

// ModelName returns the configured review model identifier
func (s *GeminiService) ModelName() string {
	return s.config.Model
}

// Generate performs one generation call with rate-limit-aware retries
func (s *GeminiService) Generate(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	if s.client == nil {
		return nil, fmt.Errorf("gemini service is closed")
	}

	model := req.Model
	if model == "" {
		model = s.config.Model
	}

	contents, systemText, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if req.SystemInstruction != "" {
		systemText = req.SystemInstruction
	}

	temp := s.config.Temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}

	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	if s.config.Thinking != "" {
		if parsedLevel := parseThinkingLevel(s.config.Thinking); parsedLevel != "" {
			config.ThinkingConfig = &genai.ThinkingConfig{
				ThinkingLevel: parsedLevel,
			}
		}
	}

	var tools []*genai.Tool

	if len(req.Functions) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(req.Functions))
		for _, fn := range req.Functions {
			schema, schemaErr := convertToGenaiSchema(fn.Parameters)
			if schemaErr != nil {
				return nil, fmt.Errorf("invalid parameters for function %s: %w", fn.Name, schemaErr)
			}
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  schema,
			})
		}
		tools = append(tools, &genai.Tool{FunctionDeclarations: declarations})

		mode := genai.FunctionCallingConfigModeAuto
		if req.Mode == interfaces.ToolModeAny {
			mode = genai.FunctionCallingConfigModeAny
		}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 mode,
				AllowedFunctionNames: req.AllowedFunctions,
			},
		}
	}

	if req.EnableSearch {
		tools = append(tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}

	if len(tools) > 0 {
		config.Tools = tools
	}

	s.logger.Debug().
		Str("model", model).
		Int("message_count", len(req.Messages)).
		Int("function_count", len(req.Functions)).
		Bool("search", req.EnableSearch).
		Msg("Generating content")

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		resp, apiErr = s.client.Models.GenerateContent(callCtx, model, contents, config)
		if apiErr == nil {
			break
		}

		if attempt == s.retry.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			backoff = s.retry.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		} else {
			backoff = time.Duration(attempt+1) * 2 * time.Second
		}

		s.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini API call")

		select {
		case <-callCtx.Done():
			return nil, callCtx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return nil, fmt.Errorf("Gemini API call failed after %d retries: %w", s.retry.MaxRetries, apiErr)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	out := &interfaces.GenerateResponse{
		Text: resp.Text(),
	}
	out.Sources, out.Supports = extractGrounding(resp)
	for _, call := range resp.FunctionCalls() {
		out.FunctionCalls = append(out.FunctionCalls, interfaces.FunctionCall{
			Name: call.Name,
			Args: call.Args,
		})
	}

	if out.Text == "" && len(out.FunctionCalls) == 0 {
		return nil, fmt.Errorf("empty content in Gemini response")
	}

	return out, nil
}

// Close releases the client
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}

// convertMessages maps conversation messages to Gemini contents, pulling
// out the first system message as the system instruction
func convertMessages(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		geminiRole := genai.RoleUser
		if msg.Role == "model" || msg.Role == "assistant" {
			geminiRole = genai.RoleModel
		}

		var parts []*genai.Part
		if msg.Content != "" {
			parts = append(parts, genai.NewPartFromText(msg.Content))
		}
		for _, inline := range msg.Inline {
			parts = append(parts, genai.NewPartFromBytes(inline.Data, inline.MIMEType))
		}
		if len(parts) == 0 {
			continue
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: parts,
		})
	}

	return contents, systemText, nil
}

// extractGrounding flattens grounding metadata into one source per chunk
// (keeping the highest support confidence seen for each) plus the span
// supports that tie response text back to those sources
func extractGrounding(resp *genai.GenerateContentResponse) ([]interfaces.GroundingSource, []interfaces.GroundingSupport) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil || len(gm.GroundingChunks) == 0 {
		return nil, nil
	}

	sources := make([]interfaces.GroundingSource, len(gm.GroundingChunks))
	for i, chunk := range gm.GroundingChunks {
		if chunk.Web != nil {
			sources[i].Title = chunk.Web.Title
			sources[i].URI = chunk.Web.URI
		}
	}

	supports := make([]interfaces.GroundingSupport, 0, len(gm.GroundingSupports))
	for _, support := range gm.GroundingSupports {
		entry := interfaces.GroundingSupport{}
		if support.Segment != nil {
			entry.Start = int(support.Segment.StartIndex)
			entry.End = int(support.Segment.EndIndex)
		}

		for j, chunkIdx := range support.GroundingChunkIndices {
			i := int(chunkIdx)
			if i < 0 || i >= len(sources) {
				continue
			}

			score := 0.0
			if j < len(support.ConfidenceScores) {
				score = float64(support.ConfidenceScores[j])
			}
			if score > sources[i].Score {
				sources[i].Score = score
			}

			entry.Sources = append(entry.Sources, i)
			entry.Scores = append(entry.Scores, score)
		}

		if support.Segment != nil && len(entry.Sources) > 0 {
			supports = append(supports, entry)
		}
	}

	return sources, supports
}

// parseThinkingLevel converts a config string to genai.ThinkingLevel
func parseThinkingLevel(level string) genai.ThinkingLevel {
	switch level {
	case "MINIMAL", "minimal":
		return genai.ThinkingLevelMinimal
	case "LOW", "low":
		return genai.ThinkingLevelLow
	case "MEDIUM", "medium":
		return genai.ThinkingLevelMedium
	case "HIGH", "high":
		return genai.ThinkingLevelHigh
	default:
		return ""
	}
}
