package interfaces

import (
	"context"
)

// ToolMode controls how the model is allowed to respond when function
// declarations are attached to a request
type ToolMode string

const (
	// ToolModeAuto lets the model choose between calling a function and
	// replying with plain text
	ToolModeAuto ToolMode = "auto"

	// ToolModeAny forces the model to call one of the allowed functions
	ToolModeAny ToolMode = "any"
)

// InlinePart is a binary attachment carried alongside message text,
// such as an uploaded image
type InlinePart struct {
	MIMEType string
	Data     []byte
}

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user" or "model"
	Role string

	// Content contains the text content of the message
	Content string

	// Inline carries binary parts attached to the message (optional)
	Inline []InlinePart
}

// FunctionDecl describes a function the model may call. Parameters follow
// JSON Schema conventions (type, properties, required, items).
type FunctionDecl struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// FunctionCall is a single function invocation returned by the model
type FunctionCall struct {
	Name string
	Args map[string]interface{}
}

// GroundingSource is a web source the model consulted when search grounding
// is enabled, with the support score reported for the grounded span
type GroundingSource struct {
	Title string
	URI   string
	Score float64
}

// GroundingSupport ties a byte range of the response text to the sources
// that back it. Offsets index into GenerateResponse.Text.
type GroundingSupport struct {
	Start   int
	End     int
	Sources []int     // Indices into GenerateResponse.Sources
	Scores  []float64 // Confidence per source, parallel to Sources
}

// GenerateRequest describes a single generation call
type GenerateRequest struct {
	// Model overrides the provider's configured model when set
	Model string

	// SystemInstruction is prepended as the system prompt (optional)
	SystemInstruction string

	// Messages is the conversation history in chronological order, ending
	// with the message to respond to
	Messages []Message

	// Functions lists the declarations offered to the model (optional)
	Functions []FunctionDecl

	// Mode selects between ToolModeAuto and ToolModeAny when Functions
	// are present. Ignored otherwise.
	Mode ToolMode

	// AllowedFunctions restricts ToolModeAny to a subset of the declared
	// function names. Empty means all declared functions.
	AllowedFunctions []string

	// EnableSearch attaches web search grounding to the request
	EnableSearch bool

	// Temperature overrides the provider default when non-nil
	Temperature *float32
}

// GenerateResponse holds the model output for a single generation call
type GenerateResponse struct {
	// Text is the concatenated text parts of the reply, empty when the
	// model responded only with function calls
	Text string

	// FunctionCalls lists function invocations in the order returned
	FunctionCalls []FunctionCall

	// Sources lists grounding sources when EnableSearch was set
	Sources []GroundingSource

	// Supports maps response spans to Sources entries, in text order
	Supports []GroundingSupport
}

// LLMService defines the interface for language model generation used by
// review processing. Implementations wrap a single provider and model.
//
// Generate is the only entry point: plain completions, forced function
// calling and search-grounded verification are all expressed through
// GenerateRequest fields rather than separate methods, so retry and
// logging wrap one code path.
type LLMService interface {
	// Generate performs one generation call.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - req: Request describing messages, tools and grounding
	//
	// Returns:
	//   - *GenerateResponse: Model output (text, function calls, sources)
	//   - error: Error if the call fails after retries
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// ModelName returns the configured model identifier, for logging
	ModelName() string

	// Close releases provider resources
	Close() error
}

// TextGenerator is the narrow generation interface used where only a plain
// text completion is needed, such as chat title generation
type TextGenerator interface {
	// GenerateText performs a single-turn completion
	GenerateText(ctx context.Context, system string, prompt string) (string, error)
}
