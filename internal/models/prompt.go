package models

// PromptDefinition is a named prompt template with an optional function
// parameter schema. Definitions are seeded from YAML files, overridable
// through the KV store, and refreshed from the remote config service.
type PromptDefinition struct {
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description" yaml:"description"` // Function-call description shown to the model
	Template    string                 `json:"template" yaml:"template"`       // Prompt text; placeholders use {name} syntax
	Parameters  map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"` // JSON-schema for function declarations
}

// Prompt names resolved through the config service. The remote config
// service groups them under "prompts/{name}".
const (
	PromptSystemInstructions = "system_instructions"
	PromptMedicalClaims      = "medical_claims_identification"
	PromptImpreciseLanguage  = "imprecise_language_identification"
	PromptClaimVerification  = "claim_verification"
	PromptGenerateChatTitle  = "generate_chat_title"
)
