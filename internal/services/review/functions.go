package review

import (
	"strings"

	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

// impreciseInstance is one parsed imprecise-language finding
type impreciseInstance struct {
	Text       string
	Suggestion string
}

// functionDecls builds the two identification function declarations
// from their prompt definitions. Description and parameter schema both
// come from config so prompt changes never need a code change.
func functionDecls(claims, imprecise *models.PromptDefinition) []interfaces.FunctionDecl {
	return []interfaces.FunctionDecl{
		declFromPrompt(claims),
		declFromPrompt(imprecise),
	}
}

func declFromPrompt(def *models.PromptDefinition) interfaces.FunctionDecl {
	description := def.Description
	if description == "" {
		description = def.Template
	}
	return interfaces.FunctionDecl{
		Name:        def.Name,
		Description: description,
		Parameters:  def.Parameters,
	}
}

// parseClaims extracts claim texts from a medical claims identification
// call. Items arrive as {"claim": "..."} objects; bare strings are also
// accepted.
func parseClaims(args map[string]interface{}) []string {
	items, ok := args["identified_claims"].([]interface{})
	if !ok {
		return nil
	}

	var claims []string
	for _, item := range items {
		var text string
		switch v := item.(type) {
		case map[string]interface{}:
			text, _ = v["claim"].(string)
		case string:
			text = v
		}
		text = strings.TrimSpace(text)
		if text != "" {
			claims = append(claims, text)
		}
	}
	return claims
}

// parseInstances extracts {text, suggestion} pairs from an imprecise
// language identification call
func parseInstances(args map[string]interface{}) []impreciseInstance {
	items, ok := args["identified_instances"].([]interface{})
	if !ok {
		return nil
	}

	var instances []impreciseInstance
	for _, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		text, _ := fields["text"].(string)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		suggestion, _ := fields["suggestion"].(string)
		instances = append(instances, impreciseInstance{
			Text:       text,
			Suggestion: strings.TrimSpace(suggestion),
		})
	}
	return instances
}
