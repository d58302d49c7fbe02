package catalog

import (
	"github.com/elliotchance/pie/v2"
	"github.com/sashabaranov/go-openai"
)

// OpenAITool converts the definition into the chat-completion tool format.
func (d ToolDefinition) OpenAITool() openai.Tool {
	properties := make(map[string]any, len(d.Parameters))
	for name, description := range d.Parameters {
		properties[name] = map[string]any{
			"type":        "string",
			"description": description,
		}
	}

	required := d.Required
	if required == nil {
		required = []string{}
	}

	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        string(d.Name),
			Description: d.Description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// OpenAITools converts a whole mode catalog, preserving order.
func (s *Service) OpenAITools(mode Mode) []openai.Tool {
	return pie.Map(s.modes[mode], func(def ToolDefinition) openai.Tool {
		return def.OpenAITool()
	})
}
