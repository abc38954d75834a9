// Package provider translates the generic conversation model to and from
// the wire protocols of the supported LLM backends. The request and
// response shapes here are the compatibility surface: field names, nesting
// and the Gemini declaration wrapper must match the target APIs exactly.
package provider

import (
	"github.com/nstogner/pocketagent/pkg/agent"
	"github.com/nstogner/pocketagent/pkg/models"
	"github.com/nstogner/pocketagent/pkg/tools"
)

// Handler is the per-provider capability set. One variant exists per
// models.Provider; dispatch is a tagged switch in ForModel, not
// inheritance.
type Handler interface {
	// APIURL returns the endpoint for the given model. Gemini embeds both
	// the model identifier and the API key in the URL.
	APIURL(modelID, apiKey string) string

	// Headers returns the auth headers for a request. An empty apiKey
	// yields no auth header at all. Content-Type is owned by the transport,
	// never by a handler.
	Headers(apiKey string) map[string]string

	// EncodeRequest serializes the conversation and tool catalog into the
	// provider's request body.
	EncodeRequest(modelID string, conv *agent.Conversation, defs []tools.Tool) ([]byte, error)

	// DecodeResponse parses the provider's response body into a generic
	// assistant message.
	DecodeResponse(body []byte) (agent.Message, error)

	// ToolDefinitions converts the tool catalog into the provider-shaped
	// schema (flat list for OpenAI-compatible APIs, a function-declarations
	// wrapper for Gemini).
	ToolDefinitions(defs []tools.Tool) any
}

// ForModel selects the handler variant for a provider.
func ForModel(p models.Provider) Handler {
	switch p {
	case models.ProviderGemini:
		return Gemini{}
	case models.ProviderOpenRouter:
		return OpenRouter{}
	default:
		return OpenAI{}
	}
}

// ToolParameter is one property in a tool's JSON schema.
type ToolParameter struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ToolParameters is the object schema describing a tool's arguments. Both
// the OpenAI and Gemini shapes embed it.
type ToolParameters struct {
	Type       string                   `json:"type"`
	Properties map[string]ToolParameter `json:"properties"`
	Required   []string                 `json:"required"`
}

func toolParameters(t tools.Tool) ToolParameters {
	p := ToolParameters{
		Type:       "object",
		Properties: make(map[string]ToolParameter, len(t.Parameters)),
		Required:   []string{},
	}
	for _, param := range t.Parameters {
		p.Properties[param.Name] = ToolParameter{
			Type:        param.Type,
			Description: param.Description,
		}
		if param.Required {
			p.Required = append(p.Required, param.Name)
		}
	}
	return p
}
