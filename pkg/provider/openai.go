package provider

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nstogner/pocketagent/pkg/agent"
	"github.com/nstogner/pocketagent/pkg/tools"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAI implements Handler for the OpenAI chat completions API.
type OpenAI struct{}

// APIURL is the same fixed endpoint for every model.
func (OpenAI) APIURL(modelID, apiKey string) string {
	return openAIEndpoint
}

// Headers emits a bearer Authorization header, or nothing at all when no
// key is configured.
func (OpenAI) Headers(apiKey string) map[string]string {
	headers := map[string]string{}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	return headers
}

// ToolDefinition is the OpenAI tool schema: a flat list of function
// definitions. An empty catalog serializes to an empty list.
type ToolDefinition struct {
	Type     string                 `json:"type"`
	Function ToolFunctionDefinition `json:"function"`
}

type ToolFunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

func (OpenAI) ToolDefinitions(defs []tools.Tool) any {
	out := make([]ToolDefinition, 0, len(defs))
	for _, t := range defs {
		out = append(out, ToolDefinition{
			Type: "function",
			Function: ToolFunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toolParameters(t),
			},
		})
	}
	return out
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    any              `json:"content,omitempty"`
	ToolCalls  []agent.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIRequest struct {
	Model    string           `json:"model"`
	Messages []openAIMessage  `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

func (h OpenAI) EncodeRequest(modelID string, conv *agent.Conversation, defs []tools.Tool) ([]byte, error) {
	req := openAIRequest{
		Model:    modelID,
		Messages: encodeOpenAIMessages(conv.Messages),
		Tools:    h.ToolDefinitions(defs).([]ToolDefinition),
	}
	return json.Marshal(req)
}

func encodeOpenAIMessages(msgs []agent.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(msgs))
	for _, m := range msgs {
		wire := openAIMessage{
			Role:       m.Role,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		}
		switch {
		case m.Role == agent.RoleTool:
			// Tool results carry plain string content on this API.
			wire.Content = agent.FirstText(m)
		case len(m.Content) > 0:
			wire.Content = m.Content
		}
		out = append(out, wire)
	}
	return out
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role      string           `json:"role"`
			Content   *string          `json:"content"`
			ToolCalls []agent.ToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (OpenAI) DecodeResponse(body []byte) (agent.Message, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return agent.Message{}, err
	}
	if len(resp.Choices) == 0 {
		return agent.Message{}, fmt.Errorf("response contains no choices")
	}

	choice := resp.Choices[0].Message
	msg := agent.Message{
		Role:      agent.RoleAssistant,
		ToolCalls: choice.ToolCalls,
		Time:      time.Now().UnixMilli(),
	}
	if choice.Content != nil && *choice.Content != "" {
		msg.Content = agent.ContentWithText(*choice.Content)
	}
	if resp.Usage != nil {
		msg.Stats = map[string]float64{
			"promptTokens":     float64(resp.Usage.PromptTokens),
			"completionTokens": float64(resp.Usage.CompletionTokens),
			"totalTokens":      float64(resp.Usage.TotalTokens),
		}
	}
	return msg, nil
}
