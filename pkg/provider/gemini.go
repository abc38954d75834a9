package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/nstogner/pocketagent/pkg/agent"
	"github.com/nstogner/pocketagent/pkg/tools"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Gemini implements Handler for the Gemini generateContent API.
type Gemini struct{}

// APIURL embeds both the model identifier and the API key as URL
// components; Gemini does not use auth headers.
func (Gemini) APIURL(modelID, apiKey string) string {
	return fmt.Sprintf("%s/%s:generateContent?key=%s", geminiBaseURL, modelID, url.QueryEscape(apiKey))
}

// Headers is always empty for Gemini. The handler must not inject
// Content-Type either; the transport owns it.
func (Gemini) Headers(apiKey string) map[string]string {
	return map[string]string{}
}

// GeminiTool is the function-declarations container. The wrapper is always
// present, even for an empty catalog; the API requires it.
type GeminiTool struct {
	FunctionDeclarations []GeminiFunctionDeclaration `json:"functionDeclarations"`
}

type GeminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  *ToolParameters `json:"parameters,omitempty"`
}

func (Gemini) ToolDefinitions(defs []tools.Tool) any {
	decls := make([]GeminiFunctionDeclaration, 0, len(defs))
	for _, t := range defs {
		decl := GeminiFunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.Parameters) > 0 {
			p := toolParameters(t)
			decl.Parameters = &p
		}
		decls = append(decls, decl)
	}
	return []GeminiTool{{FunctionDeclarations: decls}}
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FileData         *geminiFileData         `json:"fileData,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	Tools             []GeminiTool    `json:"tools"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

func (h Gemini) EncodeRequest(modelID string, conv *agent.Conversation, defs []tools.Tool) ([]byte, error) {
	req := geminiRequest{
		Tools: h.ToolDefinitions(defs).([]GeminiTool),
	}

	for _, m := range conv.Messages {
		switch m.Role {
		case agent.RoleSystem:
			// System prompts ride in the dedicated instruction slot; only
			// the first is kept.
			if req.SystemInstruction == nil {
				req.SystemInstruction = &geminiContent{
					Parts: []geminiPart{{Text: agent.FirstText(m)}},
				}
			}
		case agent.RoleAssistant:
			content := geminiContent{Role: "model"}
			for _, c := range m.Content {
				if c.Type == agent.ContentTypeText {
					content.Parts = append(content.Parts, geminiPart{Text: c.Text})
				}
			}
			for _, tc := range m.ToolCalls {
				args := make(map[string]any)
				if tc.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
						return nil, fmt.Errorf("encoding tool call %s: %w", tc.ID, err)
					}
				}
				content.Parts = append(content.Parts, geminiPart{
					FunctionCall: &geminiFunctionCall{Name: tc.Function.Name, Args: args},
				})
			}
			req.Contents = append(req.Contents, content)
		case agent.RoleTool:
			req.Contents = append(req.Contents, geminiContent{
				Role: "function",
				Parts: []geminiPart{{
					FunctionResponse: &geminiFunctionResponse{
						Name:     m.ToolCallID,
						Response: map[string]any{"result": agent.FirstText(m)},
					},
				}},
			})
		default:
			content := geminiContent{Role: "user"}
			for _, c := range m.Content {
				switch c.Type {
				case agent.ContentTypeText:
					content.Parts = append(content.Parts, geminiPart{Text: c.Text})
				case agent.ContentTypeImageURL:
					if c.ImageURL != nil {
						content.Parts = append(content.Parts, geminiPart{
							FileData: &geminiFileData{FileURI: c.ImageURL.URL},
						})
					}
				}
			}
			req.Contents = append(req.Contents, content)
		}
	}

	return json.Marshal(req)
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// DecodeResponse maps candidate parts back to the generic model. Gemini
// does not assign tool call ids, so the function name doubles as the
// correlation id.
func (Gemini) DecodeResponse(body []byte) (agent.Message, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return agent.Message{}, err
	}
	if len(resp.Candidates) == 0 {
		return agent.Message{}, fmt.Errorf("response contains no candidates")
	}

	msg := agent.Message{
		Role: agent.RoleAssistant,
		Time: time.Now().UnixMilli(),
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return agent.Message{}, fmt.Errorf("decoding function call args: %w", err)
			}
			msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{
				ID:   part.FunctionCall.Name,
				Type: "function",
				Function: agent.ToolFunction{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		case part.Text != "":
			msg.Content = append(msg.Content, agent.Content{Type: agent.ContentTypeText, Text: part.Text})
		}
	}
	if resp.UsageMetadata != nil {
		msg.Stats = map[string]float64{
			"promptTokens":     float64(resp.UsageMetadata.PromptTokenCount),
			"completionTokens": float64(resp.UsageMetadata.CandidatesTokenCount),
			"totalTokens":      float64(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return msg, nil
}
