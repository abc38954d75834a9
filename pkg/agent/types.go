// Package agent defines the conversation data model shared by the store,
// the provider handlers, and the loop runner. The JSON field names are the
// persisted format and, for the OpenAI-compatible providers, the wire format.
package agent

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Content type discriminators.
const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
)

// Image holds an image reference inside a content item.
type Image struct {
	URL string `json:"url"`
}

// Content is a single part of a message: either text or an image URL,
// selected by the Type discriminator.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *Image `json:"image_url,omitempty"`
}

// UnmarshalJSON rejects unknown discriminators rather than silently
// dropping data.
func (c *Content) UnmarshalJSON(data []byte) error {
	type raw Content
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	switch r.Type {
	case ContentTypeText, ContentTypeImageURL:
	default:
		return fmt.Errorf("unknown content type %q", r.Type)
	}
	*c = Content(r)
	return nil
}

// ToolFunction names the function a tool call targets. Arguments is a
// JSON-encoded object; it is not validated against the tool's schema here.
type ToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a model-issued request to invoke a tool, correlated to its
// result by ID.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// Message is one turn of a conversation. Content is absent (nil) on
// assistant turns that only request tool execution.
type Message struct {
	Role       string             `json:"role"`
	Content    []Content          `json:"content,omitempty"`
	ToolCalls  []ToolCall         `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
	Time       int64              `json:"time"`
	Stats      map[string]float64 `json:"stats,omitempty"`
}

// Conversation is an ordered, persisted transcript of one interaction.
type Conversation struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	StartTime  int64     `json:"startTime"`
	EndTime    *int64    `json:"endTime,omitempty"`
	Messages   []Message `json:"messages"`
	IsComplete bool      `json:"isComplete"`
}

// NewConversation creates an empty conversation started now.
func NewConversation(id, fileName string) *Conversation {
	return &Conversation{
		ID:        id,
		FileName:  fileName,
		StartTime: time.Now().UnixMilli(),
		Messages:  []Message{},
	}
}

// Clone returns a deep copy sharing no mutable state with the receiver, so
// the copy can be read while the original is being appended to.
func (c *Conversation) Clone() *Conversation {
	out := *c
	if c.EndTime != nil {
		end := *c.EndTime
		out.EndTime = &end
	}
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.clone()
	}
	return &out
}

func (m Message) clone() Message {
	out := m
	if m.Content != nil {
		out.Content = make([]Content, len(m.Content))
		for i, c := range m.Content {
			out.Content[i] = c
			if c.ImageURL != nil {
				img := *c.ImageURL
				out.Content[i].ImageURL = &img
			}
		}
	}
	if m.ToolCalls != nil {
		out.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	if m.Stats != nil {
		out.Stats = make(map[string]float64, len(m.Stats))
		for k, v := range m.Stats {
			out.Stats[k] = v
		}
	}
	return out
}
