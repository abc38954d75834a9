package agent

import (
	"fmt"
	"strings"
	"time"
)

// Placeholder strings returned by FirstText for messages without usable text.
const (
	PlaceholderEmpty = "<empty>"
	PlaceholderImage = "<image>"
)

// ContentWithText builds a single-item text content list.
func ContentWithText(text string) []Content {
	return []Content{{Type: ContentTypeText, Text: text}}
}

// NewTextMessage builds a message holding a single text content item.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: ContentWithText(text),
		Time:    time.Now().UnixMilli(),
	}
}

// FirstText extracts the first text item of a message. Messages with no
// content yield "<empty>", image-only messages yield "<image>", and a
// literal "null" string (an artifact of some providers) yields "".
func FirstText(m Message) string {
	hasImage := false
	for _, c := range m.Content {
		switch c.Type {
		case ContentTypeText:
			if c.Text == "null" {
				return ""
			}
			if strings.TrimSpace(c.Text) == "" {
				return PlaceholderEmpty
			}
			return c.Text
		case ContentTypeImageURL:
			hasImage = true
		}
	}
	if hasImage {
		return PlaceholderImage
	}
	return PlaceholderEmpty
}

// FirstImage returns the first image content item, or nil if none. The scan
// is independent of FirstText: a leading text item does not suppress it.
func FirstImage(m Message) *Content {
	for i := range m.Content {
		if m.Content[i].Type == ContentTypeImageURL && m.Content[i].ImageURL != nil {
			return &m.Content[i]
		}
	}
	return nil
}

// ConversationTitle derives a display title from the first user message
// with usable text, truncated to 50 characters with an ellipsis. Falls back
// to "Conversation <id>".
func ConversationTitle(c *Conversation) string {
	for _, m := range c.Messages {
		if m.Role != RoleUser {
			continue
		}
		t := FirstText(m)
		if t == "" || t == PlaceholderEmpty || t == PlaceholderImage {
			continue
		}
		// Truncation counts characters, not bytes, so a multibyte rune is
		// never split.
		if r := []rune(t); len(r) > 50 {
			return string(r[:50]) + "..."
		}
		return t
	}
	return fmt.Sprintf("Conversation %s", c.ID)
}

// CurrentAssistantMessage returns the most recent assistant message, or nil
// if the conversation has none.
func CurrentAssistantMessage(c *Conversation) *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return &c.Messages[i]
		}
	}
	return nil
}
