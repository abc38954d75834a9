package agent

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	end := int64(2000)
	conv := Conversation{
		ID:        "conv-1",
		FileName:  "0001-hello.json",
		StartTime: 1000,
		EndTime:   &end,
		Messages: []Message{
			{
				Role: RoleUser,
				Content: []Content{
					{Type: ContentTypeImageURL, ImageURL: &Image{URL: "https://example.com/a.png"}},
					{Type: ContentTypeText, Text: "what is this?"},
				},
				Time: 1000,
			},
			{
				Role: RoleAssistant,
				ToolCalls: []ToolCall{
					{ID: "call_1", Type: "function", Function: ToolFunction{Name: "tap", Arguments: `{"x":1,"y":2}`}},
				},
				Time:  1500,
				Stats: map[string]float64{"promptTokens": 12, "duration": 0.5},
			},
			{
				Role:       RoleTool,
				ToolCallID: "call_1",
				Content:    ContentWithText("ok"),
				Time:       1600,
			},
		},
		IsComplete: true,
	}

	data, err := json.Marshal(conv)
	if err != nil {
		t.Fatal(err)
	}

	var got Conversation
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != conv.ID || got.FileName != conv.FileName {
		t.Errorf("identity mismatch: %+v", got)
	}
	if got.EndTime == nil || *got.EndTime != end {
		t.Errorf("end time lost: %v", got.EndTime)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got.Messages))
	}
	if got.Messages[2].ToolCallID != "call_1" {
		t.Errorf("tool call id lost: %+v", got.Messages[2])
	}
	if got.Messages[1].Stats["promptTokens"] != 12 {
		t.Errorf("stats lost: %+v", got.Messages[1].Stats)
	}
}

func TestToolCallMessageOmitsContent(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{
			{ID: "call_1", Type: "function", Function: ToolFunction{Name: "tap", Arguments: "{}"}},
		},
		Time: 1,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), `"content"`) {
		t.Errorf("content key should be absent: %s", data)
	}
}

func TestContentUnknownTypeRejected(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"type":"audio","text":"x"}`), &c)
	if err == nil {
		t.Fatal("expected error for unknown content type")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	end := int64(5)
	conv := &Conversation{
		ID:      "c1",
		EndTime: &end,
		Messages: []Message{
			{
				Role: RoleUser,
				Content: []Content{
					{Type: ContentTypeText, Text: "hi"},
					{Type: ContentTypeImageURL, ImageURL: &Image{URL: "u"}},
				},
				Stats: map[string]float64{"duration": 1},
			},
		},
	}

	clone := conv.Clone()
	clone.Messages[0].Content[0].Text = "changed"
	clone.Messages[0].Content[1].ImageURL.URL = "other"
	clone.Messages[0].Stats["duration"] = 9
	*clone.EndTime = 99
	clone.Messages = append(clone.Messages, NewTextMessage(RoleAssistant, "extra"))

	if conv.Messages[0].Content[0].Text != "hi" {
		t.Error("text shared with clone")
	}
	if conv.Messages[0].Content[1].ImageURL.URL != "u" {
		t.Error("image shared with clone")
	}
	if conv.Messages[0].Stats["duration"] != 1 {
		t.Error("stats shared with clone")
	}
	if *conv.EndTime != 5 {
		t.Error("end time shared with clone")
	}
	if len(conv.Messages) != 1 {
		t.Error("message slice shared with clone")
	}
}

func TestFieldNamesStable(t *testing.T) {
	// The persisted key names are load-bearing: existing files on disk use
	// them.
	conv := NewConversation("id-1", "0001-x.json")
	data, err := json.Marshal(conv)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"fileName"`, `"startTime"`, `"isComplete"`, `"messages"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("missing key %s in %s", key, data)
		}
	}
}
