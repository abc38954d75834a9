package runner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nstogner/pocketagent/pkg/agent"
	"github.com/nstogner/pocketagent/pkg/models"
	"github.com/nstogner/pocketagent/pkg/provider"
	"github.com/nstogner/pocketagent/pkg/settings"
	"github.com/nstogner/pocketagent/pkg/store"
	"github.com/nstogner/pocketagent/pkg/tools"
	"github.com/nstogner/pocketagent/pkg/tools/device"
)

// scriptedCompleter returns its responses in order and records what it was
// sent on each call.
type scriptedCompleter struct {
	responses []agent.Message
	errs      []error
	calls     int
	seen      [][]agent.Message
}

func (c *scriptedCompleter) Complete(ctx context.Context, model models.Model, apiKey string, conv *agent.Conversation, defs []tools.Tool) (agent.Message, error) {
	i := c.calls
	c.calls++

	snapshot := make([]agent.Message, len(conv.Messages))
	copy(snapshot, conv.Messages)
	c.seen = append(c.seen, snapshot)

	if i < len(c.errs) && c.errs[i] != nil {
		return agent.Message{}, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return agent.NewTextMessage(agent.RoleAssistant, "done"), nil
}

func setup(t *testing.T, c Completer) (*Runner, *store.Manager, *device.Sim) {
	t.Helper()
	mgr, err := store.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := settings.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sim := device.NewSim()
	reg, err := device.NewRegistry(sim)
	if err != nil {
		t.Fatal(err)
	}
	return New(mgr, reg, cfg, c), mgr, sim
}

func toolCallMsg(id, name, args string) agent.Message {
	return agent.Message{
		Role: agent.RoleAssistant,
		ToolCalls: []agent.ToolCall{
			{ID: id, Type: "function", Function: agent.ToolFunction{Name: name, Arguments: args}},
		},
	}
}

func TestProcessMessagePlainAnswer(t *testing.T) {
	c := &scriptedCompleter{responses: []agent.Message{
		agent.NewTextMessage(agent.RoleAssistant, "the answer"),
	}}
	r, mgr, _ := setup(t, c)

	conv, err := r.ProcessMessage(context.Background(), nil, "a question", "")
	if err != nil {
		t.Fatal(err)
	}
	if !conv.IsComplete || conv.EndTime == nil {
		t.Errorf("conversation not finalized: complete=%v end=%v", conv.IsComplete, conv.EndTime)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("messages = %d", len(conv.Messages))
	}
	if conv.Messages[0].Role != agent.RoleUser || conv.Messages[1].Role != agent.RoleAssistant {
		t.Errorf("roles = %s, %s", conv.Messages[0].Role, conv.Messages[1].Role)
	}
	// The turn duration is recorded on the assistant message.
	if _, ok := conv.Messages[1].Stats["duration"]; !ok {
		t.Error("duration stat missing")
	}
	// The store carries the same finalized state.
	if got := mgr.Get(conv.ID); got == nil || !got.IsComplete {
		t.Errorf("store state = %+v", got)
	}
}

func TestProcessMessageToolCycle(t *testing.T) {
	c := &scriptedCompleter{responses: []agent.Message{
		toolCallMsg("call_1", device.ToolNameTap, `{"x":10,"y":20}`),
		agent.NewTextMessage(agent.RoleAssistant, "tapped it"),
	}}
	r, _, sim := setup(t, c)

	conv, err := r.ProcessMessage(context.Background(), nil, "tap the button", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.calls != 2 {
		t.Fatalf("expected 2 provider calls, got %d", c.calls)
	}

	// The redispatch must carry user, assistant tool-call, and tool result.
	second := c.seen[1]
	if len(second) != 3 {
		t.Fatalf("second dispatch carried %d messages", len(second))
	}
	if second[1].Role != agent.RoleAssistant || len(second[1].ToolCalls) != 1 {
		t.Errorf("assistant turn = %+v", second[1])
	}
	if second[2].Role != agent.RoleTool || second[2].ToolCallID != "call_1" {
		t.Errorf("tool turn = %+v", second[2])
	}
	if agent.FirstText(second[2]) != "tapped (10, 20)" {
		t.Errorf("tool result = %q", agent.FirstText(second[2]))
	}

	// The device actually received the action.
	actions := sim.Actions()
	if len(actions) != 1 || actions[0] != "tap 10 20" {
		t.Errorf("actions = %v", actions)
	}

	if !conv.IsComplete {
		t.Error("conversation should be complete after the plain-text answer")
	}
}

func TestProcessMessageSequentialToolCalls(t *testing.T) {
	multi := agent.Message{
		Role: agent.RoleAssistant,
		ToolCalls: []agent.ToolCall{
			{ID: "c1", Type: "function", Function: agent.ToolFunction{Name: device.ToolNameTap, Arguments: `{"x":1,"y":1}`}},
			{ID: "c2", Type: "function", Function: agent.ToolFunction{Name: device.ToolNamePressKey, Arguments: `{"key":"back"}`}},
		},
	}
	c := &scriptedCompleter{responses: []agent.Message{
		multi,
		agent.NewTextMessage(agent.RoleAssistant, "ok"),
	}}
	r, _, sim := setup(t, c)

	conv, err := r.ProcessMessage(context.Background(), nil, "do two things", "")
	if err != nil {
		t.Fatal(err)
	}

	// Execution order follows request order.
	actions := sim.Actions()
	if len(actions) != 2 || actions[0] != "tap 1 1" || actions[1] != "press back" {
		t.Errorf("actions = %v", actions)
	}

	// One tool message per call, correlated by id, in order.
	if conv.Messages[2].ToolCallID != "c1" || conv.Messages[3].ToolCallID != "c2" {
		t.Errorf("tool messages = %+v, %+v", conv.Messages[2], conv.Messages[3])
	}
}

func TestProcessMessageToolFailureFedBack(t *testing.T) {
	c := &scriptedCompleter{responses: []agent.Message{
		toolCallMsg("call_1", "no_such_tool", `{}`),
		agent.NewTextMessage(agent.RoleAssistant, "sorry about that"),
	}}
	r, _, _ := setup(t, c)

	conv, err := r.ProcessMessage(context.Background(), nil, "try something", "")
	if err != nil {
		t.Fatal(err)
	}

	// The failure became a tool result, and the loop kept going.
	toolMsg := conv.Messages[2]
	if toolMsg.Role != agent.RoleTool {
		t.Fatalf("message = %+v", toolMsg)
	}
	text := agent.FirstText(toolMsg)
	if text == "" || text[:6] != "Error:" {
		t.Errorf("tool result = %q", text)
	}
	if !conv.IsComplete {
		t.Error("conversation should complete after the follow-up answer")
	}
}

func TestProcessMessageLoopLimit(t *testing.T) {
	// The model never stops asking for tools.
	var responses []agent.Message
	for i := 0; i < 20; i++ {
		responses = append(responses, toolCallMsg("c", device.ToolNamePressKey, `{"key":"home"}`))
	}
	c := &scriptedCompleter{responses: responses}
	r, _, _ := setup(t, c)
	r.MaxIterations = 3

	conv, err := r.ProcessMessage(context.Background(), nil, "loop forever", "")
	if !errors.Is(err, ErrLoopLimit) {
		t.Fatalf("expected ErrLoopLimit, got %v", err)
	}
	if c.calls != 3 {
		t.Errorf("provider calls = %d", c.calls)
	}
	// Everything appended so far is preserved, and the conversation stays
	// open.
	if conv.IsComplete || conv.EndTime != nil {
		t.Error("conversation must not be finalized")
	}
	if len(conv.Messages) != 1+3*2 {
		t.Errorf("messages = %d", len(conv.Messages))
	}
}

func TestProcessMessageProviderFailureKeepsPartial(t *testing.T) {
	boom := provider.ErrTransport
	c := &scriptedCompleter{
		responses: []agent.Message{toolCallMsg("call_1", device.ToolNameTap, `{"x":1,"y":2}`), {}},
		errs:      []error{nil, boom},
	}
	r, mgr, _ := setup(t, c)

	conv, err := r.ProcessMessage(context.Background(), nil, "hello", "")
	if !errors.Is(err, provider.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if conv.IsComplete {
		t.Error("conversation must stay incomplete")
	}
	// user + assistant tool call + tool result survive in the store.
	got := mgr.Get(conv.ID)
	if got == nil || len(got.Messages) != 3 {
		t.Fatalf("persisted = %+v", got)
	}
}

func TestProcessMessageCancellation(t *testing.T) {
	c := &scriptedCompleter{}
	r, _, _ := setup(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conv, err := r.ProcessMessage(ctx, nil, "never mind", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if c.calls != 0 {
		t.Errorf("provider should not be called, got %d calls", c.calls)
	}
	// The user message is still persisted.
	if conv == nil || len(conv.Messages) != 1 {
		t.Errorf("conversation = %+v", conv)
	}
}

func TestProcessMessageWithImage(t *testing.T) {
	c := &scriptedCompleter{}
	r, _, _ := setup(t, c)

	conv, err := r.ProcessMessage(context.Background(), nil, "what is this?", "https://example.com/shot.png")
	if err != nil {
		t.Fatal(err)
	}
	user := conv.Messages[0]
	// Image part precedes the text part.
	if len(user.Content) != 2 || user.Content[0].Type != agent.ContentTypeImageURL {
		t.Fatalf("user content = %+v", user.Content)
	}
	if user.Content[0].ImageURL.URL != "https://example.com/shot.png" {
		t.Errorf("image url = %q", user.Content[0].ImageURL.URL)
	}
	if user.Content[1].Text != "what is this?" {
		t.Errorf("text = %q", user.Content[1].Text)
	}
}

func TestNewConversationSystemPrompt(t *testing.T) {
	c := &scriptedCompleter{}
	r, mgr, _ := setup(t, c)
	r.SystemPrompt = "you drive the device"

	conv, err := r.NewConversation("open settings please")
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Role != agent.RoleSystem {
		t.Fatalf("messages = %+v", conv.Messages)
	}
	if conv.FileName != "0000-open_settings_please.json" {
		t.Errorf("file name = %q", conv.FileName)
	}
	// Persisted immediately.
	if mgr.Get(conv.ID) == nil {
		t.Error("conversation not in the store")
	}
}

func TestConcurrentObserverReads(t *testing.T) {
	// Observers serialize store snapshots while the loop is mid-turn, the
	// way the watch socket does. The snapshots must be safe to read and
	// internally consistent regardless of loop progress.
	var responses []agent.Message
	for i := 0; i < 8; i++ {
		responses = append(responses, toolCallMsg("c", device.ToolNamePressKey, `{"key":"home"}`))
	}
	responses = append(responses, agent.NewTextMessage(agent.RoleAssistant, "done"))
	c := &scriptedCompleter{responses: responses}
	r, mgr, _ := setup(t, c)
	r.MaxIterations = 20

	conv, err := r.NewConversation("busy turn")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := r.ProcessMessage(context.Background(), conv, "go", "")
		done <- err
	}()

	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatal(err)
			}
			final := mgr.Get(conv.ID)
			if final == nil || !final.IsComplete {
				t.Fatalf("final state = %+v", final)
			}
			return
		default:
		}
		if snapshot := mgr.Get(conv.ID); snapshot != nil {
			if _, err := json.Marshal(snapshot); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestProcessMessageExistingConversation(t *testing.T) {
	c := &scriptedCompleter{responses: []agent.Message{
		agent.NewTextMessage(agent.RoleAssistant, "first"),
		agent.NewTextMessage(agent.RoleAssistant, "second"),
	}}
	r, _, _ := setup(t, c)

	conv, err := r.ProcessMessage(context.Background(), nil, "one", "")
	if err != nil {
		t.Fatal(err)
	}
	// A follow-up turn reuses the same conversation.
	conv, err = r.ProcessMessage(context.Background(), conv, "two", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Messages) != 4 {
		t.Errorf("messages = %d", len(conv.Messages))
	}
}
