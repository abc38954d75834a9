// Package runner drives the agent loop: send the conversation to the
// model, execute any requested tools, append the results, and repeat until
// the model answers in plain text or a terminal failure occurs.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nstogner/pocketagent/pkg/agent"
	"github.com/nstogner/pocketagent/pkg/models"
	"github.com/nstogner/pocketagent/pkg/settings"
	"github.com/nstogner/pocketagent/pkg/store"
	"github.com/nstogner/pocketagent/pkg/tools"
)

// DefaultMaxIterations bounds the dispatch/tool-call cycle of a single
// ProcessMessage call.
const DefaultMaxIterations = 10

// ErrLoopLimit is returned when the model keeps requesting tools past the
// iteration cap. The conversation keeps everything appended so far and is
// not marked complete.
var ErrLoopLimit = errors.New("tool call loop limit exceeded")

// Completer performs one provider round trip. provider.Client implements
// it; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, model models.Model, apiKey string, conv *agent.Conversation, defs []tools.Tool) (agent.Message, error)
}

// Runner coordinates one conversation turn at a time. A single Runner may
// serve many conversations, but no two provider calls for the same
// conversation are ever in flight concurrently: ProcessMessage is
// synchronous per call.
type Runner struct {
	store     *store.Manager
	registry  *tools.Registry
	settings  *settings.Store
	completer Completer

	// MaxIterations caps the dispatch/tool cycle per turn.
	MaxIterations int

	// SystemPrompt, when set, opens every new conversation.
	SystemPrompt string
}

func New(st *store.Manager, reg *tools.Registry, cfg *settings.Store, c Completer) *Runner {
	return &Runner{
		store:         st,
		registry:      reg,
		settings:      cfg,
		completer:     c,
		MaxIterations: DefaultMaxIterations,
	}
}

// NewConversation creates and persists an empty conversation titled after
// the upcoming user input.
func (r *Runner) NewConversation(title string) (*agent.Conversation, error) {
	conv := agent.NewConversation(uuid.New().String(), r.store.FileNameFor(title))
	if r.SystemPrompt != "" {
		conv.Messages = append(conv.Messages, agent.NewTextMessage(agent.RoleSystem, r.SystemPrompt))
	}
	if err := r.store.Update(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ProcessMessage appends the user's input to the conversation (creating one
// when conv is nil) and runs the loop to a terminal state. On failure the
// conversation retains all messages appended so far and stays incomplete.
func (r *Runner) ProcessMessage(ctx context.Context, conv *agent.Conversation, text, imageURL string) (*agent.Conversation, error) {
	if conv == nil {
		var err error
		if conv, err = r.NewConversation(text); err != nil {
			return nil, err
		}
	}

	userMsg := agent.Message{Role: agent.RoleUser, Time: time.Now().UnixMilli()}
	if imageURL != "" {
		userMsg.Content = append(userMsg.Content, agent.Content{
			Type:     agent.ContentTypeImageURL,
			ImageURL: &agent.Image{URL: imageURL},
		})
	}
	userMsg.Content = append(userMsg.Content, agent.Content{Type: agent.ContentTypeText, Text: text})
	conv.Messages = append(conv.Messages, userMsg)
	if err := r.store.Update(conv); err != nil {
		return conv, err
	}

	model := models.Resolve(r.settings.Model())
	apiKey := r.settings.APIKey(model.Provider)
	slog.Info("Processing message", "conversationID", conv.ID, "model", model.Identifier)

	for i := 0; i < r.MaxIterations; i++ {
		// Cooperative cancellation at iteration boundaries; the in-flight
		// call also carries ctx.
		if err := ctx.Err(); err != nil {
			return conv, err
		}

		start := time.Now()
		msg, err := r.completer.Complete(ctx, model, apiKey, conv, r.registry.Definitions())
		if err != nil {
			slog.Error("Provider call failed", "conversationID", conv.ID, "error", err)
			return conv, err
		}
		if msg.Stats == nil {
			msg.Stats = make(map[string]float64)
		}
		msg.Stats["duration"] = time.Since(start).Seconds()

		conv.Messages = append(conv.Messages, msg)
		if err := r.store.Update(conv); err != nil {
			return conv, err
		}

		if len(msg.ToolCalls) == 0 {
			end := time.Now().UnixMilli()
			conv.EndTime = &end
			conv.IsComplete = true
			if err := r.store.Update(conv); err != nil {
				return conv, err
			}
			slog.Info("Conversation complete", "conversationID", conv.ID, "messages", len(conv.Messages))
			return conv, nil
		}

		if err := r.executeToolCalls(ctx, conv, msg.ToolCalls); err != nil {
			return conv, err
		}
	}

	return conv, fmt.Errorf("%w: %d iterations", ErrLoopLimit, r.MaxIterations)
}

// executeToolCalls runs the calls sequentially in the order the model
// requested them; later calls may depend on earlier side effects on the
// device. Each result, success or error, is appended as a tool message
// correlated by the call's id.
func (r *Runner) executeToolCalls(ctx context.Context, conv *agent.Conversation, calls []agent.ToolCall) error {
	for _, tc := range calls {
		result, err := r.registry.Execute(ctx, tc.Function.Name, tc.Function.Arguments)
		if err != nil {
			// Tool failures are fed back to the model, not fatal to the loop.
			slog.Warn("Tool call failed", "tool", tc.Function.Name, "error", err)
			result = fmt.Sprintf("Error: %v", err)
		}

		toolMsg := agent.Message{
			Role:       agent.RoleTool,
			ToolCallID: tc.ID,
			Content:    agent.ContentWithText(result),
			Time:       time.Now().UnixMilli(),
		}
		conv.Messages = append(conv.Messages, toolMsg)
		if err := r.store.Update(conv); err != nil {
			return err
		}
	}
	return nil
}
