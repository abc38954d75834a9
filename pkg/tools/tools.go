// Package tools implements the registry of operations the model may invoke.
// Tools are registered explicitly at startup; there is no runtime
// introspection. The registry is read-only once built.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Errors returned by Execute. Tool execution failures are non-fatal to the
// agent loop: the runner serializes them into the transcript so the model
// can react.
var (
	ErrUnknownTool    = errors.New("unknown tool")
	ErrArgumentDecode = errors.New("invalid tool arguments")
	ErrToolExecution  = errors.New("tool execution failed")
)

// Parameter types understood by the provider schemas.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Parameter describes one typed tool argument. Optional parameters may
// carry a Default, applied during argument decoding when the model omits
// them.
type Parameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     any
}

// Handler executes a tool against decoded arguments and returns a result
// payload for the transcript.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool is one registered operation: schema plus handler.
type Tool struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     Handler
}

// Registry holds the tool catalog. Build it with Register calls at process
// start; Execute and Definitions are safe for concurrent readers afterward.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the catalog. Names must be unique.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Definitions returns the catalog in registration order.
func (r *Registry) Definitions() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Execute looks up a tool, decodes its JSON argument string, applies
// defaults for omitted optional parameters, and invokes the handler.
// Arguments are not validated against parameter types before dispatch;
// type mismatches surface from the handler.
func (r *Registry) Execute(ctx context.Context, name, argumentsJSON string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	args := make(map[string]any)
	if argumentsJSON != "" {
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrArgumentDecode, name, err)
		}
	}

	for _, p := range t.Parameters {
		if _, ok := args[p.Name]; ok {
			continue
		}
		if p.Required {
			return "", fmt.Errorf("%w: %s: missing required parameter %q", ErrArgumentDecode, name, p.Name)
		}
		if p.Default != nil {
			args[p.Name] = p.Default
		}
	}

	result, err := t.Handler(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrToolExecution, name, err)
	}
	return result, nil
}
