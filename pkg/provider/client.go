package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nstogner/pocketagent/pkg/agent"
	"github.com/nstogner/pocketagent/pkg/models"
	"github.com/nstogner/pocketagent/pkg/tools"
)

// Terminal failure classes for a provider round trip. Neither is recovered
// automatically; the loop surfaces them with the partial conversation
// intact.
var (
	ErrTransport = errors.New("provider transport error")
	ErrDecode    = errors.New("provider decode error")
)

// Client performs one provider round trip at a time: encode, POST, decode.
type Client struct {
	httpClient *http.Client
}

// NewClient wraps an http.Client. Pass nil for a default with a generous
// timeout; model responses can take a while.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{httpClient: httpClient}
}

// Complete sends the conversation to the model's provider and returns the
// decoded assistant message.
func (c *Client) Complete(ctx context.Context, model models.Model, apiKey string, conv *agent.Conversation, defs []tools.Tool) (agent.Message, error) {
	return c.CompleteWith(ctx, ForModel(model.Provider), model.Identifier, apiKey, conv, defs)
}

// CompleteWith is Complete with an explicit handler, which also lets tests
// point a stub handler at a local server.
func (c *Client) CompleteWith(ctx context.Context, h Handler, modelID, apiKey string, conv *agent.Conversation, defs []tools.Tool) (agent.Message, error) {
	body, err := h.EncodeRequest(modelID, conv, defs)
	if err != nil {
		return agent.Message{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.APIURL(modelID, apiKey), bytes.NewReader(body))
	if err != nil {
		return agent.Message{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.Headers(apiKey) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return agent.Message{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return agent.Message{}, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return agent.Message{}, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, truncate(respBody, 512))
	}

	msg, err := h.DecodeResponse(respBody)
	if err != nil {
		return agent.Message{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return msg, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
