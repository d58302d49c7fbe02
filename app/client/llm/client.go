package llm

import (
	"context"
	"errors"
	"fmt"
	"kaja/app/config"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

const requestTimeout = 30 * time.Second

// ErrBackendUnavailable covers quota exhaustion and transport failures of the
// chat-completion backend. Retry policy belongs to the backend, not here.
var ErrBackendUnavailable = errors.New("model backend unavailable")

// ErrMalformedReply marks a backend response that is neither literal content
// nor exactly one tool call.
var ErrMalformedReply = errors.New("malformed model reply")

type ToolChoice string

const (
	ChoiceAuto     ToolChoice = "auto"
	ChoiceRequired ToolChoice = "required"
)

type Request struct {
	Messages   []openai.ChatCompletionMessage
	Tools      []openai.Tool
	ToolChoice ToolChoice
}

// ToolCall is a tool request produced by the model. Arguments is the raw JSON
// object string as received.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Reply is a tagged union: exactly one of Content and Call is populated.
type Reply struct {
	Content string
	Call    *ToolCall
}

type Client struct {
	api   *openai.Client
	model string
}

func NewClient(cfg config.ModelConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: requestTimeout,
	}

	return &Client{
		api:   openai.NewClientWithConfig(clientConfig),
		model: cfg.Model,
	}
}

// Complete performs one chat completion. Tool calls are never fanned out, the
// request always pins parallel_tool_calls to false.
func (c *Client) Complete(ctx context.Context, req Request) (*Reply, error) {
	apiReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: req.Messages,
	}

	if len(req.Tools) > 0 {
		apiReq.Tools = req.Tools
		apiReq.ToolChoice = string(req.ToolChoice)
		apiReq.ParallelToolCalls = false
	}

	resp, err := c.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no chat completion found", ErrBackendUnavailable)
	}

	msg := resp.Choices[0].Message

	switch {
	case len(msg.ToolCalls) > 1:
		// More than one tool call could hide a terminal decision, refuse the
		// whole reply instead of truncating it.
		return nil, fmt.Errorf("%w: %d tool calls in one reply", ErrMalformedReply, len(msg.ToolCalls))
	case len(msg.ToolCalls) == 1:
		call := msg.ToolCalls[0]
		return &Reply{
			Call: &ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		}, nil
	case msg.Content != "":
		return &Reply{Content: msg.Content}, nil
	default:
		return nil, fmt.Errorf("%w: neither content nor tool call", ErrMalformedReply)
	}
}
