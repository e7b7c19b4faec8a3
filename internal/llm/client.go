// Package llm adapts an OpenAI-compatible chat completion API to the agent
// runtime's completion interface.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/piliapp/pili/internal/agents"
	"github.com/piliapp/pili/internal/config"
)

// ErrCompletion wraps any provider failure. Callers treat all completion
// failures the same way, so the taxonomy stays flat.
var ErrCompletion = errors.New("completion failed")

// Client produces chat completions through go-openai. It works against
// api.openai.com or any OpenAI-compatible endpoint via base_url.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// New creates a completion client from the specified configuration.
func New(cfg *config.LLMConfig, logger *slog.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.TimeoutDuration()}

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Complete sends the request messages and tool specs to the provider and
// returns the first choice.
func (c *Client) Complete(ctx context.Context, req agents.CompletionRequest) (*agents.Completion, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Tools:       convertTools(req.Tools),
	}

	resp, err := c.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrCompletion)
	}

	choice := resp.Choices[0].Message
	completion := &agents.Completion{
		Content: choice.Content,
	}

	for _, tc := range choice.ToolCalls {
		call, err := convertToolCall(tc)
		if err != nil {
			c.logger.Warn("skipping malformed tool call", "tool", tc.Function.Name, "error", err)
			continue
		}
		completion.ToolCalls = append(completion.ToolCalls, call)
	}

	return completion, nil
}

func convertMessages(messages []agents.Message) ([]openai.ChatCompletionMessage, error) {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}

		switch m.Role {
		case agents.RoleTool:
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.Name
		case agents.RoleAssistant:
			for _, tc := range m.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil {
					return nil, fmt.Errorf("marshal arguments for %s: %w", tc.Name, err)
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
		}

		converted = append(converted, msg)
	}

	return converted, nil
}

func convertTools(specs []agents.ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}

	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		var params any
		if len(spec.InputSchema) > 0 {
			params = spec.InputSchema
		} else {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}

		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}

	return tools
}

func convertToolCall(tc openai.ToolCall) (agents.ToolCall, error) {
	call := agents.ToolCall{
		ID:        tc.ID,
		Name:      tc.Function.Name,
		Arguments: map[string]any{},
	}

	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &call.Arguments); err != nil {
			return agents.ToolCall{}, fmt.Errorf("parse arguments: %w", err)
		}
	}

	return call, nil
}
