package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
)

const maxAgentSteps = 40

// Runner is the production Generator backed by a Claude chat model driving
// a ReAct agent over the dev server filesystem tools.
type Runner struct {
	model *claude.ChatModel
}

// NewRunner creates a Runner for the given Anthropic credentials.
func NewRunner(ctx context.Context, apiKey, modelName string, maxTokens int) (*Runner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	model, err := claude.NewChatModel(ctx, &claude.Config{
		APIKey:    apiKey,
		Model:     modelName,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return &Runner{model: model}, nil
}

// Generate runs one agent turn, forwarding streamed assistant chunks to emit
// and returning the accumulated assistant text.
func (r *Runner) Generate(ctx context.Context, req Request, emit func(Event) error) (string, error) {
	system := systemPrompt(req)
	cfg := &react.AgentConfig{
		ToolCallingModel: r.model,
		MessageModifier: func(ctx context.Context, input []*schema.Message) []*schema.Message {
			out := make([]*schema.Message, 0, len(input)+1)
			out = append(out, schema.SystemMessage(system))
			out = append(out, input...)
			return out
		},
		MaxStep: maxAgentSteps,
	}
	if req.Tools != nil {
		tools, err := fileTools(req.Tools)
		if err != nil {
			return "", fmt.Errorf("init tools: %w", err)
		}
		cfg.ToolsConfig = compose.ToolsNodeConfig{Tools: tools}
	}

	agent, err := react.NewAgent(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}

	reader, err := agent.Stream(ctx, historyMessages(req.History))
	if err != nil {
		return "", fmt.Errorf("start stream: %w", err)
	}
	defer reader.Close()

	var final strings.Builder
	for {
		msg, recvErr := reader.Recv()
		if recvErr != nil {
			if errors.Is(recvErr, io.EOF) {
				break
			}
			return "", fmt.Errorf("stream recv: %w", recvErr)
		}
		if msg == nil {
			continue
		}
		for _, call := range msg.ToolCalls {
			if call.Function.Name == "" {
				continue
			}
			slog.Debug("agent tool call", "tool", call.Function.Name)
			if err := emit(Event{Type: EventTool, Tool: call.Function.Name}); err != nil {
				return "", err
			}
		}
		if msg.Role == schema.Assistant && len(msg.Content) > 0 {
			final.WriteString(msg.Content)
			if err := emit(Event{Type: EventText, Text: msg.Content}); err != nil {
				return "", err
			}
		}
	}

	return final.String(), nil
}

// systemPrompt extends the agent instructions with the live preview URL so
// the model can reference where the app is served instead of inventing one.
func systemPrompt(req Request) string {
	base := strings.TrimSpace(req.ToolBaseURL)
	if base == "" {
		return req.SystemPrompt
	}
	return req.SystemPrompt + "\n\nThe app is served from its dev server at " + base +
		". File tools operate on that server's filesystem; use relative paths from the project root."
}

func historyMessages(history []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "assistant":
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
