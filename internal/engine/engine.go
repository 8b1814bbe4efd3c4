// Package engine runs the model turn for one chat request: it drives a
// tool-calling agent against the app's dev server filesystem and emits
// incremental events as the response streams back.
package engine

import "context"

// EventType discriminates streamed events.
type EventType string

const (
	// EventText carries an incremental chunk of assistant text.
	EventText EventType = "text"
	// EventTool reports a tool invocation by the agent.
	EventTool EventType = "tool"
	// EventDone is the terminal event of a successful turn.
	EventDone EventType = "done"
	// EventError is the terminal event of a failed turn.
	EventError EventType = "error"
)

// Event is a single unit of streamed output.
type Event struct {
	Type EventType `json:"type"`
	Text string    `json:"text,omitempty"`
	Tool string    `json:"tool,omitempty"`
}

// Message is one prior turn in the conversation.
type Message struct {
	Role    string
	Content string
}

// Request describes one generation turn.
type Request struct {
	// SystemPrompt is the full agent instruction block.
	SystemPrompt string
	// History holds prior turns, oldest first, including the new user message.
	History []Message
	// ToolBaseURL is the dev server endpoint the agent's tools operate on.
	ToolBaseURL string
	// Tools gives the agent file access to the app under edit. May be nil
	// for a plain conversational turn.
	Tools FileAccess
}

// FileAccess is the slice of the dev server filesystem the agent tools need.
type FileAccess interface {
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	ListDir(ctx context.Context, dir string) ([]string, error)
	Mkdir(ctx context.Context, dir string) error
}

// Generator produces one streamed model response. emit is called for every
// incremental event in order; an error from emit aborts the turn. The
// returned string is the complete assistant text.
type Generator interface {
	Generate(ctx context.Context, req Request, emit func(Event) error) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request, emit func(Event) error) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request, emit func(Event) error) (string, error) {
	return f(ctx, req, emit)
}
