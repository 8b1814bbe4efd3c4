package streams

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/georgeIshaq/gameBuilder/internal/agents"
	"github.com/georgeIshaq/gameBuilder/internal/backoff"
	"github.com/georgeIshaq/gameBuilder/internal/engine"
	"github.com/georgeIshaq/gameBuilder/internal/persistence"
)

// ErrStreamBusy is returned when a generation is already running for the
// app and the slot could not be claimed.
var ErrStreamBusy = errors.New("a stream is already running for this app")

// errStopRequested aborts a generation from inside its emit callback when a
// cooperative stop has been requested.
var errStopRequested = errors.New("stream stop requested")

// Options configures a Controller.
type Options struct {
	// StopWait bounds WaitForStreamToStop.
	StopWait time.Duration
	// PollInterval is both the initial wait-poll delay and how often a
	// running task re-reads its durable stop flag.
	PollInterval time.Duration
	// BufferLimit caps each stream's in-process event buffer.
	BufferLimit int
	// OnError, when set, is called with the app id whenever a generation
	// fails. Used to ship failures to the error reporter.
	OnError func(appID string, err error)
}

type liveStream struct {
	stream *ResumableStream
	cancel context.CancelFunc
	owner  string
}

// Controller owns the stream lifecycle for every app served by this
// instance. The durable session table serializes starts across instances;
// the in-process registry tracks the streams this instance is producing.
type Controller struct {
	store *persistence.Store
	gen   engine.Generator
	opts  Options

	mu   sync.Mutex
	live map[string]*liveStream
}

// NewController creates a stream controller over the given store and
// generation engine.
func NewController(store *persistence.Store, gen engine.Generator, opts Options) *Controller {
	if opts.StopWait <= 0 {
		opts.StopWait = 10 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}
	return &Controller{
		store: store,
		gen:   gen,
		opts:  opts,
		live:  make(map[string]*liveStream),
	}
}

// IsStreamRunning reports whether a generation session is active for the
// app, on any instance sharing the database.
func (c *Controller) IsStreamRunning(appID string) (bool, error) {
	sess, err := c.store.GetStreamSession(appID)
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}

// StopStream requests a cooperative stop of the app's active generation.
// Idempotent; a no-op when nothing is running. The producing task observes
// the durable flag at its next poll, so the stop also reaches sessions
// owned by other instances.
func (c *Controller) StopStream(appID string) error {
	if err := c.store.RequestStreamStop(appID); err != nil {
		return err
	}
	c.mu.Lock()
	ls := c.live[appID]
	c.mu.Unlock()
	if ls != nil {
		ls.cancel()
	}
	return nil
}

// WaitForStreamToStop polls until the app's session slot frees, with
// exponential backoff bounded by the configured stop wait. Returns false
// when the budget elapsed with the session still held.
func (c *Controller) WaitForStreamToStop(ctx context.Context, appID string) (bool, error) {
	cfg := backoff.Config{
		InitialDelay: c.opts.PollInterval,
		MaxDelay:     time.Second,
		Budget:       c.opts.StopWait,
	}
	return backoff.Poll(ctx, cfg, func(ctx context.Context) (bool, error) {
		sess, err := c.store.GetStreamSession(appID)
		if err != nil {
			return false, err
		}
		return sess == nil, nil
	})
}

// ClearStreamState force-frees the app's session slot. The escape hatch for
// a stuck or orphaned session: the disowned task keeps running but loses
// the slot, detects the loss at its next touch, and discards its output.
func (c *Controller) ClearStreamState(appID string) error {
	c.mu.Lock()
	ls := c.live[appID]
	delete(c.live, appID)
	c.mu.Unlock()
	if ls != nil {
		ls.cancel()
	}
	return c.store.ClearStreamSession(appID)
}

// Attach returns the live stream this instance is producing for the app,
// if any. Consumers replay from their last seen sequence via Next.
func (c *Controller) Attach(appID string) (*ResumableStream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ls, ok := c.live[appID]
	if !ok {
		return nil, false
	}
	return ls.stream, true
}

// SendMessage persists the user's message, claims the app's session slot,
// and starts the generation task. Returns ErrStreamBusy when another
// session holds the slot. The returned stream carries the generation's
// events; the caller chooses how to serve them.
func (c *Controller) SendMessage(appID string, agent agents.Config, tools engine.FileAccess, toolBaseURL, userInput string) (*ResumableStream, error) {
	owner := uuid.NewString()

	claimed, err := c.store.ClaimStreamSession(appID, owner)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrStreamBusy
	}

	if err := c.store.AppendMessage(persistence.Message{
		ID:      uuid.NewString(),
		AppID:   appID,
		Role:    "user",
		Content: userInput,
	}); err != nil {
		releaseErr := c.store.ReleaseStreamSession(appID, owner)
		if releaseErr != nil {
			slog.Error("release after failed append", "app_id", appID, "error", releaseErr)
		}
		return nil, err
	}

	history, err := c.store.ListMessages(appID)
	if err != nil {
		releaseErr := c.store.ReleaseStreamSession(appID, owner)
		if releaseErr != nil {
			slog.Error("release after failed history read", "app_id", appID, "error", releaseErr)
		}
		return nil, err
	}

	stream := newResumableStream(c.opts.BufferLimit)
	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.live[appID] = &liveStream{stream: stream, cancel: cancel, owner: owner}
	c.mu.Unlock()

	go c.run(runCtx, appID, owner, agent, tools, toolBaseURL, history, stream)

	return stream, nil
}

// run is the generation task. It forwards engine events into the stream,
// re-reads its durable stop flag between events, and persists the assistant
// message only if it still owns the session slot at the end.
func (c *Controller) run(ctx context.Context, appID, owner string, agent agents.Config, tools engine.FileAccess, toolBaseURL string, history []persistence.Message, stream *ResumableStream) {
	log := slog.With("app_id", appID, "agent", agent.Name)
	log.Info("generation started")

	defer func() {
		c.mu.Lock()
		ls, ok := c.live[appID]
		if ok && ls.owner == owner {
			delete(c.live, appID)
		}
		c.mu.Unlock()
		if ok && ls.owner == owner {
			ls.cancel()
		}
		if err := c.store.ReleaseStreamSession(appID, owner); err != nil {
			log.Error("release stream session", "error", err)
		}
	}()

	req := engine.Request{
		SystemPrompt: agent.Instructions,
		History:      historyToEngine(history),
		ToolBaseURL:  toolBaseURL,
		Tools:        tools,
	}

	lastCheck := time.Now()
	owned := true
	emit := func(ev engine.Event) error {
		seq := stream.publish(ev)
		if time.Since(lastCheck) < c.opts.PollInterval {
			return nil
		}
		lastCheck = time.Now()

		held, err := c.store.TouchStreamSession(appID, owner, seq)
		if err != nil {
			log.Error("touch stream session", "error", err)
			return nil
		}
		if !held {
			owned = false
			log.Warn("session slot lost, abandoning generation")
			return errStopRequested
		}
		stopped, err := c.store.StreamStopRequested(appID, owner)
		if err != nil {
			log.Error("check stream stop", "error", err)
			return nil
		}
		if stopped {
			return errStopRequested
		}
		return nil
	}

	final, err := c.gen.Generate(ctx, req, emit)
	switch {
	case errors.Is(err, errStopRequested), errors.Is(err, context.Canceled):
		log.Info("generation stopped", "owned", owned)
		stream.publish(engine.Event{Type: engine.EventDone})
		stream.close(nil)
	case err != nil:
		log.Error("generation failed", "error", err)
		if c.opts.OnError != nil {
			c.opts.OnError(appID, err)
		}
		stream.publish(engine.Event{Type: engine.EventError, Text: err.Error()})
		stream.close(err)
	default:
		if owned {
			// Final ownership check: a force-clear during the last stretch
			// means the slot may already belong to a new session.
			held, heldErr := c.store.TouchStreamSession(appID, owner, stream.LastSeq())
			if heldErr != nil {
				log.Error("final touch", "error", heldErr)
			}
			owned = held
		}
		if final != "" && owned {
			if appendErr := c.store.AppendMessage(persistence.Message{
				ID:      uuid.NewString(),
				AppID:   appID,
				Role:    "assistant",
				Content: final,
			}); appendErr != nil {
				log.Error("persist assistant message", "error", appendErr)
			}
		}
		log.Info("generation finished", "chars", len(final))
		stream.publish(engine.Event{Type: engine.EventDone})
		stream.close(nil)
	}
}

func historyToEngine(history []persistence.Message) []engine.Message {
	out := make([]engine.Message, 0, len(history))
	for _, m := range history {
		out = append(out, engine.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
