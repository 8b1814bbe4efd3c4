package streams

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/georgeIshaq/gameBuilder/internal/agents"
	"github.com/georgeIshaq/gameBuilder/internal/engine"
	"github.com/georgeIshaq/gameBuilder/internal/persistence"
)

func newTestController(t *testing.T, gen engine.Generator) (*Controller, *persistence.Store) {
	t.Helper()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c := NewController(store, gen, Options{
		StopWait:     2 * time.Second,
		PollInterval: 10 * time.Millisecond,
		BufferLimit:  64,
	})
	return c, store
}

func seedApp(t *testing.T, store *persistence.Store, appID string) {
	t.Helper()
	err := store.CreateApp(persistence.App{ID: appID, Name: "Test Game"}, persistence.AppUser{
		UserID: "user-1", AppID: appID, Permissions: "write",
	})
	if err != nil {
		t.Fatalf("seed app: %v", err)
	}
}

// blockingGenerator emits one text event then blocks until released or its
// emit callback tells it to stop. Safe to reuse across sessions.
type blockingGenerator struct {
	release  chan struct{}
	started  chan struct{}
	interval time.Duration
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{
		release:  make(chan struct{}),
		started:  make(chan struct{}, 4),
		interval: 5 * time.Millisecond,
	}
}

func (g *blockingGenerator) Generate(ctx context.Context, req engine.Request, emit func(engine.Event) error) (string, error) {
	if err := emit(engine.Event{Type: engine.EventText, Text: "working"}); err != nil {
		return "", err
	}
	select {
	case g.started <- struct{}{}:
	default:
	}
	for {
		select {
		case <-g.release:
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.interval):
			if err := emit(engine.Event{Type: engine.EventText, Text: "."}); err != nil {
				return "", err
			}
		}
	}
}

func instantGenerator(text string) engine.Generator {
	return engine.GeneratorFunc(func(ctx context.Context, req engine.Request, emit func(engine.Event) error) (string, error) {
		if err := emit(engine.Event{Type: engine.EventText, Text: text}); err != nil {
			return "", err
		}
		return text, nil
	})
}

func waitStopped(t *testing.T, c *Controller, appID string) {
	t.Helper()
	stopped, err := c.WaitForStreamToStop(context.Background(), appID)
	if err != nil {
		t.Fatalf("WaitForStreamToStop: %v", err)
	}
	if !stopped {
		t.Fatal("stream did not stop within budget")
	}
}

func TestSendMessageSecondCallerBusy(t *testing.T) {
	gen := newBlockingGenerator()
	c, store := newTestController(t, gen)
	seedApp(t, store, "app-1")

	stream, err := c.SendMessage("app-1", agents.Generic(), nil, "", "make a game")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	<-gen.started

	if running, err := c.IsStreamRunning("app-1"); err != nil || !running {
		t.Fatalf("IsStreamRunning = %v, %v; want true", running, err)
	}

	if _, err := c.SendMessage("app-1", agents.Generic(), nil, "", "another"); !errors.Is(err, ErrStreamBusy) {
		t.Fatalf("second SendMessage error = %v, want ErrStreamBusy", err)
	}

	close(gen.release)
	waitStopped(t, c, "app-1")

	if done, err := stream.Done(); !done || err != nil {
		t.Fatalf("stream Done = %v, %v", done, err)
	}
}

func TestStopStreamCooperative(t *testing.T) {
	gen := newBlockingGenerator()
	c, store := newTestController(t, gen)
	seedApp(t, store, "app-1")

	if _, err := c.SendMessage("app-1", agents.Generic(), nil, "", "make a game"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	<-gen.started

	if err := c.StopStream("app-1"); err != nil {
		t.Fatalf("StopStream: %v", err)
	}
	waitStopped(t, c, "app-1")

	if running, _ := c.IsStreamRunning("app-1"); running {
		t.Fatal("stream still running after stop")
	}
}

func TestStopStreamIdempotentWithoutSession(t *testing.T) {
	c, _ := newTestController(t, instantGenerator("hi"))
	if err := c.StopStream("never-started"); err != nil {
		t.Fatalf("StopStream on idle app: %v", err)
	}
}

func TestWaitTimesOutOnStuckStream(t *testing.T) {
	// A generator that ignores both its context and the stop flag.
	stuck := engine.GeneratorFunc(func(ctx context.Context, req engine.Request, emit func(engine.Event) error) (string, error) {
		time.Sleep(5 * time.Second)
		return "", nil
	})
	c, store := newTestController(t, stuck)
	c.opts.StopWait = 150 * time.Millisecond
	seedApp(t, store, "app-1")

	if _, err := c.SendMessage("app-1", agents.Generic(), nil, "", "make a game"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	stopped, err := c.WaitForStreamToStop(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("WaitForStreamToStop: %v", err)
	}
	if stopped {
		t.Fatal("expected wait to time out on a stuck stream")
	}

	// Force-clear frees the slot immediately even though the task is stuck.
	if err := c.ClearStreamState("app-1"); err != nil {
		t.Fatalf("ClearStreamState: %v", err)
	}
	if running, _ := c.IsStreamRunning("app-1"); running {
		t.Fatal("stream still running after clear")
	}
}

func TestClearAllowsNewSession(t *testing.T) {
	gen := newBlockingGenerator()
	c, store := newTestController(t, gen)
	seedApp(t, store, "app-1")

	if _, err := c.SendMessage("app-1", agents.Generic(), nil, "", "first"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	<-gen.started

	if err := c.ClearStreamState("app-1"); err != nil {
		t.Fatalf("ClearStreamState: %v", err)
	}

	// The slot is free; a new session starts while the old task unwinds.
	stream, err := c.SendMessage("app-1", agents.Generic(), nil, "", "second")
	if err != nil {
		t.Fatalf("SendMessage after clear: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, _, err := stream.Next(ctx, 0)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(events) == 0 || events[0].Event.Text == "" {
		t.Fatalf("expected text event from new session, got %v", events)
	}

	if err := c.StopStream("app-1"); err != nil {
		t.Fatalf("StopStream: %v", err)
	}
}

func TestDisownedTaskDropsOutput(t *testing.T) {
	gen := newBlockingGenerator()
	c, store := newTestController(t, gen)
	seedApp(t, store, "app-1")

	if _, err := c.SendMessage("app-1", agents.Generic(), nil, "", "first"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	<-gen.started

	// Another instance force-clears the durable slot; this instance's task
	// keeps running, unaware.
	if err := store.ClearStreamSession("app-1"); err != nil {
		t.Fatalf("ClearStreamSession: %v", err)
	}

	// Let the disowned task finish; its assistant output must not land.
	close(gen.release)
	time.Sleep(100 * time.Millisecond)

	msgs, err := store.ListMessages("app-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	for _, m := range msgs {
		if m.Role == "assistant" {
			t.Fatalf("disowned task persisted assistant message: %q", m.Content)
		}
	}
}

func TestCompletedStreamPersistsMessages(t *testing.T) {
	c, store := newTestController(t, instantGenerator("your game is ready"))
	seedApp(t, store, "app-1")

	stream, err := c.SendMessage("app-1", agents.Generic(), nil, "", "make a snake game")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	waitStopped(t, c, "app-1")

	msgs, err := store.ListMessages("app-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "make a snake game" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "your game is ready" {
		t.Errorf("assistant message = %+v", msgs[1])
	}

	// Replay from the start: the text event then the terminal done event.
	ctx := context.Background()
	events, done, err := stream.Next(ctx, 0)
	if err != nil || done {
		t.Fatalf("Next = done=%v, %v", done, err)
	}
	if events[0].Event.Type != engine.EventText || events[0].Event.Text != "your game is ready" {
		t.Errorf("first event = %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Event.Type != engine.EventDone {
		// The done event may arrive in a later batch.
		more, _, err := stream.Next(ctx, last.Seq)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		last = more[len(more)-1]
		if last.Event.Type != engine.EventDone {
			t.Errorf("terminal event = %+v", last)
		}
	}
	if _, done, _ := stream.Next(ctx, last.Seq); !done {
		t.Error("expected done after terminal event")
	}
}

func TestStreamsIndependentAcrossApps(t *testing.T) {
	gen := newBlockingGenerator()
	c, store := newTestController(t, gen)
	seedApp(t, store, "app-1")
	seedApp(t, store, "app-2")

	if _, err := c.SendMessage("app-1", agents.Generic(), nil, "", "busy app"); err != nil {
		t.Fatalf("SendMessage app-1: %v", err)
	}
	<-gen.started

	// app-2 is unaffected by app-1's running stream. Its generator is the
	// same blocking one, so just verify the claim succeeds.
	if _, err := c.SendMessage("app-2", agents.Generic(), nil, "", "free app"); err != nil {
		t.Fatalf("SendMessage app-2: %v", err)
	}

	if err := c.StopStream("app-1"); err != nil {
		t.Fatalf("StopStream: %v", err)
	}
	if running, _ := c.IsStreamRunning("app-2"); !running {
		t.Error("app-2 stream should still be running")
	}
	if err := c.StopStream("app-2"); err != nil {
		t.Fatalf("StopStream app-2: %v", err)
	}
}

func TestAttachLiveStream(t *testing.T) {
	gen := newBlockingGenerator()
	c, store := newTestController(t, gen)
	seedApp(t, store, "app-1")

	if _, err := c.SendMessage("app-1", agents.Generic(), nil, "", "make a game"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	<-gen.started

	attached, ok := c.Attach("app-1")
	if !ok {
		t.Fatal("expected live stream to attach to")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, _, err := attached.Next(ctx, 0)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if events[0].Event.Text != "working" {
		t.Errorf("first event = %+v", events[0])
	}

	close(gen.release)
	waitStopped(t, c, "app-1")

	if _, ok := c.Attach("app-1"); ok {
		t.Error("finished stream should no longer be attachable")
	}
}

func TestOnErrorHookCalledOnFailure(t *testing.T) {
	failing := engine.GeneratorFunc(func(ctx context.Context, req engine.Request, emit func(engine.Event) error) (string, error) {
		return "", errors.New("model exploded")
	})

	store, err := persistence.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reported := make(chan string, 1)
	c := NewController(store, failing, Options{
		StopWait:     2 * time.Second,
		PollInterval: 10 * time.Millisecond,
		OnError: func(appID string, err error) {
			reported <- appID + ": " + err.Error()
		},
	})
	seedApp(t, store, "app-1")

	stream, err := c.SendMessage("app-1", agents.Generic(), nil, "", "make a game")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	select {
	case got := <-reported:
		if got != "app-1: model exploded" {
			t.Errorf("reported %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error was never reported")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var after int64
	for {
		events, done, streamErr := stream.Next(ctx, after)
		if done {
			if streamErr == nil {
				t.Error("stream should end with an error")
			}
			break
		}
		if streamErr != nil {
			t.Fatalf("Next: %v", streamErr)
		}
		for _, ev := range events {
			after = ev.Seq
		}
	}
}
