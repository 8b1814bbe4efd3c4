// Package streams manages the single active generation stream per app: the
// durable session slot that serializes starts across instances, the
// in-process event buffer consumers attach to, and the lifecycle operations
// handlers call to inspect, stop, and clear streams.
package streams

import (
	"context"
	"sync"

	"github.com/georgeIshaq/gameBuilder/internal/engine"
)

// StreamEvent is one buffered event with its position in the stream.
// Sequence numbers start at 1 and never repeat within a stream.
type StreamEvent struct {
	Seq   int64        `json:"seq"`
	Event engine.Event `json:"event"`
}

// ResumableStream buffers a generation's events so consumers can attach
// late or re-attach after a dropped connection and replay from the last
// sequence they saw. The buffer is bounded; once it overflows, the oldest
// events are discarded and a resume from before the window returns only
// what remains.
//
// Events are buffered in process. Only the instance that started the
// generation can serve attachments for it.
type ResumableStream struct {
	mu      sync.Mutex
	events  []StreamEvent
	nextSeq int64
	done    bool
	err     error
	notify  chan struct{}
	limit   int
}

func newResumableStream(limit int) *ResumableStream {
	if limit <= 0 {
		limit = 4096
	}
	return &ResumableStream{
		nextSeq: 1,
		notify:  make(chan struct{}),
		limit:   limit,
	}
}

// publish appends an event, assigns its sequence number, and wakes all
// waiting consumers. Returns the assigned sequence.
func (s *ResumableStream) publish(ev engine.Event) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s.nextSeq - 1
	}

	seq := s.nextSeq
	s.nextSeq++
	s.events = append(s.events, StreamEvent{Seq: seq, Event: ev})
	if len(s.events) > s.limit {
		s.events = s.events[len(s.events)-s.limit:]
	}

	close(s.notify)
	s.notify = make(chan struct{})
	return seq
}

// close marks the stream finished and wakes all waiting consumers. err is
// nil for a normal or cooperatively stopped completion.
func (s *ResumableStream) close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.err = err
	close(s.notify)
	s.notify = make(chan struct{})
}

// Next returns the buffered events after afterSeq, blocking until at least
// one is available or the stream finishes. A finished stream with nothing
// left to replay returns done=true. Pass afterSeq=0 to read from the start
// of the retained window.
func (s *ResumableStream) Next(ctx context.Context, afterSeq int64) (events []StreamEvent, done bool, err error) {
	for {
		s.mu.Lock()
		var pending []StreamEvent
		for _, ev := range s.events {
			if ev.Seq > afterSeq {
				pending = append(pending, ev)
			}
		}
		if len(pending) > 0 {
			s.mu.Unlock()
			return pending, false, nil
		}
		if s.done {
			streamErr := s.err
			s.mu.Unlock()
			return nil, true, streamErr
		}
		wait := s.notify
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-wait:
		}
	}
}

// LastSeq returns the sequence of the most recently published event, or 0
// when nothing has been published.
func (s *ResumableStream) LastSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq - 1
}

// Done reports whether the stream has finished, and with what error.
func (s *ResumableStream) Done() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done, s.err
}
