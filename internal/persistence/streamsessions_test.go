package persistence

import (
	"sync"
	"testing"
)

func TestClaimStreamSession(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.ClaimStreamSession("app1", "owner1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !ok {
		t.Fatal("expected first claim to succeed")
	}

	// Second claim for the same app must lose.
	ok, err = s.ClaimStreamSession("app1", "owner2")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if ok {
		t.Fatal("expected second claim to fail while session is held")
	}

	// A different app is independent.
	ok, err = s.ClaimStreamSession("app2", "owner2")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !ok {
		t.Fatal("expected claim on a different app to succeed")
	}
}

func TestClaimStreamSessionRace(t *testing.T) {
	s := newTestStore(t)

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan string, racers)

	for i := 0; i < racers; i++ {
		owner := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ClaimStreamSession("app1", owner)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if ok {
				wins <- owner
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d: %v", len(winners), winners)
	}

	sess, err := s.GetStreamSession("app1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess == nil || sess.Owner != winners[0] {
		t.Fatalf("session owner mismatch: %+v vs winner %s", sess, winners[0])
	}
}

func TestRequestStreamStopIdempotent(t *testing.T) {
	s := newTestStore(t)

	// No session at all: still a no-op, not an error.
	if err := s.RequestStreamStop("app1"); err != nil {
		t.Fatalf("stop without session: %v", err)
	}

	if _, err := s.ClaimStreamSession("app1", "owner1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.RequestStreamStop("app1"); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := s.RequestStreamStop("app1"); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	sess, err := s.GetStreamSession("app1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != StreamStatusStopping || !sess.StopRequested {
		t.Fatalf("expected stopping session, got %+v", sess)
	}
}

func TestStreamStopRequested(t *testing.T) {
	s := newTestStore(t)

	// Missing row reads as stop: the task has been disowned.
	stop, err := s.StreamStopRequested("app1", "owner1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !stop {
		t.Error("expected stop=true for missing session")
	}

	s.ClaimStreamSession("app1", "owner1")
	stop, _ = s.StreamStopRequested("app1", "owner1")
	if stop {
		t.Error("expected stop=false for fresh session")
	}

	// A different owner's view also reads as stop.
	stop, _ = s.StreamStopRequested("app1", "other")
	if !stop {
		t.Error("expected stop=true for non-owner")
	}

	s.RequestStreamStop("app1")
	stop, _ = s.StreamStopRequested("app1", "owner1")
	if !stop {
		t.Error("expected stop=true after stop request")
	}
}

func TestTouchStreamSession(t *testing.T) {
	s := newTestStore(t)
	s.ClaimStreamSession("app1", "owner1")

	held, err := s.TouchStreamSession("app1", "owner1", 42)
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !held {
		t.Fatal("expected owner to still hold the session")
	}

	sess, _ := s.GetStreamSession("app1")
	if sess.LastSeq != 42 {
		t.Errorf("expected last_seq 42, got %d", sess.LastSeq)
	}

	// After a forced clear the owner must observe the loss.
	s.ClearStreamSession("app1")
	held, err = s.TouchStreamSession("app1", "owner1", 43)
	if err != nil {
		t.Fatalf("touch after clear: %v", err)
	}
	if held {
		t.Error("expected touch to report session lost after clear")
	}
}

func TestReleaseStreamSessionOwnerOnly(t *testing.T) {
	s := newTestStore(t)
	s.ClaimStreamSession("app1", "owner1")

	// A non-owner release is a no-op.
	if err := s.ReleaseStreamSession("app1", "intruder"); err != nil {
		t.Fatalf("release: %v", err)
	}
	sess, _ := s.GetStreamSession("app1")
	if sess == nil {
		t.Fatal("session must survive a non-owner release")
	}

	if err := s.ReleaseStreamSession("app1", "owner1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	sess, _ = s.GetStreamSession("app1")
	if sess != nil {
		t.Fatalf("expected session gone, got %+v", sess)
	}

	// Slot is reusable after release.
	ok, _ := s.ClaimStreamSession("app1", "owner2")
	if !ok {
		t.Error("expected claim to succeed after release")
	}
}

func TestClearStreamSession(t *testing.T) {
	s := newTestStore(t)

	// Clearing a missing session is fine.
	if err := s.ClearStreamSession("app1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	s.ClaimStreamSession("app1", "owner1")
	if err := s.ClearStreamSession("app1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	sess, _ := s.GetStreamSession("app1")
	if sess != nil {
		t.Fatalf("expected session cleared, got %+v", sess)
	}
}
