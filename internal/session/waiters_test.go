package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMilestoneResolveBeforeWait(t *testing.T) {
	m := newMilestone()
	m.resolve("value")

	v, err := m.wait(context.Background())
	if err != nil {
		t.Fatalf("wait returned error: %v", err)
	}
	if v != "value" {
		t.Fatalf("unexpected value: %v", v)
	}
}

func TestMilestoneWaitBeforeResolve(t *testing.T) {
	m := newMilestone()
	got := make(chan any, 1)
	go func() {
		v, _ := m.wait(context.Background())
		got <- v
	}()

	time.Sleep(10 * time.Millisecond)
	m.resolve(42)

	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("unexpected value: %v", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("wait never resolved")
	}
}

func TestMilestoneTimeoutDoesNotConsume(t *testing.T) {
	m := newMilestone()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	m.resolve("still here")
	v, err := m.wait(context.Background())
	if err != nil || v != "still here" {
		t.Fatalf("resolution lost after timeout: %v %v", v, err)
	}
}

func TestMilestoneFirstOutcomeWins(t *testing.T) {
	m := newMilestone()
	m.resolve("first")
	m.resolve("second")
	m.reject(errors.New("too late"))

	v, err := m.wait(context.Background())
	if err != nil || v != "first" {
		t.Fatalf("expected first resolution to stick: %v %v", v, err)
	}
}

func TestMilestoneReject(t *testing.T) {
	m := newMilestone()
	sentinel := errors.New("session failed")
	m.reject(sentinel)
	if _, err := m.wait(context.Background()); !errors.Is(err, sentinel) {
		t.Fatalf("expected rejection error, got %v", err)
	}
}

func TestSessionStateFailRejectsOnlyUnresolved(t *testing.T) {
	sess := newSessionState("s-1")
	sess.history.resolve("snapshot")
	sentinel := errors.New("boom")
	sess.fail(sentinel)

	if v, err := sess.history.wait(context.Background()); err != nil || v != "snapshot" {
		t.Fatalf("resolved milestone disturbed by fail: %v %v", v, err)
	}
	if _, err := sess.end.wait(context.Background()); !errors.Is(err, sentinel) {
		t.Fatalf("expected end milestone rejected, got %v", err)
	}
}
