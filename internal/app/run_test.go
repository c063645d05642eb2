package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeSubscriber struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeSubscriber) SetSubscription(ctx context.Context, tokenIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), tokenIDs...))
	return f.err
}

func (f *fakeSubscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestPumpSubscriptions_ForwardsTokenSets(t *testing.T) {
	sub := &fakeSubscriber{}
	changes := make(chan []string, 2)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		pumpSubscriptions(ctx, changes, sub, zap.NewNop())
		close(done)
	}()

	changes <- []string{"tok-a", "tok-b"}
	changes <- []string{"tok-a"}

	waitFor(t, func() bool { return sub.callCount() == 2 })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop on context cancel")
	}

	if len(sub.calls[0]) != 2 || sub.calls[0][0] != "tok-a" {
		t.Errorf("first call = %v, want [tok-a tok-b]", sub.calls[0])
	}
	if len(sub.calls[1]) != 1 {
		t.Errorf("second call = %v, want [tok-a]", sub.calls[1])
	}
}

func TestPumpSubscriptions_ContinuesAfterError(t *testing.T) {
	sub := &fakeSubscriber{err: errors.New("write failed")}
	changes := make(chan []string, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go pumpSubscriptions(ctx, changes, sub, zap.NewNop())

	changes <- []string{"tok-a"}
	changes <- []string{"tok-b"}

	// A failed subscription write must not stop the pump
	waitFor(t, func() bool { return sub.callCount() == 2 })
}

func TestPumpSubscriptions_StopsOnChannelClose(t *testing.T) {
	sub := &fakeSubscriber{}
	changes := make(chan []string)

	done := make(chan struct{})
	go func() {
		pumpSubscriptions(context.Background(), changes, sub, zap.NewNop())
		close(done)
	}()

	close(changes)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not stop on channel close")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
