package websocket

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0.2,
	}
}

func TestReconnect_SucceedsAfterFailures(t *testing.T) {
	rm := NewReconnectManager(testReconnectConfig(), zap.NewNop())

	var attempts atomic.Int32
	err := rm.Reconnect(context.Background(), func(ctx context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("dial refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestReconnect_StopsOnContextCancel(t *testing.T) {
	rm := NewReconnectManager(testReconnectConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := rm.Reconnect(ctx, func(ctx context.Context) error {
		return errors.New("dial refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Reconnect() error = %v, want context.Canceled", err)
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	cfg := testReconnectConfig()
	rm := NewReconnectManager(cfg, zap.NewNop())

	rm.grow() // 2ms
	rm.grow() // 4ms
	rm.grow() // 8ms
	rm.grow() // capped at 10ms
	rm.grow()

	if rm.current != cfg.MaxDelay {
		t.Errorf("backoff = %v, want capped at %v", rm.current, cfg.MaxDelay)
	}
}

func TestBackoff_ResetRestoresInitialDelay(t *testing.T) {
	cfg := testReconnectConfig()
	rm := NewReconnectManager(cfg, zap.NewNop())

	rm.grow()
	rm.grow()
	rm.Reset()

	if rm.current != cfg.InitialDelay {
		t.Errorf("backoff = %v, want %v after reset", rm.current, cfg.InitialDelay)
	}
}

func TestNextBackoff_JitterStaysInRange(t *testing.T) {
	cfg := ReconnectConfig{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
		JitterPercent:     0.2,
	}
	rm := NewReconnectManager(cfg, zap.NewNop())

	for i := 0; i < 50; i++ {
		got := rm.nextBackoff()
		if got < cfg.InitialDelay || got > 120*time.Millisecond {
			t.Fatalf("nextBackoff() = %v, want within [100ms, 120ms]", got)
		}
	}
}
