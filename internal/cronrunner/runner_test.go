package cronrunner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestAddEvery_RunsTask(t *testing.T) {
	r := New(zap.NewNop(), context.Background())

	var runs atomic.Int32
	r.AddEvery("tick", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	r.Start()
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatalf("task ran %d times, want at least 2", runs.Load())
	}
}

func TestAddEvery_ErrorDoesNotStopSchedule(t *testing.T) {
	r := New(zap.NewNop(), context.Background())

	var runs atomic.Int32
	r.AddEvery("flaky", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("transient")
	})

	r.Start()
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runs.Load() < 3 {
		t.Fatalf("task ran %d times, failures must not unschedule it", runs.Load())
	}
}

func TestAddEvery_SkipsAfterContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(zap.NewNop(), ctx)

	var runs atomic.Int32
	r.AddEvery("tick", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	cancel()
	r.Start()
	defer r.Stop()

	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Errorf("task ran %d times after cancel, want 0", got)
	}
}

func TestStop_WaitsForRunningTask(t *testing.T) {
	r := New(zap.NewNop(), context.Background())

	started := make(chan struct{})
	var finished atomic.Bool
	r.AddEvery("slow", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	r.Start()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task never started")
	}

	r.Stop()
	if !finished.Load() {
		t.Error("Stop returned before the running task finished")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("ok", time.Minute); err != nil {
		t.Errorf("Validate(1m) error = %v", err)
	}
	if err := Validate("zero", 0); err == nil {
		t.Error("Validate(0) expected error")
	}
	if err := Validate("negative", -time.Second); err == nil {
		t.Error("Validate(-1s) expected error")
	}
}
