package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"digestbot/pkg/logx"
)

func TestRunnerRunsTask(t *testing.T) {
	r := NewRunner(logx.Nop())
	var ran atomic.Bool
	if !r.Go("test", time.Second, func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}) {
		t.Fatalf("task rejected")
	}
	r.Close(time.Second)
	if !ran.Load() {
		t.Fatalf("task did not run")
	}
}

func TestRunnerDeadline(t *testing.T) {
	r := NewRunner(logx.Nop())
	var got atomic.Value
	r.Go("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		got.Store(ctx.Err())
		return ctx.Err()
	})
	r.Close(time.Second)
	if err, _ := got.Load().(error); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRunnerRejectsAfterClose(t *testing.T) {
	r := NewRunner(logx.Nop())
	r.Close(time.Second)
	if r.Go("late", time.Second, func(ctx context.Context) error { return nil }) {
		t.Fatalf("closed runner accepted a task")
	}
}

func TestRunnerContainsPanic(t *testing.T) {
	r := NewRunner(logx.Nop())
	var after atomic.Bool
	r.Go("boom", time.Second, func(ctx context.Context) error {
		panic("boom")
	})
	r.Go("next", time.Second, func(ctx context.Context) error {
		after.Store(true)
		return nil
	})
	r.Close(time.Second)
	if !after.Load() {
		t.Fatalf("panic in one task affected another")
	}
}
