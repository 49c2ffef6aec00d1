package platform

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
)

func recordingHook(name string, calls *[]string, startErr, stopErr error) Hook {
	return Hook{
		Name: name,
		OnStart: func(context.Context) error {
			*calls = append(*calls, "start "+name)
			return startErr
		},
		OnStop: func(context.Context) error {
			*calls = append(*calls, "stop "+name)
			return stopErr
		},
	}
}

func TestLifecycle_StartAndStop(t *testing.T) {
	lc := NewLifecycle()
	var calls []string
	lc.Append(recordingHook("a", &calls, nil, nil))
	lc.Append(recordingHook("b", &calls, nil, nil))

	if err := lc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !lc.IsStarted() {
		t.Error("IsStarted() = false after Start()")
	}
	if err := lc.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if lc.IsStarted() {
		t.Error("IsStarted() = true after Stop()")
	}

	want := []string{"start a", "start b", "stop b", "stop a"}
	if !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestLifecycle_StartAlreadyStarted(t *testing.T) {
	lc := NewLifecycle()
	if err := lc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := lc.Start(context.Background()); err == nil {
		t.Error("Start() expected error for already started")
	}
}

func TestLifecycle_StopNotStarted(t *testing.T) {
	lc := NewLifecycle()
	var calls []string
	lc.Append(recordingHook("a", &calls, nil, nil))

	if err := lc.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v, expected nil for not started", err)
	}
	if len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestLifecycle_StartRollbackOnError(t *testing.T) {
	lc := NewLifecycle()
	var calls []string
	lc.Append(recordingHook("a", &calls, nil, nil))
	lc.Append(recordingHook("b", &calls, nil, errors.New("stop b failed")))
	lc.Append(recordingHook("c", &calls, errors.New("boom"), nil))
	lc.Append(recordingHook("d", &calls, nil, nil))

	err := lc.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "starting c: boom") {
		t.Fatalf("Start() error = %v, want starting c: boom", err)
	}
	if lc.IsStarted() {
		t.Error("lifecycle should not be started after rollback")
	}

	want := []string{"start a", "start b", "start c", "stop b", "stop a"}
	if !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}

	// Stop after a failed start has nothing to do.
	if err := lc.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestLifecycle_StopCollectsErrors(t *testing.T) {
	lc := NewLifecycle()
	var calls []string
	lc.Append(recordingHook("a", &calls, nil, errors.New("a failed")))
	lc.Append(recordingHook("b", &calls, nil, errors.New("b failed")))

	_ = lc.Start(context.Background())
	err := lc.Stop(context.Background())
	if err == nil {
		t.Fatal("Stop() expected error when callbacks fail")
	}
	for _, msg := range []string{"stopping a: a failed", "stopping b: b failed"} {
		if !strings.Contains(err.Error(), msg) {
			t.Errorf("Stop() error = %q, missing %q", err, msg)
		}
	}
}

type mockCloser struct {
	closed bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return nil
}

func TestLifecycle_AppendCloser(t *testing.T) {
	lc := NewLifecycle()
	closer := &mockCloser{}
	lc.AppendCloser("closer", closer)

	_ = lc.Start(context.Background())
	if closer.closed {
		t.Fatal("closer closed on start")
	}
	_ = lc.Stop(context.Background())
	if !closer.closed {
		t.Error("closer not closed")
	}
}
