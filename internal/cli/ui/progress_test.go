package ui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer; the spinner writes from a goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerStartStop(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message:  "connecting",
		NoColor:  true,
		Interval: 5 * time.Millisecond,
	})

	spinner.Start()
	time.Sleep(30 * time.Millisecond)
	spinner.Stop()

	if !strings.Contains(buf.String(), "connecting") {
		t.Errorf("expected spinner output, got: %q", buf.String())
	}
}

func TestSpinnerStopTwice(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, SpinnerOptions{Message: "working", NoColor: true, Interval: 5 * time.Millisecond})
	spinner.Start()
	spinner.Stop()
	spinner.Stop() // second stop is a no-op
}

func TestSpinnerSuccess(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, SpinnerOptions{Message: "migrating", NoColor: true, Interval: 5 * time.Millisecond})
	spinner.Start()
	spinner.Success("migrations applied")

	if !strings.Contains(buf.String(), "✓ migrations applied") {
		t.Errorf("expected success line, got: %q", buf.String())
	}
}

func TestSpinnerFail(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, SpinnerOptions{Message: "migrating", NoColor: true, Interval: 5 * time.Millisecond})
	spinner.Start()
	spinner.Fail("migration failed")

	if !strings.Contains(buf.String(), "✗ migration failed") {
		t.Errorf("expected failure line, got: %q", buf.String())
	}
}

func TestSpinnerUpdateMessage(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, SpinnerOptions{Message: "step one", NoColor: true, Interval: 5 * time.Millisecond})
	spinner.Start()
	time.Sleep(15 * time.Millisecond)
	spinner.UpdateMessage("step two")
	time.Sleep(15 * time.Millisecond)
	spinner.Stop()

	out := buf.String()
	if !strings.Contains(out, "step one") || !strings.Contains(out, "step two") {
		t.Errorf("expected both messages in output, got: %q", out)
	}
}

func TestWithSpinner(t *testing.T) {
	var buf syncBuffer
	err := WithSpinner(&buf, "preparing index", true, func() error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "✓ preparing index") {
		t.Errorf("expected success line, got: %q", buf.String())
	}

	wantErr := errors.New("boom")
	err = WithSpinner(&buf, "preparing index", true, func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the callback error, got: %v", err)
	}
	if !strings.Contains(buf.String(), "preparing index failed") {
		t.Errorf("expected failure line, got: %q", buf.String())
	}
}
