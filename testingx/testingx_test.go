package testingx

import (
	"errors"
	"sync"
	"testing"
	"time"

	scferrors "go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
)

// fakeTB records failures instead of failing the enclosing test.
type fakeTB struct {
	testing.TB
	failed bool
}

func (f *fakeTB) Helper()               {}
func (f *fakeTB) Errorf(string, ...any) { f.failed = true }
func (f *fakeTB) Fatalf(string, ...any) { f.failed = true }

func TestMockLogger_Levels(t *testing.T) {
	logger := NewMockLogger(t)
	cause := errors.New("boom")

	logger.Debug("d", "k", 1)
	logger.Info("i")
	logger.Warn("w")
	logger.Error(cause, "e")

	entries := logger.Entries()
	if len(entries) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(entries))
	}
	wantLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	for i, want := range wantLevels {
		if entries[i].Level != want {
			t.Errorf("entry %d level = %s, want %s", i, entries[i].Level, want)
		}
	}
	if entries[3].Error != cause {
		t.Error("Error entry should keep the error")
	}
	if logger.Count("WARN") != 1 {
		t.Errorf("Count(WARN) = %d, want 1", logger.Count("WARN"))
	}
}

func TestMockLogger_WithSharesEntries(t *testing.T) {
	logger := NewMockLogger(t)
	child := logger.With("component", "source").With(log.Str("name", "env"))

	child.Warn("lookup failed", log.Any("key", "timeout"))

	found := logger.Find("WARN", "lookup failed")
	if len(found) != 1 {
		t.Fatalf("parent should see child entries, got %d", len(found))
	}
	for key, want := range map[string]any{"component": "source", "name": "env", "key": "timeout"} {
		if got, ok := found[0].Field(key); !ok || got != want {
			t.Errorf("Field(%q) = %v, %v; want %v", key, got, ok, want)
		}
	}
	if _, ok := found[0].Field("missing"); ok {
		t.Error("Field should report missing keys")
	}
}

func TestMockLogger_AssertLogged(t *testing.T) {
	logger := NewMockLogger(t)
	logger.Info("registered")

	logger.AssertLogged("INFO", "registered")
	logger.AssertNotLogged("ERROR", "registered")

	inner := &fakeTB{TB: t}
	probe := NewMockLogger(inner)
	probe.AssertLogged("INFO", "never")
	if !inner.failed {
		t.Error("AssertLogged should fail for a missing entry")
	}
}

func TestMockLogger_Clear(t *testing.T) {
	logger := NewMockLogger(t)
	logger.Info("x")
	logger.Clear()
	if len(logger.Entries()) != 0 {
		t.Error("Clear should remove all entries")
	}
}

func TestMockLogger_Concurrency(t *testing.T) {
	logger := NewMockLogger(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.With("i", 1).Info("concurrent")
		}()
	}
	wg.Wait()
	if n := len(logger.Find("INFO", "concurrent")); n != 50 {
		t.Errorf("Expected 50 entries, got %d", n)
	}
}

func TestAssertError(t *testing.T) {
	AssertError(t, scferrors.New(scferrors.CodeConfigMismatch, "x"), scferrors.CodeConfigMismatch)

	inner := &fakeTB{TB: t}
	AssertError(inner, scferrors.New(scferrors.CodeInternal, "x"), scferrors.CodeRequiredMissing)
	if !inner.failed {
		t.Error("AssertError should fail on a code mismatch")
	}
}

func TestAssertNoError(t *testing.T) {
	AssertNoError(t, nil)
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder[int]()
	go func() {
		for i := 0; i < 3; i++ {
			rec.Record(i)
		}
	}()

	if !rec.WaitFor(3, 5*time.Second) {
		t.Fatalf("expected 3 events, got %d", rec.Len())
	}
	got := rec.Events()
	for i, v := range got {
		if v != i {
			t.Errorf("event %d = %d", i, v)
		}
	}
	if rec.WaitFor(4, 10*time.Millisecond) {
		t.Error("WaitFor should time out when the count is not reached")
	}
}

func TestEventually(t *testing.T) {
	start := time.Now()
	Eventually(t, time.Second, func() bool { return time.Since(start) > 10*time.Millisecond }, "clock advances")
}
