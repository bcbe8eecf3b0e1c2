package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeInvalidArgument, "source name is required")
	if err == nil {
		t.Fatal("New should return non-nil error")
	}

	var customErr *E
	if !errors.As(err, &customErr) {
		t.Fatal("Error should be of type *E")
	}

	if customErr.Code != CodeInvalidArgument {
		t.Errorf("Expected code %s, got %s", CodeInvalidArgument, customErr.Code)
	}
	if customErr.Msg != "source name is required" {
		t.Errorf("Expected message %q, got %q", "source name is required", customErr.Msg)
	}
	if err.Error() != "INVALID_ARGUMENT: source name is required" {
		t.Errorf("Unexpected error string %q", err.Error())
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeRequiredMissing, "property %q has no value", "db.url")
	if CodeOf(err) != CodeRequiredMissing {
		t.Fatalf("Expected code %s, got %s", CodeRequiredMissing, CodeOf(err))
	}
	if !strings.Contains(err.Error(), `"db.url"`) {
		t.Errorf("Expected key in message, got %q", err.Error())
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrap(CodeUnavailable, "source.lookup", originalErr)

	var customErr *E
	if !errors.As(wrappedErr, &customErr) {
		t.Fatal("Wrapped error should be of type *E")
	}
	if customErr.Code != CodeUnavailable {
		t.Errorf("Expected code %s, got %s", CodeUnavailable, customErr.Code)
	}
	if customErr.Op != "source.lookup" {
		t.Errorf("Expected operation %q, got %q", "source.lookup", customErr.Op)
	}
	if customErr.Err != originalErr {
		t.Error("Wrapped error should contain original error")
	}
	if wrappedErr.Error() != "UNAVAILABLE: source.lookup: connection refused" {
		t.Errorf("Unexpected error string %q", wrappedErr.Error())
	}
}

func TestWrapf(t *testing.T) {
	originalErr := errors.New("strconv failure")
	wrappedErr := Wrapf(CodeInvalidArgument, "typex.Convert", originalErr, "cannot convert %q", "abc")

	var customErr *E
	if !errors.As(wrappedErr, &customErr) {
		t.Fatal("Wrapped error should be of type *E")
	}
	if customErr.Msg != `cannot convert "abc"` {
		t.Errorf("Expected message %q, got %q", `cannot convert "abc"`, customErr.Msg)
	}
	if !Is(wrappedErr, originalErr) {
		t.Error("Is should find the original error in the chain")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{name: "custom error with code", err: New(CodeConfigMismatch, "test"), expected: CodeConfigMismatch},
		{name: "wrapped error with code", err: Wrap(CodeUnavailable, "op", errors.New("test")), expected: CodeUnavailable},
		{name: "fmt wrapped coded error", err: fmt.Errorf("outer: %w", New(CodeRequiredMissing, "x")), expected: CodeRequiredMissing},
		{name: "standard error", err: errors.New("standard error"), expected: ""},
		{name: "nil error", err: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := CodeOf(tt.err); code != tt.expected {
				t.Errorf("Expected code %q, got %q", tt.expected, code)
			}
			if tt.expected != "" && !IsCode(tt.err, tt.expected) {
				t.Errorf("IsCode should report %q", tt.expected)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(CodeInternal, "operation", originalErr)

	if errors.Unwrap(wrappedErr) != originalErr {
		t.Error("Unwrap should return original error")
	}
}

func TestBuilder(t *testing.T) {
	err := Build(CodeConfigMismatch).
		WithOp("configx.GetProperty").
		WithMsgf("key %q requested with a different config", "timeout").
		WithDetails("existing", "a", "requested", "b").
		Err()

	var customErr *E
	if !errors.As(err, &customErr) {
		t.Fatal("Error should be of type *E")
	}
	if customErr.Code != CodeConfigMismatch {
		t.Errorf("Expected code %s, got %s", CodeConfigMismatch, customErr.Code)
	}
	if customErr.Op != "configx.GetProperty" {
		t.Errorf("Expected op %q, got %q", "configx.GetProperty", customErr.Op)
	}
	if customErr.Msg != `key "timeout" requested with a different config` {
		t.Errorf("Unexpected msg %q", customErr.Msg)
	}
	if len(customErr.Details) != 4 {
		t.Errorf("Expected 4 details, got %d", len(customErr.Details))
	}
}

func TestRecovered(t *testing.T) {
	if Recovered("op", nil) != nil {
		t.Fatal("Recovered(nil) should return nil")
	}

	cause := errors.New("boom")
	err := Recovered("filter", cause)
	if CodeOf(err) != CodeInternal {
		t.Errorf("Expected code %s, got %s", CodeInternal, CodeOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("Recovered error should wrap the panic error")
	}

	err = Recovered("filter", "plain string")
	if !strings.Contains(err.Error(), "plain string") {
		t.Errorf("Expected panic value in message, got %q", err.Error())
	}
}
