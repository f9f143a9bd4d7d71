package errs

import (
	"errors"
	"strings"
	"testing"
)

type fieldErr map[string]string

func (f fieldErr) Error() string             { return "invalid" }
func (f fieldErr) Fields() map[string]string { return f }

func TestWrapPreservesChain(t *testing.T) {
	base := errors.New("boom")
	err := Wrapf(Wrap(base, "inner"), "outer %d", 7)

	if !errors.Is(err, base) {
		t.Fatalf("errors.Is(base) = false")
	}
	if err.Error() != "outer 7: inner: boom" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if Wrap(nil, "x") != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
}

func TestLoggableIncludesFieldsAndJoined(t *testing.T) {
	err := errors.Join(Wrap(fieldErr{"location": "is required"}, "validate"), errors.New("second"))
	value := Loggable(err).LogValue().String()

	for _, want := range []string{"location", "is required", "joined", "second"} {
		if !strings.Contains(value, want) {
			t.Fatalf("LogValue() = %q, missing %q", value, want)
		}
	}
}

func TestWithStackCapturesOnce(t *testing.T) {
	first := WithStack(errors.New("root"))
	second := WithStack(Wrap(first, "ctx"))

	var se *StackError
	if !errors.As(second, &se) {
		t.Fatal("expected StackError in chain")
	}
	if len(se.Stack()) == 0 {
		t.Fatal("stack is empty")
	}
	if len(Unjoin(second)) != 1 {
		t.Fatalf("Unjoin(single) len = %d", len(Unjoin(second)))
	}
}
