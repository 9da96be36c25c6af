package errors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		msg      string
		expected string
	}{
		{
			name:     "wrap with message",
			err:      ErrOpenFailed,
			msg:      "opening input file",
			expected: "opening input file: open failed",
		},
		{
			name:     "wrap nil error",
			err:      nil,
			msg:      "should return nil",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Wrap(tt.err, tt.msg)
			if tt.err == nil && result != nil {
				t.Errorf("expected nil, got %v", result)
			}
			if tt.err != nil && result.Error() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result.Error())
			}
		})
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(ErrLineTooLong, "line %d of %s", 42, "input.txt.gz")
	expected := "line 42 of input.txt.gz: line exceeds enforced maximum length"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestIs(t *testing.T) {
	wrapped := Wrap(ErrMalformedInput, "decoding block 7")

	if !Is(wrapped, ErrMalformedInput) {
		t.Error("expected Is to return true for wrapped error")
	}
	if Is(wrapped, ErrOpenFailed) {
		t.Error("expected Is to return false for different error")
	}
}

func TestWithSecondary(t *testing.T) {
	primary := Wrap(ErrReadFailed, "mid-stream")
	secondary := ErrCloseFailed

	err := WithSecondary(primary, secondary)
	if !errors.Is(err, ErrReadFailed) {
		t.Error("primary error must remain matchable")
	}
	if !errors.Is(err, ErrCloseFailed) {
		t.Error("secondary error must remain matchable")
	}

	if got := WithSecondary(nil, secondary); got != secondary {
		t.Errorf("expected secondary passthrough, got %v", got)
	}
	if got := WithSecondary(primary, nil); got != primary {
		t.Errorf("expected primary passthrough, got %v", got)
	}
}
