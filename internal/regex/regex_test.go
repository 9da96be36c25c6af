package regex

import (
	"testing"

	"github.com/mimecast/linescan/internal/errors"
	"github.com/mimecast/linescan/internal/testutil"
)

func TestLiteralDetection(t *testing.T) {
	tests := []struct {
		pattern string
		literal bool
	}{
		{"ERROR", true},
		{"hello world", true},
		{"foo/bar", true},
		{"ERROR|WARN", false},
		{"^start", false},
		{"file.txt", false},
		{"count: [0-9]+", false},
	}
	for _, tt := range tests {
		r, err := New(tt.pattern, Default)
		testutil.AssertNoError(t, err)
		if r.IsLiteral() != tt.literal {
			t.Errorf("%q: expected literal=%t, got %t", tt.pattern, tt.literal, r.IsLiteral())
		}
	}
}

func TestMatch(t *testing.T) {
	r, err := New("ERROR", Default)
	testutil.AssertNoError(t, err)
	if !r.Match([]byte("2024-01-01 ERROR something broke")) {
		t.Error("expected literal match")
	}
	if r.Match([]byte("2024-01-01 INFO all fine")) {
		t.Error("unexpected literal match")
	}

	r, err = New("ERROR|FATAL", Default)
	testutil.AssertNoError(t, err)
	if r.IsLiteral() {
		t.Error("alternation compiled as literal")
	}
	if !r.Match([]byte("FATAL: disk gone")) {
		t.Error("expected regex match")
	}
}

func TestMatchInvert(t *testing.T) {
	r, err := New("DEBUG", Invert)
	testutil.AssertNoError(t, err)
	if r.Match([]byte("DEBUG noise")) {
		t.Error("inverted filter kept matching line")
	}
	if !r.MatchString("INFO signal") {
		t.Error("inverted filter dropped non-matching line")
	}
}

func TestNoopCollapse(t *testing.T) {
	for _, pattern := range []string{"", ".", ".*"} {
		r, err := New(pattern, Default)
		testutil.AssertNoError(t, err)
		if !r.Match([]byte("anything")) {
			t.Errorf("%q: noop filter dropped a line", pattern)
		}
	}
	if !NewNoop().Match(nil) {
		t.Error("noop filter dropped nil line")
	}
}

func TestBadPattern(t *testing.T) {
	_, err := New("[unclosed", Default)
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
