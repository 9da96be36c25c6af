// Package testutil provides shared helpers for linescan tests: temp-file
// fixtures (optionally compressed with each supported codec) and small
// assertion wrappers.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

// TempFile creates a temporary file with the given content and returns its
// path. The file is automatically cleaned up when the test ends.
func TempFile(t *testing.T, content []byte) string {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "linescan-test-*.txt")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	if _, err := tmpfile.Write(content); err != nil {
		tmpfile.Close()
		os.Remove(tmpfile.Name())
		t.Fatalf("failed to write to temp file: %v", err)
	}
	if err := tmpfile.Close(); err != nil {
		os.Remove(tmpfile.Name())
		t.Fatalf("failed to close temp file: %v", err)
	}

	t.Cleanup(func() {
		os.Remove(tmpfile.Name())
	})
	return tmpfile.Name()
}

// AssertError checks that an error is not nil and contains the expected
// substring.
func AssertError(t *testing.T, err error, contains string) {
	t.Helper()

	if err == nil {
		t.Errorf("expected error containing %q, got nil", contains)
		return
	}
	if !strings.Contains(err.Error(), contains) {
		t.Errorf("expected error containing %q, got %q", contains, err.Error())
	}
}

// AssertNoError checks that an error is nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

// AssertEqual checks that two values are equal.
func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()

	if expected != actual {
		t.Errorf("expected %v, got %v", expected, actual)
	}
}

// GenerateLines produces count newline-terminated lines of roughly width
// bytes each, with a numeric prefix so ordering mistakes are visible.
func GenerateLines(count, width int) []byte {
	var builder strings.Builder
	filler := strings.Repeat("x", width)
	for i := 0; i < count; i++ {
		builder.WriteString(fmt.Sprintf("%06d %s\n", i, filler))
	}
	return []byte(builder.String())
}
