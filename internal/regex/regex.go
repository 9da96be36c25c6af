// Package regex provides line filtering with an optimized fast path for
// literal patterns, which are matched with bytes.Contains instead of the
// regexp machinery.
package regex

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/mimecast/linescan/internal/errors"
)

// Flag alters how a filter applies its pattern.
type Flag int

const (
	// Default keeps lines matching the pattern.
	Default Flag = iota
	// Invert keeps lines NOT matching the pattern.
	Invert
	// Noop keeps every line.
	Noop
)

func (f Flag) String() string {
	switch f {
	case Default:
		return "default"
	case Invert:
		return "invert"
	case Noop:
		return "noop"
	}
	return "unknown"
}

// Regex filters lines against a pattern.
type Regex struct {
	regexStr string
	re       *regexp.Regexp
	flag     Flag
	// Literal patterns skip the regexp engine entirely.
	isLiteral    bool
	literalBytes []byte
}

func (r Regex) String() string {
	return fmt.Sprintf("Regex(regexStr:%s,flag:%s,isLiteral:%t)",
		r.regexStr, r.flag, r.isLiteral)
}

// isLiteralPattern reports whether the pattern contains no regex
// metacharacters and can be matched with a plain substring search.
func isLiteralPattern(pattern string) bool {
	const metaChars = `.+*?^$[]{}()|\`
	return !strings.ContainsAny(pattern, metaChars)
}

// NewNoop returns a filter that keeps every line.
func NewNoop() Regex {
	return Regex{flag: Noop}
}

// New compiles a line filter. Empty and match-all patterns collapse to the
// noop filter.
func New(regexStr string, flag Flag) (Regex, error) {
	if regexStr == "" || regexStr == "." || regexStr == ".*" {
		return NewNoop(), nil
	}

	r := Regex{regexStr: regexStr, flag: flag}
	if isLiteralPattern(regexStr) {
		r.isLiteral = true
		r.literalBytes = []byte(regexStr)
		return r, nil
	}

	re, err := regexp.Compile(regexStr)
	if err != nil {
		return Regex{}, errors.Wrapf(errors.ErrInvalidArgument,
			"bad pattern %q: %v", regexStr, err)
	}
	r.re = re
	return r, nil
}

// Match reports whether the line passes the filter.
func (r Regex) Match(b []byte) bool {
	if r.flag == Noop {
		return true
	}
	var matched bool
	if r.isLiteral {
		matched = bytes.Contains(b, r.literalBytes)
	} else {
		matched = r.re.Match(b)
	}
	if r.flag == Invert {
		return !matched
	}
	return matched
}

// MatchString is Match for strings.
func (r Regex) MatchString(str string) bool {
	if r.flag == Noop {
		return true
	}
	var matched bool
	if r.isLiteral {
		matched = strings.Contains(str, r.regexStr)
	} else {
		matched = r.re.MatchString(str)
	}
	if r.flag == Invert {
		return !matched
	}
	return matched
}

// IsLiteral reports whether the filter uses literal string matching.
func (r Regex) IsLiteral() bool {
	return r.isLiteral
}

// Pattern returns the original pattern string.
func (r Regex) Pattern() string {
	return r.regexStr
}
