// Package grader compares program output against expected output.
package grader

import (
	"strings"

	appErr "execoj/pkg/errors"
)

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Normalize canonicalizes line endings to LF and trims surrounding whitespace.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	return strings.TrimSpace(lineEndings.Replace(s))
}

// Equal reports whether actual matches expected after normalization.
func Equal(actual, expected string) bool {
	return Normalize(actual) == Normalize(expected)
}

// Overall is the logical AND of all verdicts. No verdicts at all is a
// configuration error rather than a vacuous pass.
func Overall(verdicts []bool) (bool, error) {
	if len(verdicts) == 0 {
		return false, appErr.New(appErr.NoTestCases)
	}
	for _, v := range verdicts {
		if !v {
			return false, nil
		}
	}
	return true, nil
}
