// Package ocr turns captcha images into digit strings, either through
// a remote tesseract HTTP endpoint or through an in-process fallback
// compiled behind the "ocr" build tag.
package ocr

import (
	"context"
	"fmt"
	"regexp"
)

// the portal's captchas are always exactly this many digits.
const ExpectedLength = 4

type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// Error wraps every failure mode of a solver so callers handle a
// single shape regardless of transport, parse or backend problems.
type Error struct {
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ocr: %s: %v", e.Reason, e.Cause)
	}
	return "ocr: " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Cause
}

var nonDigits = regexp.MustCompile(`\D`)
var candidatePattern = regexp.MustCompile(`^\d{1,6}$`)

func DigitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}
