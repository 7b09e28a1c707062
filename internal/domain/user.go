package domain

import (
	"regexp"
	"time"
)

// User is a worker identified by a short access code. The code is the only
// credential a worker needs to reach their own clock.
type User struct {
	ID        int64
	Name      string
	Code      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CodeLength is the canonical length of a user access code.
const CodeLength = 8

var codePattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// ValidCode reports whether code is a well-formed user access code:
// exactly CodeLength uppercase letters or digits.
func ValidCode(code string) bool {
	return len(code) == CodeLength && codePattern.MatchString(code)
}
