package builder

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Causes carried by ParseError.
var (
	ErrInvalidNumber  = errors.New("invalid number")
	ErrNonFinite      = errors.New("number is not finite")
	ErrDuplicateValue = errors.New("duplicate value")
	ErrTooManyNodes   = errors.New("too many nodes")
	ErrInputTooLarge  = errors.New("input too large")
	ErrSyntax         = errors.New("syntax error")
	ErrSchema         = errors.New("schema violation")
	ErrOrdering       = errors.New("search tree ordering violated")
	ErrUnknownFormat  = errors.New("unknown input format")
)

// ParseError reports malformed input. Line and Column are 1-based; zero means
// the position is unknown. Offset is a byte offset into the input, or -1.
type ParseError struct {
	Offset int
	Line   int
	Column int
	// Token is the offending text for list input, or a location such as
	// "$.left.right" for structured input.
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	var sb strings.Builder

	sb.WriteString("parse error")

	switch {
	case e.Line > 0 && e.Column > 0:
		fmt.Fprintf(&sb, " at line %d, column %d", e.Line, e.Column)
	case e.Line > 0:
		fmt.Fprintf(&sb, " at line %d", e.Line)
	}

	if e.Token != "" {
		fmt.Fprintf(&sb, " near %q", e.Token)
	}

	fmt.Fprintf(&sb, ": %v", e.Err)

	return sb.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is, or wraps, a *ParseError.
func IsParseError(err error) bool {
	var perr *ParseError

	return errors.As(err, &perr)
}
