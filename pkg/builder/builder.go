// Package builder parses serialized tree descriptions into trees.
//
// Two input forms are accepted.
//
// The list form is the default: numbers separated by commas, whitespace or
// "#" comments running to the end of the line. Numbers use Go float syntax
// and must be finite and unique. They are inserted in order into an empty
// binary search tree, so "5 3 8 1 4" yields root 5, children 3 and 8, and 1, 4
// under 3. Input without numbers builds an empty tree.
//
// The structured form is a YAML or JSON document of nested objects with a
// numeric "value" and optional "left" and "right" children. It must respect
// the search tree ordering. FormatAuto selects it when the input starts with "{".
package builder

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

// Format selects the input grammar.
type Format string

const (
	// FormatAuto picks FormatStructured for input starting with "{", FormatList otherwise.
	FormatAuto Format = "auto"
	// FormatList is the insertion-order number list.
	FormatList Format = "list"
	// FormatStructured is the nested {value, left, right} document.
	FormatStructured Format = "structured"
)

// Default limits for untrusted input.
const (
	DefaultMaxInputBytes = 1 << 20
	DefaultMaxNodes      = 10_000
)

// Options tunes a build.
type Options struct {
	Format Format
	// MaxInputBytes bounds the input size; zero or negative disables the check.
	MaxInputBytes int
	// MaxNodes bounds the node count; zero or negative disables the check.
	MaxNodes int
	// Generation mints the generation of the new tree. Nil uses tree.NewGeneration.
	Generation func() string
}

// DefaultOptions returns options with the default limits and automatic format detection.
func DefaultOptions() Options {
	return Options{
		Format:        FormatAuto,
		MaxInputBytes: DefaultMaxInputBytes,
		MaxNodes:      DefaultMaxNodes,
	}
}

// ParseFormat converts a user-supplied name into a Format. Empty means auto.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatList:
		return FormatList, nil
	case FormatStructured, "yaml", "json":
		return FormatStructured, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q", name)
	}
}

// Build parses text with DefaultOptions.
func Build(text string) (*tree.Tree, error) {
	return BuildWith(text, DefaultOptions())
}

// BuildWith parses text into a new tree. Errors are *ParseError. The function
// has no side effects, so a failed build leaves any previous tree untouched.
func BuildWith(text string, opts Options) (*tree.Tree, error) {
	if opts.MaxInputBytes > 0 && len(text) > opts.MaxInputBytes {
		return nil, &ParseError{
			Offset: opts.MaxInputBytes,
			Err:    errors.Wrapf(ErrInputTooLarge, "%d bytes, limit %d", len(text), opts.MaxInputBytes),
		}
	}

	gen := tree.NewGeneration
	if opts.Generation != nil {
		gen = opts.Generation
	}

	format := opts.Format
	if format == "" || format == FormatAuto {
		format = detectFormat(text)
	}

	switch format {
	case FormatList:
		return buildList(text, opts.MaxNodes, gen())
	case FormatStructured:
		return buildStructured(text, opts.MaxNodes, gen())
	default:
		return nil, &ParseError{Offset: -1, Err: errors.Wrapf(ErrUnknownFormat, "%q", format)}
	}
}

func detectFormat(text string) Format {
	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		return FormatStructured
	}

	return FormatList
}
