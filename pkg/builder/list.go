package builder

import (
	"math"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

// token is a maximal run of non-separator bytes with its position.
type token struct {
	text   string
	offset int
	line   int
	column int
}

func (tok token) fail(err error) *ParseError {
	return &ParseError{
		Offset: tok.offset,
		Line:   tok.line,
		Column: tok.column,
		Token:  tok.text,
		Err:    err,
	}
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// scanList splits list input into number tokens, skipping separators and comments.
func scanList(text string) []token {
	var tokens []token

	line, column := 1, 1
	idx := 0

	advance := func() {
		if text[idx] == '\n' {
			line++
			column = 1
		} else {
			column++
		}

		idx++
	}

	for idx < len(text) {
		b := text[idx]

		switch {
		case b == ',' || isSpace(b):
			advance()
		case b == '#':
			for idx < len(text) && text[idx] != '\n' {
				advance()
			}
		default:
			tok := token{offset: idx, line: line, column: column}

			for idx < len(text) && text[idx] != ',' && text[idx] != '#' && !isSpace(text[idx]) {
				advance()
			}

			tok.text = text[tok.offset:idx]
			tokens = append(tokens, tok)
		}
	}

	return tokens
}

func parseNumber(tok token) (float64, error) {
	v, err := strconv.ParseFloat(tok.text, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) && math.IsInf(v, 0) {
			return 0, tok.fail(ErrNonFinite)
		}

		return 0, tok.fail(ErrInvalidNumber)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, tok.fail(ErrNonFinite)
	}

	return v, nil
}

func buildList(text string, maxNodes int, generation string) (*tree.Tree, error) {
	tokens := scanList(text)
	values := make([]float64, 0, len(tokens))
	seen := make(map[float64]token, len(tokens))

	for idx, tok := range tokens {
		if maxNodes > 0 && idx >= maxNodes {
			return nil, tok.fail(errors.Wrapf(ErrTooManyNodes, "limit %d", maxNodes))
		}

		v, err := parseNumber(tok)
		if err != nil {
			return nil, err
		}

		if first, dup := seen[v]; dup {
			return nil, tok.fail(errors.Wrapf(ErrDuplicateValue, "first seen at line %d, column %d", first.line, first.column))
		}

		seen[v] = tok
		values = append(values, v)
	}

	t, err := tree.FromValues(generation, values)
	if err != nil {
		// The checks above make this unreachable; keep the position if it happens.
		var verr *tree.ValueError
		if errors.As(err, &verr) && verr.Index < len(tokens) {
			return nil, tokens[verr.Index].fail(err)
		}

		return nil, &ParseError{Offset: -1, Err: err}
	}

	return t, nil
}
