// Package dice parses dice notation and rolls it against an injected roller.
//
// Notation is one or more terms of the form <count>d<faces> joined by '+',
// each optionally followed by a signed integer modifier: "1d20+5", "2d6",
// "1d8-1", "d20", "2d6 + 1d4 + 2". Parsing is case-insensitive and ignores
// whitespace. Count defaults to 1; count must be at least 1 and faces at
// least 2.
package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

const (
	// MaxCount bounds the dice in a single term
	MaxCount = 100
	// MaxFaces bounds the faces of a single die
	MaxFaces = 1000
)

var termRegex = regexp.MustCompile(`^(\d*)d(\d+)$`)

// Term is one group of identical dice
type Term struct {
	Count int `json:"count"`
	Faces int `json:"faces"`
}

// String renders the term in notation form
func (t Term) String() string {
	return fmt.Sprintf("%dd%d", t.Count, t.Faces)
}

// Expression is a parsed dice notation. It is immutable once parsed.
type Expression struct {
	Terms    []Term `json:"terms"`
	Modifier int    `json:"modifier"`
}

// String renders the canonical notation, e.g. "2d6+1d4-1"
func (e *Expression) String() string {
	var b strings.Builder
	for i, t := range e.Terms {
		if i > 0 {
			b.WriteByte('+')
		}
		b.WriteString(t.String())
	}
	b.WriteString(formatModifier(e.Modifier))
	return b.String()
}

// DiceCount returns the number of dice rolled by the expression
func (e *Expression) DiceCount() int {
	n := 0
	for _, t := range e.Terms {
		n += t.Count
	}
	return n
}

// Parse turns dice notation into an Expression. Malformed notation fails with
// a DICE_PARSE error.
func Parse(notation string) (*Expression, error) {
	compact := strings.ToLower(strings.Join(strings.Fields(notation), ""))
	if compact == "" {
		return nil, errors.DiceParse("dice notation is empty")
	}

	chunks, err := splitSigned(compact)
	if err != nil {
		return nil, errors.DiceParse("invalid dice notation %q: %s", notation, err)
	}

	expr := &Expression{}
	for i, c := range chunks {
		if strings.Contains(c.body, "d") {
			if c.negative {
				return nil, errors.DiceParse("invalid dice notation %q: dice terms cannot be subtracted", notation)
			}
			term, err := parseTerm(c.body)
			if err != nil {
				return nil, errors.DiceParse("invalid dice notation %q: %s", notation, err)
			}
			expr.Terms = append(expr.Terms, term)
			continue
		}

		if i == 0 {
			return nil, errors.DiceParse("invalid dice notation %q: must start with a dice term", notation)
		}
		n, err := strconv.Atoi(c.body)
		if err != nil {
			return nil, errors.DiceParse("invalid dice notation %q: bad modifier %q", notation, c.body)
		}
		if c.negative {
			n = -n
		}
		expr.Modifier += n
	}

	return expr, nil
}

// MustParse is Parse for notation known at compile time
func MustParse(notation string) *Expression {
	expr, err := Parse(notation)
	if err != nil {
		panic(err)
	}
	return expr
}

type signedChunk struct {
	negative bool
	body     string
}

func splitSigned(s string) ([]signedChunk, error) {
	var chunks []signedChunk
	start, negative := 0, false
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != '+' && s[i] != '-' {
			continue
		}
		if i == start {
			return nil, fmt.Errorf("empty term at position %d", i)
		}
		chunks = append(chunks, signedChunk{negative: negative, body: s[start:i]})
		if i < len(s) {
			negative = s[i] == '-'
		}
		start = i + 1
	}
	return chunks, nil
}

func parseTerm(body string) (Term, error) {
	m := termRegex.FindStringSubmatch(body)
	if m == nil {
		return Term{}, fmt.Errorf("bad dice term %q", body)
	}

	count := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Term{}, fmt.Errorf("bad dice count %q", m[1])
		}
		count = n
	}
	faces, err := strconv.Atoi(m[2])
	if err != nil {
		return Term{}, fmt.Errorf("bad die size %q", m[2])
	}

	switch {
	case count < 1:
		return Term{}, fmt.Errorf("dice count must be at least 1, got %d", count)
	case count > MaxCount:
		return Term{}, fmt.Errorf("dice count must be at most %d, got %d", MaxCount, count)
	case faces < 2:
		return Term{}, fmt.Errorf("die must have at least 2 faces, got %d", faces)
	case faces > MaxFaces:
		return Term{}, fmt.Errorf("die must have at most %d faces, got %d", MaxFaces, faces)
	}

	return Term{Count: count, Faces: faces}, nil
}

func formatModifier(m int) string {
	switch {
	case m > 0:
		return fmt.Sprintf("+%d", m)
	case m < 0:
		return fmt.Sprintf("%d", m)
	default:
		return ""
	}
}
