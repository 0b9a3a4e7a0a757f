package dice

import (
	"fmt"
	"strconv"
	"strings"

	toolkit "github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// RollResult is the outcome of one roll. Results holds the raw die values per
// term in draw order; Dropped lists values that were drawn but not counted.
type RollResult struct {
	Notation    string  `json:"notation"`
	Results     [][]int `json:"results"`
	Dropped     []int   `json:"dropped,omitempty"`
	Modifier    int     `json:"modifier"`
	Total       int     `json:"total"`
	Description string  `json:"description"`
}

// Flatten returns every drawn die value in draw order
func (r *RollResult) Flatten() []int {
	var out []int
	for _, term := range r.Results {
		out = append(out, term...)
	}
	return out
}

// Roll draws every term of expr from roller. The total is the sum of all
// draws plus the modifier.
func Roll(expr *Expression, roller toolkit.Roller) (*RollResult, error) {
	if expr == nil || len(expr.Terms) == 0 {
		return nil, errors.InvalidArgument("dice expression has no terms")
	}
	if roller == nil {
		return nil, errors.InvalidArgument("roller is required")
	}

	result := &RollResult{
		Notation: expr.String(),
		Results:  make([][]int, 0, len(expr.Terms)),
		Modifier: expr.Modifier,
	}

	total := expr.Modifier
	for _, term := range expr.Terms {
		values, err := drawTerm(roller, term.Count, term.Faces)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to roll %s", term)
		}
		for _, v := range values {
			total += v
		}
		result.Results = append(result.Results, values)
	}

	result.Total = total
	result.Description = describe(result.Notation, result.Results, result.Dropped, result.Modifier, total)
	return result, nil
}

// RollNotation parses and rolls in one step
func RollNotation(notation string, roller toolkit.Roller) (*RollResult, error) {
	expr, err := Parse(notation)
	if err != nil {
		return nil, err
	}
	return Roll(expr, roller)
}

// RollWithModifier rolls a single die of the given size plus a flat modifier
func RollWithModifier(roller toolkit.Roller, faces, modifier int) (*RollResult, error) {
	if faces < 2 {
		return nil, errors.DiceParse("die must have at least 2 faces, got %d", faces)
	}
	return Roll(&Expression{Terms: []Term{{Count: 1, Faces: faces}}, Modifier: modifier}, roller)
}

// Advantage draws two d20 and keeps the higher
func Advantage(roller toolkit.Roller, modifier int) (*RollResult, error) {
	return rollTwoD20(roller, modifier, true)
}

// Disadvantage draws two d20 and keeps the lower
func Disadvantage(roller toolkit.Roller, modifier int) (*RollResult, error) {
	return rollTwoD20(roller, modifier, false)
}

func rollTwoD20(roller toolkit.Roller, modifier int, keepHigh bool) (*RollResult, error) {
	if roller == nil {
		return nil, errors.InvalidArgument("roller is required")
	}

	values, err := drawTerm(roller, 2, 20)
	if err != nil {
		return nil, errors.Wrap(err, "failed to roll 2d20")
	}

	kept, dropped := values[0], values[1]
	if (keepHigh && dropped > kept) || (!keepHigh && dropped < kept) {
		kept, dropped = dropped, kept
	}

	mode := "advantage"
	if !keepHigh {
		mode = "disadvantage"
	}

	result := &RollResult{
		Notation: fmt.Sprintf("1d20%s (%s)", formatModifier(modifier), mode),
		Results:  [][]int{values},
		Dropped:  []int{dropped},
		Modifier: modifier,
		Total:    kept + modifier,
	}
	result.Description = describe(result.Notation, result.Results, result.Dropped, modifier, result.Total)
	return result, nil
}

// drawTerm is the single primitive every roll goes through, so each die
// consumes exactly one value from the roller.
func drawTerm(roller toolkit.Roller, count, faces int) ([]int, error) {
	values, err := roller.RollN(count, faces)
	if err != nil {
		return nil, err
	}
	if len(values) != count {
		return nil, errors.Internalf("roller returned %d values for %dd%d", len(values), count, faces)
	}
	for _, v := range values {
		if v < 1 || v > faces {
			return nil, errors.Internalf("roller returned %d for a d%d", v, faces)
		}
	}
	return values, nil
}

func describe(notation string, results [][]int, dropped []int, modifier, total int) string {
	var b strings.Builder
	b.WriteString(notation)
	b.WriteString(":")
	for _, term := range results {
		b.WriteString(" ")
		b.WriteString(formatValues(term))
	}
	if len(dropped) > 0 {
		b.WriteString(" drop ")
		b.WriteString(formatValues(dropped))
	}
	if modifier != 0 {
		b.WriteString(" ")
		b.WriteString(formatModifier(modifier))
	}
	b.WriteString(" = ")
	b.WriteString(strconv.Itoa(total))
	return b.String()
}

func formatValues(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
