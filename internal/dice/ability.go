package dice

import (
	"sort"

	toolkit "github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// AbilityModifier converts an ability score to its modifier, rounding down:
// 10 gives 0, 9 gives -1, 18 gives +4.
func AbilityModifier(score int) int {
	diff := score - 10
	if diff < 0 {
		return -((-diff + 1) / 2)
	}
	return diff / 2
}

// AbilityCheck rolls a d20 plus the score's modifier. Advantage and
// disadvantage cancel each other out.
func AbilityCheck(roller toolkit.Roller, score int, advantage, disadvantage bool) (*RollResult, error) {
	mod := AbilityModifier(score)
	switch {
	case advantage && !disadvantage:
		return Advantage(roller, mod)
	case disadvantage && !advantage:
		return Disadvantage(roller, mod)
	default:
		return RollWithModifier(roller, 20, mod)
	}
}

// RollAbilityScore rolls 4d6 and drops the lowest die
func RollAbilityScore(roller toolkit.Roller) (*RollResult, error) {
	if roller == nil {
		return nil, errors.InvalidArgument("roller is required")
	}

	values, err := drawTerm(roller, 4, 6)
	if err != nil {
		return nil, errors.Wrap(err, "failed to roll ability score")
	}

	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	total := 0
	for _, v := range sorted[1:] {
		total += v
	}

	result := &RollResult{
		Notation: "4d6 drop lowest",
		Results:  [][]int{values},
		Dropped:  []int{sorted[0]},
		Total:    total,
	}
	result.Description = describe(result.Notation, result.Results, result.Dropped, 0, total)
	return result, nil
}

// RollAbilityScores rolls the six scores of a new character in order
func RollAbilityScores(roller toolkit.Roller) ([6]int, error) {
	var scores [6]int
	for i := range scores {
		r, err := RollAbilityScore(roller)
		if err != nil {
			return scores, err
		}
		scores[i] = r.Total
	}
	return scores, nil
}
