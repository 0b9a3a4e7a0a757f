package session

import (
	"strings"

	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// Trigger maps a keyword in a player action to the dice rolled for it
type Trigger struct {
	Keyword string
	Dice    string
}

// DefaultTriggers returns the standard vocabulary. Every entry rolls a d20;
// order is kept so overlapping keywords resolve the same way every time.
func DefaultTriggers() []Trigger {
	keywords := []string{
		"attack", "hit", "strike", "fight",
		"climb", "jump", "leap",
		"persuade", "convince", "charm",
		"search", "look for", "investigate", "examine",
		"lockpick", "pick lock", "open",
		"sneak", "stealth", "hide",
		"cast", "spell", "magic",
	}

	triggers := make([]Trigger, len(keywords))
	for i, kw := range keywords {
		triggers[i] = Trigger{Keyword: kw, Dice: "1d20"}
	}
	return triggers
}

type compiledTrigger struct {
	keyword string
	expr    *dice.Expression
}

func compileTriggers(triggers []Trigger) ([]compiledTrigger, error) {
	out := make([]compiledTrigger, 0, len(triggers))
	for i, t := range triggers {
		kw := strings.ToLower(strings.TrimSpace(t.Keyword))
		if kw == "" {
			return nil, errors.InvalidArgumentf("trigger %d has no keyword", i)
		}
		expr, err := dice.Parse(t.Dice)
		if err != nil {
			return nil, errors.Wrapf(err, "trigger %q", t.Keyword)
		}
		out = append(out, compiledTrigger{keyword: kw, expr: expr})
	}
	return out, nil
}

// match returns the first trigger whose keyword appears in text
func match(triggers []compiledTrigger, text string) (compiledTrigger, bool) {
	lower := strings.ToLower(text)
	for _, t := range triggers {
		if strings.Contains(lower, t.keyword) {
			return t, true
		}
	}
	return compiledTrigger{}, false
}
