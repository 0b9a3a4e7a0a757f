package generator

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// OfflineConfig configures the offline generator
type OfflineConfig struct {
	Personality Personality
}

type offlineGenerator struct {
	personality Personality
}

var _ Generator = (*offlineGenerator)(nil)

// NewOffline creates a generator that composes replies from keyword tables.
// The same action and dice total always produce the same reply.
func NewOffline(cfg *OfflineConfig) Generator {
	p := PersonalitySerious
	if cfg != nil {
		if _, ok := personas[cfg.Personality]; ok {
			p = cfg.Personality
		}
	}
	return &offlineGenerator{personality: p}
}

var offlinePrefixes = map[Personality][]string{
	PersonalitySerious: {
		"You proceed with determination.",
		"With careful consideration, you act.",
		"Your resolve is strong as you move forward.",
		"The path ahead becomes clearer.",
		"You take decisive action.",
	},
	PersonalityComedic: {
		"Well, this should be interesting!",
		"Oh boy, here we go again!",
		"Plot twist incoming!",
		"Your adventure takes a hilarious turn!",
		"Nobody saw that coming, least of all you!",
	},
	PersonalityMysterious: {
		"The shadows whisper of your choice...",
		"Ancient forces stir as you act...",
		"Something watches from the darkness...",
		"The air grows thick with mystery...",
		"Fate's threads weave in unexpected ways...",
	},
	PersonalityChaotic: {
		"Chaos erupts around you!",
		"Reality shifts unpredictably!",
		"The universe laughs at your plans!",
		"Everything changes in an instant!",
		"Probability takes a vacation!",
	},
}

type offlineCategory struct {
	keywords []string
	outcomes func(total int, hasDice bool) []string
}

func fixed(outcomes ...string) func(int, bool) []string {
	return func(int, bool) []string { return outcomes }
}

var travelDestinations = []struct {
	place  string
	detail string
}{
	{"a moss covered clearing", "sunlight filters through the ancient oaks"},
	{"an abandoned watchtower", "its stones are scorched by old fire"},
	{"a narrow mountain pass", "cold wind howls between the cliffs"},
	{"a quiet riverside village", "smoke curls from a dozen chimneys"},
	{"the mouth of a dark cave", "a faint glow pulses somewhere inside"},
	{"a crumbling temple", "faded murals cover every wall"},
	{"a crossroads marked by a weathered shrine", "fresh offerings lie at its base"},
}

var offlineCategories = []offlineCategory{
	{
		keywords: []string{"search", "look", "examine", "investigate", "see"},
		outcomes: fixed(
			"You discover a hidden compartment containing a small pouch of silver coins.",
			"Your keen eye spots tracks leading deeper into the wilderness.",
			"You find an old map fragment tucked beneath a loose stone.",
			"Strange runes are carved faintly into the wall, pulsing with a soft light.",
			"You notice a glint of metal half buried in the dirt, an ornate dagger.",
		),
	},
	{
		keywords: []string{"attack", "fight", "strike", "hit"},
		outcomes: func(total int, hasDice bool) []string {
			if hasDice && total >= 15 {
				return []string{
					"Your strike lands true, staggering your foe!",
					"A powerful blow sends your enemy reeling!",
					"You find an opening and press the advantage!",
				}
			}
			return []string{
				"Your attack goes wide as your opponent sidesteps.",
				"Your foe parries the blow and circles warily.",
				"You overextend and barely recover your footing.",
			}
		},
	},
	{
		keywords: []string{"talk", "speak", "say", "tell", "ask"},
		outcomes: fixed(
			"The stranger listens carefully, then shares a rumor about the old ruins.",
			"Your words strike a chord and the innkeeper leans in to whisper a secret.",
			"The guard eyes you suspiciously but eventually points the way.",
			"An elderly traveler nods slowly and offers you a warning about the road ahead.",
		),
	},
	{
		keywords: []string{"go", "walk", "move", "travel", "head", "forward", "continue"},
		outcomes: func(int, bool) []string {
			out := make([]string, 0, len(travelDestinations))
			for _, d := range travelDestinations {
				out = append(out, fmt.Sprintf("You arrive at %s, where %s.", d.place, d.detail))
			}
			return out
		},
	},
	{
		keywords: []string{"rest", "sleep", "camp"},
		outcomes: fixed(
			"You make camp and the night passes peacefully. You wake refreshed.",
			"Your rest is interrupted by distant howls, but nothing approaches.",
			"Around the campfire you notice strange constellations overhead.",
		),
	},
	{
		keywords: []string{"cast", "spell", "magic"},
		outcomes: fixed(
			"Arcane energy crackles at your fingertips as the spell takes shape.",
			"The air shimmers and your magic answers your call.",
			"Your spell flickers uncertainly before bursting into brilliant light.",
		),
	},
	{
		keywords: []string{"climb", "jump", "leap"},
		outcomes: fixed(
			"You scramble up and gain a commanding view of the area.",
			"With a running start you clear the gap and land in a crouch.",
			"Your grip slips for a heartbeat before you haul yourself up.",
		),
	},
}

var genericOutcomes = []string{
	"Your action sets events in motion that will shape the adventure ahead.",
	"The world responds to your choice in subtle but meaningful ways.",
	"Something shifts in the air as you act, and new possibilities open up.",
	"Your decision leads you down an intriguing path.",
}

var storyHooks = []string{
	"",
	"",
	"",
	" In the distance, you hear the sound of approaching hoofbeats.",
	" A mysterious figure watches you from the shadows before vanishing.",
	" You notice a crumpled note on the ground: 'Beware the full moon.'",
	" The sound of a merchant caravan echoes from the nearby road.",
	" Dark storm clouds gather ominously on the horizon.",
}

// diceFlavor describes how well a roll went
func diceFlavor(total int) string {
	switch {
	case total >= 18:
		return " Your exceptional effort shows remarkable results!"
	case total >= 15:
		return " Your efforts prove quite successful!"
	case total >= 10:
		return " Things go reasonably well."
	case total <= 5:
		return " Unfortunately, things don't go as planned."
	default:
		return " The results are mixed."
	}
}

func (g *offlineGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	if req == nil {
		return "", errors.InvalidArgument("request is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errors.WrapWithCode(err, errors.CodeDeadlineExceeded, "offline generation abandoned")
	}

	action := strings.ToLower(req.Action)
	total, hasDice := 0, req.Dice != nil
	if hasDice {
		total = req.Dice.Total
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(action))
	seed := h.Sum64() + uint64(total)

	outcomes := genericOutcomes
	for _, c := range offlineCategories {
		if containsAny(action, c.keywords) {
			outcomes = c.outcomes(total, hasDice)
			break
		}
	}

	prefixes := offlinePrefixes[g.personality]
	var b strings.Builder
	b.WriteString(pick(prefixes, seed))
	b.WriteString(" ")
	b.WriteString(pick(outcomes, seed>>8))
	if hasDice {
		b.WriteString(diceFlavor(total))
	}
	b.WriteString(pick(storyHooks, seed>>16))
	b.WriteString("\n\nWhat do you do next?")
	return b.String(), nil
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func pick(options []string, seed uint64) string {
	return options[seed%uint64(len(options))]
}
