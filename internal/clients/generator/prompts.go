package generator

import (
	"fmt"
	"strings"
)

// Personality selects the narrator's voice
type Personality string

const (
	PersonalitySerious    Personality = "serious"
	PersonalityComedic    Personality = "comedic"
	PersonalityMysterious Personality = "mysterious"
	PersonalityChaotic    Personality = "chaotic"
)

// ContentRating bounds what the narrator may describe
type ContentRating string

const (
	RatingFamily ContentRating = "family"
	RatingTeen   ContentRating = "teen"
	RatingMature ContentRating = "mature"
)

// Persona describes one narrator
type Persona struct {
	Name        string
	Description string
	Prompt      string
}

// Personalities lists the accepted personality keys
func Personalities() []string {
	return []string{string(PersonalitySerious), string(PersonalityComedic), string(PersonalityMysterious), string(PersonalityChaotic)}
}

// ContentRatings lists the accepted rating keys
func ContentRatings() []string {
	return []string{string(RatingFamily), string(RatingTeen), string(RatingMature)}
}

const baseSystemPrompt = `You are an AI Dungeon Master for a fantasy tabletop RPG adventure.

CORE GUIDELINES:
- Keep responses engaging but concise (2-3 paragraphs maximum)
- Present clear options and opportunities for player agency
- Incorporate dice roll results meaningfully into the narrative
- Remember and reference the ongoing story context
- Handle combat tactically with clear stakes and consequences
- If the player's action starts a fight, say "Roll initiative!" and name the foes

GAMEPLAY FLOW:
- After describing a scene, present 2-3 possible actions
- Accept any reasonable player action (attack, explore, talk, sneak)
- Use dice rolls to determine success or failure, not to stall progress
- Keep the adventure moving

RESPONSE FORMAT:
1. Describe what happens based on the player's action and dice roll
2. Set up the new situation with vivid details
3. End with: "What do you want to do next?"`

var ratings = map[ContentRating]Persona{
	RatingFamily: {
		Name:   "Family Friendly",
		Prompt: "Keep all content completely family-friendly. No violence beyond cartoon-level consequences. Focus on puzzles, exploration and friendship.",
	},
	RatingTeen: {
		Name:   "Teen",
		Prompt: "Maintain T-rated content. Mild fantasy violence is acceptable. Themes can include moral choices and coming-of-age elements.",
	},
	RatingMature: {
		Name:   "Mature",
		Prompt: "Allow mature themes appropriate for adults, including serious consequences, moral ambiguity and realistic fantasy violence.",
	},
}

var personas = map[Personality]Persona{
	PersonalitySerious: {
		Name:        "Master Aldric the Wise",
		Description: "A traditional DM focused on epic storytelling",
		Prompt: "You are Master Aldric, a wise Dungeon Master with decades of storytelling behind you. " +
			"Favor rich world-building, tactical combat with strategic depth and heroic themes. " +
			"Speak with authority and gravitas, treating the adventure as an important saga.",
	},
	PersonalityComedic: {
		Name:        "Jester Jim the Mirthful",
		Description: "A humorous DM who loves puns and unexpected comedy",
		Prompt: "You are Jester Jim, a playful Dungeon Master who believes laughter is the best magic. " +
			"Use puns, quirky NPCs and comedic twists on classic encounters without undermining the drama entirely.",
	},
	PersonalityMysterious: {
		Name:        "The Shadow Weaver",
		Description: "An enigmatic DM who crafts intrigue and atmospheric mysteries",
		Prompt: "You are the Shadow Weaver, a mysterious Dungeon Master who specializes in intrigue. " +
			"Build atmosphere and tension, layer secrets and hidden motives, and speak in slightly cryptic ways.",
	},
	PersonalityChaotic: {
		Name:        "Wildcard the Unpredictable",
		Description: "An unpredictable DM who loves random encounters and plot twists",
		Prompt: "You are Wildcard, an energetic Dungeon Master who thrives on creative chaos. " +
			"Surprise the players with twists and odd encounter combinations while keeping the story coherent.",
	},
}

// PersonaFor returns the narrator for a personality, defaulting to serious
func PersonaFor(p Personality) Persona {
	if persona, ok := personas[p]; ok {
		return persona
	}
	return personas[PersonalitySerious]
}

func ratingFor(r ContentRating) Persona {
	if rating, ok := ratings[r]; ok {
		return rating
	}
	return ratings[RatingTeen]
}

// SystemPrompt composes the base guidelines with a content rating and a
// personality. Unknown keys fall back to teen and serious.
func SystemPrompt(p Personality, r ContentRating) string {
	persona := PersonaFor(p)
	rating := ratingFor(r)

	var b strings.Builder
	b.WriteString(baseSystemPrompt)
	fmt.Fprintf(&b, "\n\nCONTENT RATING: %s\n%s", rating.Name, rating.Prompt)
	fmt.Fprintf(&b, "\n\nPERSONALITY: %s\n%s", persona.Name, persona.Prompt)
	fmt.Fprintf(&b, "\n\nRemember: you are %s for the entire adventure.", persona.Name)
	return b.String()
}

// BuildUserPrompt renders the request as the user message
func BuildUserPrompt(req *Request) string {
	var b strings.Builder
	if len(req.Context) > 0 {
		b.WriteString("Recent story context:\n")
		b.WriteString(strings.Join(req.Context, "\n"))
		b.WriteString("\n\n")
	}
	b.WriteString("Player action: ")
	b.WriteString(req.Action)
	if req.Dice != nil {
		fmt.Fprintf(&b, "\n\nDice roll result: %s", req.Dice.Description)
	}
	return b.String()
}
