package game

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// EnemyTemplate is the stat block an enemy is built from
type EnemyTemplate struct {
	HitPoints       int
	ArmorClass      int
	AttackBonus     int
	Damage          string
	InitiativeBonus int
}

var enemyTemplates = map[string]EnemyTemplate{
	"goblin":          {HitPoints: 7, ArmorClass: 15, AttackBonus: 4, Damage: "1d6+2", InitiativeBonus: 2},
	"orc":             {HitPoints: 15, ArmorClass: 13, AttackBonus: 5, Damage: "1d12+3", InitiativeBonus: 1},
	"skeleton":        {HitPoints: 13, ArmorClass: 13, AttackBonus: 4, Damage: "1d6+2", InitiativeBonus: 2},
	"wolf":            {HitPoints: 11, ArmorClass: 13, AttackBonus: 4, Damage: "2d4+2", InitiativeBonus: 2},
	"bandit":          {HitPoints: 11, ArmorClass: 12, AttackBonus: 3, Damage: "1d6+1", InitiativeBonus: 1},
	"ogre":            {HitPoints: 59, ArmorClass: 11, AttackBonus: 6, Damage: "2d8+4", InitiativeBonus: -1},
	"dragon_wyrmling": {HitPoints: 75, ArmorClass: 17, AttackBonus: 4, Damage: "2d10+4", InitiativeBonus: 0},
}

// DefaultEnemy is used when a fight starts without naming its foes
const DefaultEnemy = "goblin"

// EnemyTemplates lists the known template keys in alphabetical order
func EnemyTemplates() []string {
	keys := make([]string, 0, len(enemyTemplates))
	for k := range enemyTemplates {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// EnemyName turns a template key into a display name, e.g.
// "dragon_wyrmling" -> "Dragon Wyrmling"
func EnemyName(template string) string {
	// a Caser keeps state, so each call gets its own
	return cases.Title(language.English).String(strings.ReplaceAll(template, "_", " "))
}

// NewEnemy builds a full health enemy combatant from a template
func NewEnemy(template, id string) (*entities.Combatant, error) {
	key := strings.ToLower(strings.TrimSpace(template))
	t, ok := enemyTemplates[key]
	if !ok {
		return nil, errors.InvalidArgumentf("unknown enemy %q", template)
	}
	if id == "" {
		return nil, errors.InvalidArgument("enemy id is required")
	}
	return &entities.Combatant{
		ID:               id,
		Name:             EnemyName(key),
		HitPoints:        t.HitPoints,
		MaxHitPoints:     t.HitPoints,
		ArmorClass:       t.ArmorClass,
		AttackBonus:      t.AttackBonus,
		DamageExpression: t.Damage,
		InitiativeBonus:  t.InitiativeBonus,
	}, nil
}

var mentionPatterns = func() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(enemyTemplates))
	for key := range enemyTemplates {
		words := strings.ReplaceAll(key, "_", `[ _]`)
		out[key] = regexp.MustCompile(`(?i)\b` + words + `(e?s)?\b`)
	}
	return out
}()

// enemiesMentioned returns the templates named in text, in alphabetical
// order. Simple plurals such as "goblins" also match.
func enemiesMentioned(text string) []string {
	var found []string
	for _, key := range EnemyTemplates() {
		if mentionPatterns[key].MatchString(text) {
			found = append(found, key)
		}
	}
	return found
}

// buildEnemies creates one combatant per template. Ids are the template key
// with a counter, e.g. goblin-1, goblin-2.
func buildEnemies(templates []string) ([]*entities.Combatant, error) {
	counts := make(map[string]int, len(templates))
	out := make([]*entities.Combatant, 0, len(templates))
	for _, tmpl := range templates {
		key := strings.ToLower(strings.TrimSpace(tmpl))
		counts[key]++
		enemy, err := NewEnemy(key, strings.ReplaceAll(key, "_", "-")+"-"+strconv.Itoa(counts[key]))
		if err != nil {
			return nil, err
		}
		if counts[key] > 1 {
			enemy.Name = enemy.Name + " " + strconv.Itoa(counts[key])
		}
		out = append(out, enemy)
	}
	return out, nil
}
