package entities

import (
	"strings"

	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// DefaultWeaponDamage is used when a character has no weapon set
const DefaultWeaponDamage = "1d8"

// Character is a player's sheet. It lives on the session between fights and
// is projected into a Combatant when an encounter starts.
type Character struct {
	Name          string        `json:"name"`
	Class         string        `json:"class"`
	Level         int           `json:"level"`
	Experience    int           `json:"experience"`
	AbilityScores AbilityScores `json:"ability_scores"`
	HitPoints     int           `json:"hit_points"`
	MaxHitPoints  int           `json:"max_hit_points"`
	ArmorClass    int           `json:"armor_class"`
	WeaponDamage  string        `json:"weapon_damage"`
	Inventory     []string      `json:"inventory"`
	Gold          int           `json:"gold"`
	Conditions    []string      `json:"conditions,omitempty"`
}

// AbilityScores holds the six core ability scores
type AbilityScores struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`
}

// ScoresFromRolls maps rolled values onto abilities in sheet order
func ScoresFromRolls(rolls [6]int) AbilityScores {
	return AbilityScores{
		Strength:     rolls[0],
		Dexterity:    rolls[1],
		Constitution: rolls[2],
		Intelligence: rolls[3],
		Wisdom:       rolls[4],
		Charisma:     rolls[5],
	}
}

// Score returns the named ability score, ok is false for unknown names
func (a AbilityScores) Score(ability string) (int, bool) {
	switch strings.ToLower(ability) {
	case "strength", "str":
		return a.Strength, true
	case "dexterity", "dex":
		return a.Dexterity, true
	case "constitution", "con":
		return a.Constitution, true
	case "intelligence", "int":
		return a.Intelligence, true
	case "wisdom", "wis":
		return a.Wisdom, true
	case "charisma", "cha":
		return a.Charisma, true
	default:
		return 0, false
	}
}

var classHitDie = map[string]int{
	"barbarian": 12,
	"fighter":   10,
	"paladin":   10,
	"ranger":    10,
	"bard":      8,
	"cleric":    8,
	"druid":     8,
	"monk":      8,
	"rogue":     8,
	"warlock":   8,
	"sorcerer":  6,
	"wizard":    6,
}

// HitDie returns the class hit die, d8 for unknown classes
func HitDie(class string) int {
	if die, ok := classHitDie[strings.ToLower(class)]; ok {
		return die
	}
	return 8
}

// NewCharacter builds a level 1 character. Starting hit points are the class
// hit die plus the constitution modifier (at least 1); armor class is 10 plus
// the dexterity modifier.
func NewCharacter(name, class string, scores AbilityScores) *Character {
	maxHP := HitDie(class) + dice.AbilityModifier(scores.Constitution)
	if maxHP < 1 {
		maxHP = 1
	}

	return &Character{
		Name:          name,
		Class:         class,
		Level:         1,
		AbilityScores: scores,
		HitPoints:     maxHP,
		MaxHitPoints:  maxHP,
		ArmorClass:    10 + dice.AbilityModifier(scores.Dexterity),
		WeaponDamage:  DefaultWeaponDamage,
		Inventory:     []string{"Basic weapon", "Starting armor", "Adventurer's pack"},
		Gold:          100,
	}
}

// Modifier returns the modifier for the named ability
func (c *Character) Modifier(ability string) int {
	score, ok := c.AbilityScores.Score(ability)
	if !ok {
		return 0
	}
	return dice.AbilityModifier(score)
}

// AttackBonus is the strength modifier plus proficiency
func (c *Character) AttackBonus() int {
	return c.Modifier("strength") + proficiencyBonus(c.Level)
}

// ToCombatant projects the sheet into an encounter participant
func (c *Character) ToCombatant(id string) *Combatant {
	damage := c.WeaponDamage
	if damage == "" {
		damage = DefaultWeaponDamage
	}
	return &Combatant{
		ID:               id,
		Name:             c.Name,
		IsPlayer:         true,
		HitPoints:        c.HitPoints,
		MaxHitPoints:     c.MaxHitPoints,
		ArmorClass:       c.ArmorClass,
		AttackBonus:      c.AttackBonus(),
		DamageExpression: damage,
		InitiativeBonus:  c.Modifier("dexterity"),
	}
}

// Validate checks the sheet can be played
func (c *Character) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("name", c.Name, vb)
	if c.Level < 1 {
		vb.Fieldf("level", "must be at least 1, got %d", c.Level)
	}
	if c.MaxHitPoints < 1 {
		vb.Fieldf("max_hit_points", "must be at least 1, got %d", c.MaxHitPoints)
	}
	if c.HitPoints < 0 || c.HitPoints > c.MaxHitPoints {
		vb.Fieldf("hit_points", "must be between 0 and %d, got %d", c.MaxHitPoints, c.HitPoints)
	}
	if c.WeaponDamage != "" {
		if _, err := dice.Parse(c.WeaponDamage); err != nil {
			vb.InvalidField("weapon_damage", errors.GetMessage(err))
		}
	}
	return vb.Build()
}

// SyncFrom copies combat results back onto the sheet
func (c *Character) SyncFrom(cb *Combatant) {
	c.HitPoints = cb.HitPoints
	c.Conditions = append([]string(nil), cb.Conditions...)
}

// Rest restores hit points up to the maximum and returns the amount healed
func (c *Character) Rest(amount int) int {
	before := c.HitPoints
	c.HitPoints = min(c.MaxHitPoints, c.HitPoints+amount)
	return c.HitPoints - before
}

// AddItem appends an item to the inventory
func (c *Character) AddItem(item string) {
	c.Inventory = append(c.Inventory, item)
}

func proficiencyBonus(level int) int {
	if level < 1 {
		level = 1
	}
	return 2 + (level-1)/4
}
