// Package entities provides the data structures shared by encounters and
// sessions.
package entities

import (
	"slices"

	"github.com/KirkDiggler/rpg-toolkit/core"

	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// Side groups combatants for victory checks
type Side string

const (
	SidePlayers Side = "players"
	SideEnemies Side = "enemies"
)

// Entity types reported through core.Entity
const (
	EntityTypePlayer = "player"
	EntityTypeEnemy  = "enemy"
)

// ConditionUnconscious is set on a combatant when it drops to 0 hit points
const ConditionUnconscious = "unconscious"

// Combatant is any participant in a fight. HitPoints stays within
// [0, MaxHitPoints]; a combatant at 0 is defeated but kept for display.
type Combatant struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	IsPlayer         bool     `json:"is_player"`
	HitPoints        int      `json:"hit_points"`
	MaxHitPoints     int      `json:"max_hit_points"`
	ArmorClass       int      `json:"armor_class"`
	AttackBonus      int      `json:"attack_bonus"`
	DamageExpression string   `json:"damage_expression"`
	InitiativeBonus  int      `json:"initiative_bonus"`
	Initiative       int      `json:"initiative"`
	Conditions       []string `json:"conditions,omitempty"`
}

// GetID implements core.Entity
func (c *Combatant) GetID() string {
	return c.ID
}

// GetType implements core.Entity
func (c *Combatant) GetType() string {
	if c.IsPlayer {
		return EntityTypePlayer
	}
	return EntityTypeEnemy
}

// Side returns which team the combatant fights for
func (c *Combatant) Side() Side {
	if c.IsPlayer {
		return SidePlayers
	}
	return SideEnemies
}

// IsDefeated reports whether the combatant is down
func (c *Combatant) IsDefeated() bool {
	return c.HitPoints <= 0
}

// Validate checks the combatant's invariants
func (c *Combatant) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("id", c.ID, vb)
	errors.ValidateRequired("name", c.Name, vb)
	if c.MaxHitPoints < 1 {
		vb.Fieldf("max_hit_points", "must be at least 1, got %d", c.MaxHitPoints)
	}
	if c.HitPoints < 0 || c.HitPoints > c.MaxHitPoints {
		vb.Fieldf("hit_points", "must be between 0 and %d, got %d", c.MaxHitPoints, c.HitPoints)
	}
	if _, err := dice.Parse(c.DamageExpression); err != nil {
		vb.InvalidField("damage_expression", errors.GetMessage(err))
	}
	return vb.Build()
}

// ApplyDamage lowers hit points, floored at 0, and returns the damage taken
func (c *Combatant) ApplyDamage(amount int) int {
	if amount <= 0 {
		return 0
	}
	taken := min(amount, c.HitPoints)
	c.HitPoints -= taken
	if c.HitPoints == 0 {
		c.AddCondition(ConditionUnconscious)
	}
	return taken
}

// Heal raises hit points, capped at the maximum, and returns the amount
// restored. Healing a downed combatant clears unconscious.
func (c *Combatant) Heal(amount int) int {
	if amount <= 0 {
		return 0
	}
	before := c.HitPoints
	c.HitPoints = min(c.MaxHitPoints, c.HitPoints+amount)
	if c.HitPoints > 0 {
		c.RemoveCondition(ConditionUnconscious)
	}
	return c.HitPoints - before
}

// AddCondition records a condition once
func (c *Combatant) AddCondition(condition string) {
	if !slices.Contains(c.Conditions, condition) {
		c.Conditions = append(c.Conditions, condition)
	}
}

// RemoveCondition clears a condition if present
func (c *Combatant) RemoveCondition(condition string) {
	c.Conditions = slices.DeleteFunc(c.Conditions, func(s string) bool { return s == condition })
	if len(c.Conditions) == 0 {
		c.Conditions = nil
	}
}

// Clone returns a deep copy
func (c *Combatant) Clone() *Combatant {
	cp := *c
	cp.Conditions = slices.Clone(c.Conditions)
	return &cp
}

var _ core.Entity = (*Combatant)(nil)
