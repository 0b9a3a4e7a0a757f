package encounter

import (
	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// AttackResult is the outcome of one attack
type AttackResult struct {
	AttackerID     string           `json:"attacker_id"`
	TargetID       string           `json:"target_id"`
	Hit            bool             `json:"hit"`
	AttackRoll     *dice.RollResult `json:"attack_roll"`
	RollTotal      int              `json:"roll_total"`
	DamageRoll     *dice.RollResult `json:"damage_roll,omitempty"`
	DamageDealt    int              `json:"damage_dealt"`
	TargetHP       int              `json:"target_hp"`
	TargetDefeated bool             `json:"target_defeated"`
	State          State            `json:"state"`
}

// ResolveAttack has the current combatant attack a standing opponent. The
// attack roll is 1d20 plus the attacker's bonus and hits when it meets or
// beats the target's armor class. A hit rolls the attacker's damage and
// lowers the target's hit points, floored at 0. Defeating a target triggers a
// victory check.
func (e *Encounter) ResolveAttack(attackerID, targetID string) (*AttackResult, error) {
	attacker, err := e.requireTurn(attackerID)
	if err != nil {
		return nil, err
	}
	target, err := e.requireOpponent(attacker, targetID)
	if err != nil {
		return nil, err
	}

	attackRoll, err := dice.RollWithModifier(e.roller, 20, attacker.AttackBonus)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to roll attack for %s", attacker.Name)
	}

	result := &AttackResult{
		AttackerID: attacker.ID,
		TargetID:   target.ID,
		AttackRoll: attackRoll,
		RollTotal:  attackRoll.Total,
		Hit:        attackRoll.Total >= target.ArmorClass,
	}

	if !result.Hit {
		e.logf("%s attacks %s and misses (%d vs AC %d)", attacker.Name, target.Name, attackRoll.Total, target.ArmorClass)
	} else {
		damageRoll, err := dice.RollNotation(attacker.DamageExpression, e.roller)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to roll damage for %s", attacker.Name)
		}
		result.DamageRoll = damageRoll
		result.DamageDealt = max(damageRoll.Total, 0)
		target.ApplyDamage(result.DamageDealt)
		e.logf("%s hits %s for %d damage (%d vs AC %d)", attacker.Name, target.Name, result.DamageDealt, attackRoll.Total, target.ArmorClass)
	}

	result.TargetHP = target.HitPoints
	result.TargetDefeated = target.IsDefeated()
	if result.TargetDefeated {
		e.logf("%s is defeated", target.Name)
		e.CheckVictory()
	}
	result.State = e.state
	return result, nil
}

// requireOpponent resolves a target that the actor may attack: known, on the
// other side, and still standing.
func (e *Encounter) requireOpponent(actor *entities.Combatant, targetID string) (*entities.Combatant, error) {
	target := e.find(targetID)
	if target == nil {
		return nil, errors.InvalidActor("unknown target %q", targetID)
	}
	if target.Side() == actor.Side() {
		return nil, errors.InvalidActor("%s cannot attack ally %s", actor.Name, target.Name)
	}
	if target.IsDefeated() {
		return nil, errors.InvalidActor("%s is already defeated", target.Name)
	}
	return target, nil
}
