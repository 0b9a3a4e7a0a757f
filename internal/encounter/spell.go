package encounter

import (
	"slices"

	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// Spell describes what a cast does. Exactly one of Damage and Healing is set.
// Area spells may name several targets.
type Spell struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Damage  string `json:"damage,omitempty"`
	Healing string `json:"healing,omitempty"`
	Area    bool   `json:"area,omitempty"`
}

// Validate checks the spell is usable in combat
func (s *Spell) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("name", s.Name, vb)
	switch {
	case s.Damage == "" && s.Healing == "":
		vb.Field("effect", "spell needs damage or healing")
	case s.Damage != "" && s.Healing != "":
		vb.Field("effect", "spell cannot both damage and heal")
	}
	for field, notation := range map[string]string{"damage": s.Damage, "healing": s.Healing} {
		if notation == "" {
			continue
		}
		if _, err := dice.Parse(notation); err != nil {
			vb.InvalidField(field, errors.GetMessage(err))
		}
	}
	return vb.Build()
}

// IsHealing reports whether the spell restores hit points
func (s *Spell) IsHealing() bool {
	return s.Healing != ""
}

// SpellTarget is the effect of a spell on one combatant
type SpellTarget struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Amount    int    `json:"amount"`
	HitPoints int    `json:"hit_points"`
	Defeated  bool   `json:"defeated"`
}

// SpellResult is the outcome of one cast
type SpellResult struct {
	CasterID   string           `json:"caster_id"`
	Spell      string           `json:"spell"`
	Healing    bool             `json:"healing"`
	AttackRoll *dice.RollResult `json:"attack_roll,omitempty"`
	Hit        bool             `json:"hit"`
	EffectRoll *dice.RollResult `json:"effect_roll,omitempty"`
	Targets    []SpellTarget    `json:"targets"`
	Skipped    []string         `json:"skipped,omitempty"`
	State      State            `json:"state"`
}

// CastSpell resolves a spell from the current combatant.
//
// A non-area damage spell with a single valid target goes through the same
// pipeline as a weapon attack, with the spell's dice replacing the weapon
// damage. Area spells and damage spells with several valid targets make no
// attack roll: damage is rolled once
// and the same amount is applied to every valid target. Healing is rolled
// once and applied to every named ally, downed allies included. Targets that
// are not valid for the spell are skipped; a cast with no valid target fails.
func (e *Encounter) CastSpell(casterID string, spell *Spell, targetIDs []string) (*SpellResult, error) {
	caster, err := e.requireTurn(casterID)
	if err != nil {
		return nil, err
	}
	if spell == nil {
		return nil, errors.InvalidArgument("spell is required")
	}
	if err := spell.Validate(); err != nil {
		return nil, err
	}

	ids := uniqueIDs(targetIDs)
	if len(ids) == 0 {
		return nil, errors.InvalidActor("%s needs a target", spell.Name)
	}

	result := &SpellResult{
		CasterID: caster.ID,
		Spell:    spell.Name,
		Healing:  spell.IsHealing(),
		Hit:      true,
	}

	var targets []*entities.Combatant
	for _, id := range ids {
		target := e.find(id)
		if target == nil {
			return nil, errors.InvalidActor("unknown target %q", id)
		}
		if !validSpellTarget(caster, target, spell) {
			result.Skipped = append(result.Skipped, target.ID)
			continue
		}
		targets = append(targets, target)
	}
	if len(targets) == 0 {
		return nil, errors.InvalidActor("%s has no valid target", spell.Name)
	}

	if !spell.IsHealing() && !spell.Area && len(targets) == 1 {
		target := targets[0]
		attackRoll, err := dice.RollWithModifier(e.roller, 20, caster.AttackBonus)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to roll spell attack for %s", caster.Name)
		}
		result.AttackRoll = attackRoll
		result.Hit = attackRoll.Total >= target.ArmorClass
		if !result.Hit {
			e.logf("%s casts %s at %s and misses (%d vs AC %d)", caster.Name, spell.Name, target.Name, attackRoll.Total, target.ArmorClass)
			result.Targets = []SpellTarget{spellTarget(target, 0)}
			result.State = e.state
			return result, nil
		}
	}

	notation := spell.Damage
	if spell.IsHealing() {
		notation = spell.Healing
	}
	effect, err := dice.RollNotation(notation, e.roller)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to roll %s", spell.Name)
	}
	result.EffectRoll = effect
	amount := max(effect.Total, 0)

	defeated := false
	for _, target := range targets {
		if spell.IsHealing() {
			healed := target.Heal(amount)
			e.logf("%s casts %s on %s, restoring %d hit points", caster.Name, spell.Name, target.Name, healed)
			result.Targets = append(result.Targets, spellTarget(target, healed))
			continue
		}
		target.ApplyDamage(amount)
		e.logf("%s casts %s on %s for %d damage", caster.Name, spell.Name, target.Name, amount)
		if target.IsDefeated() {
			e.logf("%s is defeated", target.Name)
			defeated = true
		}
		result.Targets = append(result.Targets, spellTarget(target, amount))
	}

	if defeated {
		e.CheckVictory()
	}
	result.State = e.state
	return result, nil
}

func validSpellTarget(caster, target *entities.Combatant, spell *Spell) bool {
	if spell.IsHealing() {
		return target.Side() == caster.Side()
	}
	return target.Side() != caster.Side() && !target.IsDefeated()
}

func spellTarget(cb *entities.Combatant, amount int) SpellTarget {
	return SpellTarget{
		ID:        cb.ID,
		Name:      cb.Name,
		Amount:    amount,
		HitPoints: cb.HitPoints,
		Defeated:  cb.IsDefeated(),
	}
}

func uniqueIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
