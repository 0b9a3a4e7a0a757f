package game

import (
	"context"
	"log/slog"
	"strings"

	"github.com/KirkDiggler/rpg-toolkit/core"

	"github.com/KirkDiggler/rpg-dm/internal/encounter"
	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/session"
)

var combatPhrases = []string{
	"roll initiative",
	"combat begins",
	"attack you",
	"attacks you",
	"draws weapon",
	"draws a weapon",
	"hostile",
}

// startsCombat reports whether narration announces a fight
func startsCombat(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range combatPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (o *orchestrator) startEncounter(ctx context.Context, ls *liveSession, playerID string, templates []string) (*TurnOutcome, error) {
	s := ls.session
	if _, ok := s.Player(playerID); !ok {
		return nil, errors.InvalidActor("unknown player %q", playerID)
	}
	party := s.PartyCombatants()
	if len(party) == 0 {
		return nil, errors.FailedPrecondition("no one in the party is able to fight")
	}

	enemies, err := buildEnemies(templates)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(enemies))
	for i, e := range enemies {
		names[i] = e.Name
	}

	combatants := append(party, enemies...)
	enc, err := s.MaybeStartEncounter(strings.Join(names, " and "), combatants)
	if err != nil {
		return nil, err
	}
	ls.logged = 0
	o.syncCombatLog(ls)

	var actor core.Entity
	if cb, ok := enc.Combatant(playerID); ok {
		actor = cb
	}
	o.publish(ctx, EventEncounterStarted, s, actor, map[string]any{
		ContextKeySessionID: s.GetID(),
		ContextKeyText:      enc.Name(),
	})
	slog.Info("Encounter started",
		"session_id", s.GetID(),
		"encounter", enc.Name(),
		"combatants", len(combatants))

	return o.runEnemyTurns(ctx, ls)
}

func activeEncounter(s *session.GameSession) (*encounter.Encounter, error) {
	enc := s.ActiveEncounter()
	if enc == nil {
		return nil, errors.FailedPrecondition("there is no fight going on")
	}
	return enc, nil
}

func (o *orchestrator) Attack(ctx context.Context, input *AttackInput) (*AttackOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	ls, release, err := o.acquire(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	enc, err := activeEncounter(ls.session)
	if err != nil {
		return nil, err
	}
	result, err := enc.ResolveAttack(input.PlayerID, input.TargetID)
	if err != nil {
		return nil, err
	}
	o.publishAttack(ctx, ls, enc, result)

	turn, err := o.afterPlayerAction(ctx, ls, enc)
	if err != nil {
		return nil, err
	}
	return &AttackOutput{Result: result, Turn: turn}, nil
}

func (o *orchestrator) CastSpell(ctx context.Context, input *CastSpellInput) (*CastSpellOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	ls, release, err := o.acquire(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	enc, err := activeEncounter(ls.session)
	if err != nil {
		return nil, err
	}
	spell, err := o.spells.Lookup(ctx, input.Spell)
	if err != nil {
		return nil, err
	}

	targets := input.TargetIDs
	if len(targets) == 0 {
		targets = defaultSpellTargets(enc, input.PlayerID, spell)
	}
	result, err := enc.CastSpell(input.PlayerID, spell, targets)
	if err != nil {
		return nil, err
	}

	o.publish(ctx, EventSpellCast, ls.session, nil, map[string]any{
		ContextKeySessionID: ls.session.GetID(),
		ContextKeyText:      spell.Name,
		ContextKeyHit:       result.Hit,
		ContextKeyState:     string(result.State),
	})

	turn, err := o.afterPlayerAction(ctx, ls, enc)
	if err != nil {
		return nil, err
	}
	return &CastSpellOutput{Result: result, Turn: turn}, nil
}

// defaultSpellTargets picks targets when the player names none: healing goes
// to the caster, area damage to every standing enemy, single target damage
// to the first standing enemy in initiative order.
func defaultSpellTargets(enc *encounter.Encounter, casterID string, spell *encounter.Spell) []string {
	if spell.IsHealing() {
		return []string{casterID}
	}
	enemies := enc.Living(entities.SideEnemies)
	if len(enemies) == 0 {
		return nil
	}
	if !spell.Area {
		return []string{enemies[0].ID}
	}
	ids := make([]string, len(enemies))
	for i, e := range enemies {
		ids[i] = e.ID
	}
	return ids
}

func (o *orchestrator) EndTurn(ctx context.Context, input *EndTurnInput) (*EndTurnOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	ls, release, err := o.acquire(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	enc, err := activeEncounter(ls.session)
	if err != nil {
		return nil, err
	}
	if enc.IsTerminal() {
		return nil, errors.EncounterOver(enc.State())
	}
	if cur := enc.Current(); cur.ID != input.PlayerID {
		return nil, errors.InvalidActor("it is %s's turn", cur.Name)
	}

	turn, err := o.afterPlayerAction(ctx, ls, enc)
	if err != nil {
		return nil, err
	}
	return &EndTurnOutput{Turn: turn}, nil
}

func (o *orchestrator) Flee(ctx context.Context, input *FleeInput) (*FleeOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	ls, release, err := o.acquire(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	enc, err := activeEncounter(ls.session)
	if err != nil {
		return nil, err
	}
	if _, ok := enc.Combatant(input.PlayerID); !ok {
		return nil, errors.InvalidActor("%q is not in this fight", input.PlayerID)
	}
	if err := enc.Flee(); err != nil {
		return nil, err
	}

	summary, err := o.finishEncounter(ctx, ls, enc)
	if err != nil {
		return nil, err
	}
	return &FleeOutput{Summary: summary}, nil
}

// afterPlayerAction passes the turn on unless the fight is over, then lets
// enemies act until a player is up again
func (o *orchestrator) afterPlayerAction(ctx context.Context, ls *liveSession, enc *encounter.Encounter) (*TurnOutcome, error) {
	if !enc.IsTerminal() {
		if _, err := enc.AdvanceTurn(); err != nil {
			return nil, err
		}
	}
	return o.runEnemyTurns(ctx, ls)
}

// runEnemyTurns plays every enemy turn until a player is up or the fight is
// over. Each enemy attacks the standing player with the fewest hit points.
func (o *orchestrator) runEnemyTurns(ctx context.Context, ls *liveSession) (*TurnOutcome, error) {
	enc := ls.session.ActiveEncounter()
	if enc == nil {
		return nil, errors.FailedPrecondition("there is no fight going on")
	}

	turn := &TurnOutcome{}
	for !enc.IsTerminal() {
		cur := enc.Current()
		if cur.IsPlayer {
			break
		}

		target := weakest(enc.Living(entities.SidePlayers))
		if target == nil {
			enc.CheckVictory()
			break
		}
		result, err := enc.ResolveAttack(cur.ID, target.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "%s could not attack", cur.Name)
		}
		turn.EnemyAttacks = append(turn.EnemyAttacks, result)
		o.publishAttack(ctx, ls, enc, result)

		if enc.IsTerminal() {
			break
		}
		if _, err := enc.AdvanceTurn(); err != nil {
			return nil, err
		}
	}

	turn.Encounter = viewOf(enc)
	if enc.IsTerminal() {
		summary, err := o.finishEncounter(ctx, ls, enc)
		if err != nil {
			return nil, err
		}
		turn.Summary = &summary
	} else {
		o.syncCombatLog(ls)
	}
	return turn, nil
}

func (o *orchestrator) finishEncounter(ctx context.Context, ls *liveSession, enc *encounter.Encounter) (entities.StoryEvent, error) {
	s := ls.session
	o.syncCombatLog(ls)
	summary, err := s.EndEncounterAndRecord()
	if err != nil {
		return entities.StoryEvent{}, err
	}
	ls.logged = 0

	o.publish(ctx, EventEncounterEnded, s, nil, map[string]any{
		ContextKeySessionID: s.GetID(),
		ContextKeyState:     string(enc.State()),
		ContextKeyText:      summary.Text,
	})
	slog.Info("Encounter ended",
		"session_id", s.GetID(),
		"state", enc.State(),
		"rounds", enc.Round())
	return summary, nil
}

// syncCombatLog copies new encounter log lines into the story as combat events
func (o *orchestrator) syncCombatLog(ls *liveSession) {
	enc := ls.session.ActiveEncounter()
	if enc == nil {
		return
	}
	lines := enc.Log()
	for _, line := range lines[min(ls.logged, len(lines)):] {
		ls.session.RecordSystem(entities.KindCombat, line)
	}
	ls.logged = len(lines)
}

func (o *orchestrator) publishAttack(ctx context.Context, ls *liveSession, enc *encounter.Encounter, result *encounter.AttackResult) {
	var source, target core.Entity
	if cb, ok := enc.Combatant(result.AttackerID); ok {
		source = cb
	}
	if cb, ok := enc.Combatant(result.TargetID); ok {
		target = cb
	}
	o.publish(ctx, EventAttackResolved, source, target, map[string]any{
		ContextKeySessionID: ls.session.GetID(),
		ContextKeyHit:       result.Hit,
		ContextKeyDamage:    result.DamageDealt,
		ContextKeyState:     string(result.State),
	})
}

func weakest(players []*entities.Combatant) *entities.Combatant {
	var out *entities.Combatant
	for _, p := range players {
		if out == nil || p.HitPoints < out.HitPoints {
			out = p
		}
	}
	return out
}
