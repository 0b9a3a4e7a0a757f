package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/orchestrators/game"
)

type commandKind int

const (
	cmdAction commandKind = iota
	cmdHelp
	cmdRoll
	cmdStats
	cmdInventory
	cmdStatus
	cmdAttack
	cmdCast
	cmdEndTurn
	cmdFlee
	cmdSave
	cmdQuit
	cmdEmpty
)

// command is one parsed line of input
type command struct {
	kind    commandKind
	text    string
	arg     string
	targets []string
}

func parseCommand(line string) command {
	text := strings.TrimSpace(line)
	words := strings.Fields(text)
	if len(words) == 0 {
		return command{kind: cmdEmpty}
	}
	rest := strings.TrimSpace(text[len(words[0]):])

	switch strings.ToLower(words[0]) {
	case "help", "?":
		return command{kind: cmdHelp}
	case "roll":
		if rest == "" {
			return command{kind: cmdAction, text: text}
		}
		return command{kind: cmdRoll, arg: rest}
	case "stats":
		return command{kind: cmdStats}
	case "inventory", "inv":
		return command{kind: cmdInventory}
	case "status":
		return command{kind: cmdStatus}
	case "attack":
		// "attack the goblin with my axe" is narration, not a target id
		if len(words) <= 2 {
			return command{kind: cmdAttack, arg: rest}
		}
	case "cast":
		return parseCast(rest)
	case "end":
		if len(words) == 2 && strings.EqualFold(words[1], "turn") {
			return command{kind: cmdEndTurn}
		}
	case "flee", "run":
		if len(words) == 1 {
			return command{kind: cmdFlee}
		}
	case "save":
		return command{kind: cmdSave}
	case "quit", "exit":
		return command{kind: cmdQuit}
	}
	return command{kind: cmdAction, text: text}
}

// parseCast splits "fire bolt at goblin-1 goblin-2" into a spell and targets
func parseCast(rest string) command {
	words := strings.Fields(rest)
	for i, w := range words {
		if strings.EqualFold(w, "at") && i > 0 {
			return command{kind: cmdCast, arg: strings.Join(words[:i], " "), targets: words[i+1:]}
		}
	}
	return command{kind: cmdCast, arg: strings.Join(words, " ")}
}

const helpText = `Commands:
  help                         show this list
  roll XdY+Z                   roll dice, e.g. roll 2d6+3
  stats                        show your character sheet
  inventory                    show what you carry
  status                       show the campaign and any fight
  attack [target]              attack an enemy (first standing enemy by default)
  cast <spell> [at <targets>]  cast a spell, e.g. cast fire bolt at goblin-1
  end turn                     pass your turn in a fight
  flee                         run from a fight
  save                         save the campaign
  quit                         save and leave
Anything else is an action for the dungeon master.`

// repl reads commands and prints results until quit or end of input
type repl struct {
	service   game.Service
	sessionID string
	playerID  string
	in        io.Reader
	out       io.Writer
}

func (r *repl) run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	fmt.Fprint(r.out, "\n> ")
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			break
		}
		cmd := parseCommand(scanner.Text())
		if cmd.kind == cmdQuit {
			break
		}
		if err := r.dispatch(ctx, cmd); err != nil {
			slog.Debug("Command failed", "error", err)
			fmt.Fprintf(r.out, "⚠️  %s\n", errors.GetMessage(err))
		}
		fmt.Fprint(r.out, "\n> ")
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read input")
	}

	// a fresh context so an interrupt still saves
	saved, err := r.service.Save(context.WithoutCancel(ctx), &game.SaveInput{SessionID: r.sessionID})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "\n💾 Saved %q at turn %d. Resume with: dm play --resume %s\n", saved.Summary.Name, saved.Summary.TurnCount, r.sessionID)
	return nil
}

func (r *repl) dispatch(ctx context.Context, cmd command) error {
	switch cmd.kind {
	case cmdEmpty:
		return nil
	case cmdHelp:
		fmt.Fprintln(r.out, helpText)
		return nil
	case cmdRoll:
		return r.roll(ctx, cmd.arg)
	case cmdStats, cmdInventory, cmdStatus:
		return r.status(ctx, cmd.kind)
	case cmdAttack:
		return r.attack(ctx, cmd.arg)
	case cmdCast:
		return r.cast(ctx, cmd.arg, cmd.targets)
	case cmdEndTurn:
		out, err := r.service.EndTurn(ctx, &game.EndTurnInput{SessionID: r.sessionID, PlayerID: r.playerID})
		if err != nil {
			return err
		}
		printTurn(r.out, out.Turn)
		return nil
	case cmdFlee:
		out, err := r.service.Flee(ctx, &game.FleeInput{SessionID: r.sessionID, PlayerID: r.playerID})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "🏃 %s\n", out.Summary.Text)
		return nil
	case cmdSave:
		out, err := r.service.Save(ctx, &game.SaveInput{SessionID: r.sessionID})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "💾 Saved at turn %d.\n", out.Summary.TurnCount)
		return nil
	default:
		return r.action(ctx, cmd.text)
	}
}

func (r *repl) action(ctx context.Context, text string) error {
	out, err := r.service.TakeAction(ctx, &game.TakeActionInput{
		SessionID: r.sessionID,
		PlayerID:  r.playerID,
		Action:    text,
	})
	if err != nil {
		return err
	}

	if out.Roll != nil {
		fmt.Fprintf(r.out, "🎲 %s\n\n", out.Roll.Description)
	}
	fmt.Fprintln(r.out, out.Reply)
	if out.Turn != nil {
		fmt.Fprintln(r.out)
		printTurn(r.out, out.Turn)
	}
	if out.Saved {
		fmt.Fprintln(r.out, "\n💾 Autosaved.")
	}
	return nil
}

func (r *repl) roll(ctx context.Context, notation string) error {
	out, err := r.service.RollDice(ctx, &game.RollDiceInput{
		SessionID: r.sessionID,
		PlayerID:  r.playerID,
		Notation:  notation,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "🎲 %s\n", out.Roll.Description)
	return nil
}

func (r *repl) status(ctx context.Context, kind commandKind) error {
	out, err := r.service.GetStatus(ctx, &game.GetStatusInput{SessionID: r.sessionID, PlayerID: r.playerID})
	if err != nil {
		return err
	}

	switch kind {
	case cmdStats:
		printCharacter(r.out, out.Character)
	case cmdInventory:
		fmt.Fprintf(r.out, "🎒 Inventory (%d gold):\n", out.Character.Gold)
		for _, item := range out.Character.Inventory {
			fmt.Fprintf(r.out, "  - %s\n", item)
		}
	default:
		fmt.Fprintf(r.out, "📜 %s, turn %d\n", out.SessionName, out.TurnCount)
		if out.Location != "" {
			fmt.Fprintf(r.out, "Location: %s\n", out.Location)
		}
		fmt.Fprintf(r.out, "%s: %d/%d HP\n", out.Character.Name, out.Character.HitPoints, out.Character.MaxHitPoints)
		if out.Encounter != nil {
			printEncounter(r.out, out.Encounter)
		}
	}
	return nil
}

func (r *repl) attack(ctx context.Context, target string) error {
	targetID, err := r.resolveTarget(ctx, target)
	if err != nil {
		return err
	}

	out, err := r.service.Attack(ctx, &game.AttackInput{
		SessionID: r.sessionID,
		PlayerID:  r.playerID,
		TargetID:  targetID,
	})
	if err != nil {
		return err
	}

	res := out.Result
	if res.Hit {
		fmt.Fprintf(r.out, "⚔️  Hit! %s, %d damage. %s has %d HP left.\n", res.AttackRoll.Description, res.DamageDealt, res.TargetID, res.TargetHP)
	} else {
		fmt.Fprintf(r.out, "⚔️  Miss. %s\n", res.AttackRoll.Description)
	}
	printTurn(r.out, out.Turn)
	return nil
}

func (r *repl) cast(ctx context.Context, spell string, targets []string) error {
	if spell == "" {
		return errors.InvalidArgument("which spell? try: cast fire bolt")
	}
	out, err := r.service.CastSpell(ctx, &game.CastSpellInput{
		SessionID: r.sessionID,
		PlayerID:  r.playerID,
		Spell:     spell,
		TargetIDs: targets,
	})
	if err != nil {
		return err
	}

	res := out.Result
	if !res.Hit {
		fmt.Fprintf(r.out, "✨ %s misses.\n", res.Spell)
	}
	for _, t := range res.Targets {
		switch {
		case !res.Hit:
		case res.Healing:
			fmt.Fprintf(r.out, "✨ %s restores %d HP to %s (%d HP).\n", res.Spell, t.Amount, t.Name, t.HitPoints)
		default:
			fmt.Fprintf(r.out, "✨ %s deals %d damage to %s (%d HP).\n", res.Spell, t.Amount, t.Name, t.HitPoints)
		}
	}
	printTurn(r.out, out.Turn)
	return nil
}

// resolveTarget matches an enemy by id or name. An empty query picks the
// first standing enemy in initiative order.
func (r *repl) resolveTarget(ctx context.Context, query string) (string, error) {
	out, err := r.service.GetStatus(ctx, &game.GetStatusInput{SessionID: r.sessionID, PlayerID: r.playerID})
	if err != nil {
		return "", err
	}
	if out.Encounter == nil {
		return "", errors.FailedPrecondition("there is no fight going on")
	}
	for _, cb := range out.Encounter.Combatants {
		if cb.IsPlayer || cb.IsDefeated() {
			continue
		}
		if query == "" || strings.EqualFold(cb.ID, query) || strings.EqualFold(cb.Name, query) {
			return cb.ID, nil
		}
	}
	if query == "" {
		return "", errors.FailedPrecondition("no enemy is standing")
	}
	// let the encounter report the unknown target
	return query, nil
}

func printCharacter(out io.Writer, c *entities.Character) {
	s := c.AbilityScores
	fmt.Fprintf(out, "🧙 %s, level %d %s\n", c.Name, c.Level, c.Class)
	fmt.Fprintf(out, "HP %d/%d  AC %d  XP %d\n", c.HitPoints, c.MaxHitPoints, c.ArmorClass, c.Experience)
	fmt.Fprintf(out, "STR %d  DEX %d  CON %d  INT %d  WIS %d  CHA %d\n",
		s.Strength, s.Dexterity, s.Constitution, s.Intelligence, s.Wisdom, s.Charisma)
	if len(c.Conditions) > 0 {
		fmt.Fprintf(out, "Conditions: %s\n", strings.Join(c.Conditions, ", "))
	}
}

func printEncounter(out io.Writer, v *game.EncounterView) {
	fmt.Fprintf(out, "⚔️  %s, round %d\n", v.Name, v.Round)
	for _, cb := range v.Combatants {
		marker := "  "
		if cb.ID == v.CurrentID {
			marker = "▶ "
		}
		state := fmt.Sprintf("%d/%d HP", cb.HitPoints, cb.MaxHitPoints)
		if cb.IsDefeated() {
			state = "defeated"
		}
		fmt.Fprintf(out, "%s%-20s %-18s %s\n", marker, cb.Name, "["+cb.ID+"]", state)
	}
}

func printTurn(out io.Writer, turn *game.TurnOutcome) {
	if turn == nil {
		return
	}
	for _, atk := range turn.EnemyAttacks {
		if atk.Hit {
			fmt.Fprintf(out, "🗡️  %s hits you for %d damage (%d HP left).\n", atk.AttackerID, atk.DamageDealt, atk.TargetHP)
		} else {
			fmt.Fprintf(out, "🛡️  %s misses.\n", atk.AttackerID)
		}
	}
	if turn.Summary != nil {
		fmt.Fprintf(out, "🏁 %s\n", turn.Summary.Text)
		return
	}
	if turn.Encounter != nil {
		printEncounter(out, turn.Encounter)
	}
}
