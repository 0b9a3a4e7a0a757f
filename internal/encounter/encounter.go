// Package encounter implements turn-based combat: initiative order, a turn
// pointer, attack and spell resolution, and victory detection.
//
// An Encounter is not safe for concurrent use. It is owned by exactly one
// session, and callers serialize actions per session.
package encounter

import (
	"fmt"
	"slices"
	"strings"

	toolkit "github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// State is the lifecycle state of an encounter
type State string

const (
	StateActive     State = "ACTIVE"
	StatePlayersWon State = "PLAYERS_WON"
	StateEnemiesWon State = "ENEMIES_WON"
	StateFled       State = "FLED"
)

// String implements fmt.Stringer
func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether no further mutation is allowed
func (s State) IsTerminal() bool {
	return s == StatePlayersWon || s == StateEnemiesWon || s == StateFled
}

// Valid reports whether s is a known state
func (s State) Valid() bool {
	return s == StateActive || s.IsTerminal()
}

// Config holds what is needed to start an encounter
type Config struct {
	Name       string
	Combatants []*entities.Combatant
	Roller     toolkit.Roller
}

// Validate ensures the encounter can be built. Both sides need at least one
// combatant still standing.
func (c *Config) Validate() error {
	if c.Roller == nil {
		return errors.InvalidArgument("roller is required")
	}

	var players, enemies int
	seen := make(map[string]bool, len(c.Combatants))
	for i, cb := range c.Combatants {
		if cb == nil {
			return errors.InvalidEncounter("combatant %d is nil", i)
		}
		if err := cb.Validate(); err != nil {
			return errors.InvalidEncounter("combatant %q is invalid: %s", cb.ID, errors.GetMessage(err))
		}
		if seen[cb.ID] {
			return errors.InvalidEncounter("duplicate combatant id %q", cb.ID)
		}
		seen[cb.ID] = true
		if cb.IsDefeated() {
			continue
		}
		if cb.IsPlayer {
			players++
		} else {
			enemies++
		}
	}

	if players == 0 {
		return errors.InvalidEncounter("encounter needs at least one standing player combatant")
	}
	if enemies == 0 {
		return errors.InvalidEncounter("encounter needs at least one standing enemy combatant")
	}
	return nil
}

// Encounter is the combat state machine. States move from ACTIVE to one of
// PLAYERS_WON, ENEMIES_WON or FLED and never leave a terminal state.
type Encounter struct {
	name    string
	roller  toolkit.Roller
	order   []*entities.Combatant
	current int
	round   int
	state   State
	log     []string
}

// New rolls initiative (1d20 plus the combatant's bonus, once each) and sorts
// combatants highest first. The sort is stable, so equal totals keep the
// order the combatants were given in.
func New(cfg *Config) (*Encounter, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	order := make([]*entities.Combatant, len(cfg.Combatants))
	for i, cb := range cfg.Combatants {
		order[i] = cb.Clone()
	}

	e := &Encounter{
		name:   cfg.Name,
		roller: cfg.Roller,
		order:  order,
		round:  1,
		state:  StateActive,
	}
	if e.name == "" {
		e.name = "Encounter"
	}

	for _, cb := range e.order {
		roll, err := dice.RollWithModifier(e.roller, 20, cb.InitiativeBonus)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to roll initiative for %s", cb.Name)
		}
		cb.Initiative = roll.Total
		e.logf("%s rolls initiative: %s", cb.Name, roll.Description)
	}

	slices.SortStableFunc(e.order, func(a, b *entities.Combatant) int {
		return b.Initiative - a.Initiative
	})

	e.current = -1
	for i, cb := range e.order {
		if !cb.IsDefeated() {
			e.current = i
			break
		}
	}

	return e, nil
}

// Name returns the encounter's display name
func (e *Encounter) Name() string {
	return e.name
}

// State returns the current lifecycle state
func (e *Encounter) State() State {
	return e.state
}

// IsTerminal reports whether the encounter has finished
func (e *Encounter) IsTerminal() bool {
	return e.state.IsTerminal()
}

// Round returns the current round, starting at 1
func (e *Encounter) Round() int {
	return e.round
}

// Current returns a copy of the combatant whose turn it is
func (e *Encounter) Current() *entities.Combatant {
	return e.order[e.current].Clone()
}

// Combatants returns copies of all combatants in initiative order
func (e *Encounter) Combatants() []*entities.Combatant {
	out := make([]*entities.Combatant, len(e.order))
	for i, cb := range e.order {
		out[i] = cb.Clone()
	}
	return out
}

// Combatant returns a copy of the combatant with the given id
func (e *Encounter) Combatant(id string) (*entities.Combatant, bool) {
	cb := e.find(id)
	if cb == nil {
		return nil, false
	}
	return cb.Clone(), true
}

// Living returns copies of the standing combatants on one side, in
// initiative order
func (e *Encounter) Living(side entities.Side) []*entities.Combatant {
	var out []*entities.Combatant
	for _, cb := range e.order {
		if cb.Side() == side && !cb.IsDefeated() {
			out = append(out, cb.Clone())
		}
	}
	return out
}

// Log returns the combat log lines recorded so far
func (e *Encounter) Log() []string {
	return slices.Clone(e.log)
}

// AdvanceTurn moves the turn pointer to the next standing combatant. Passing
// the end of the order starts a new round. Callers invoke it explicitly after
// each action; resolving an attack never advances the turn.
func (e *Encounter) AdvanceTurn() (*entities.Combatant, error) {
	if e.state.IsTerminal() {
		return nil, errors.EncounterOver(e.state)
	}

	n := len(e.order)
	wrapped := false
	for step := 1; step <= n; step++ {
		if e.current+step >= n && !wrapped {
			wrapped = true
			e.round++
		}
		idx := (e.current + step) % n
		if !e.order[idx].IsDefeated() {
			e.current = idx
			return e.order[idx].Clone(), nil
		}
	}

	// an active encounter always has someone standing on each side
	return nil, errors.Internal("no standing combatant to take a turn")
}

// CheckVictory moves an active encounter to PLAYERS_WON when every enemy is
// down, or ENEMIES_WON when every player is down. Terminal states are left
// alone.
func (e *Encounter) CheckVictory() State {
	if e.state != StateActive {
		return e.state
	}

	playersStanding, enemiesStanding := false, false
	for _, cb := range e.order {
		if cb.IsDefeated() {
			continue
		}
		if cb.IsPlayer {
			playersStanding = true
		} else {
			enemiesStanding = true
		}
	}

	switch {
	case !enemiesStanding:
		e.state = StatePlayersWon
	case !playersStanding:
		e.state = StateEnemiesWon
	}
	if e.state.IsTerminal() {
		e.logf("Combat ends: %s", e.state)
	}
	return e.state
}

// Flee ends an active encounter immediately without a victory check
func (e *Encounter) Flee() error {
	if e.state.IsTerminal() {
		return errors.EncounterOver(e.state)
	}
	e.state = StateFled
	e.logf("The party flees from %s", e.name)
	return nil
}

// Summary describes the encounter outcome in one line
func (e *Encounter) Summary() string {
	enemies := e.names(func(cb *entities.Combatant) bool { return !cb.IsPlayer })
	rounds := pluralize(e.round, "round")

	switch e.state {
	case StatePlayersWon:
		return fmt.Sprintf("Combat ended: the party defeated %s in %s.", enemies, rounds)
	case StateEnemiesWon:
		standing := e.names(func(cb *entities.Combatant) bool { return !cb.IsPlayer && !cb.IsDefeated() })
		return fmt.Sprintf("Combat ended: the party fell to %s after %s.", standing, rounds)
	case StateFled:
		return fmt.Sprintf("Combat ended: the party fled from %s after %s.", enemies, rounds)
	default:
		return fmt.Sprintf("Combat in progress: round %d, %s's turn.", e.round, e.order[e.current].Name)
	}
}

func (e *Encounter) find(id string) *entities.Combatant {
	for _, cb := range e.order {
		if cb.ID == id {
			return cb
		}
	}
	return nil
}

func (e *Encounter) requireTurn(actorID string) (*entities.Combatant, error) {
	if e.state.IsTerminal() {
		return nil, errors.EncounterOver(e.state)
	}
	actor := e.find(actorID)
	if actor == nil {
		return nil, errors.InvalidActor("unknown combatant %q", actorID)
	}
	if cur := e.order[e.current]; cur.ID != actorID {
		return nil, errors.InvalidActor("it is %s's turn, not %s's", cur.Name, actor.Name)
	}
	return actor, nil
}

func (e *Encounter) names(keep func(*entities.Combatant) bool) string {
	var names []string
	for _, cb := range e.order {
		if keep(cb) {
			names = append(names, cb.Name)
		}
	}
	return strings.Join(names, ", ")
}

func (e *Encounter) logf(format string, args ...any) {
	e.log = append(e.log, fmt.Sprintf(format, args...))
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
