package encounter

import (
	"slices"

	toolkit "github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// Data is the persisted form of an encounter. Combatants are stored in
// initiative order with their rolled initiative.
type Data struct {
	Name        string                `json:"name"`
	Combatants  []*entities.Combatant `json:"combatants"`
	CurrentTurn int                   `json:"current_turn_index"`
	Round       int                   `json:"round_number"`
	State       State                 `json:"state"`
	Log         []string              `json:"log,omitempty"`
}

// ToData snapshots the encounter
func (e *Encounter) ToData() *Data {
	return &Data{
		Name:        e.name,
		Combatants:  e.Combatants(),
		CurrentTurn: e.current,
		Round:       e.round,
		State:       e.state,
		Log:         slices.Clone(e.log),
	}
}

// FromData restores an encounter without re-rolling initiative. Snapshots
// that break the encounter's invariants are rejected with INVALID_ENCOUNTER.
func FromData(data *Data, roller toolkit.Roller) (*Encounter, error) {
	if data == nil {
		return nil, errors.InvalidEncounter("encounter data is missing")
	}
	if roller == nil {
		return nil, errors.InvalidArgument("roller is required")
	}
	if !data.State.Valid() {
		return nil, errors.InvalidEncounter("unknown encounter state %q", data.State)
	}
	if data.Round < 1 {
		return nil, errors.InvalidEncounter("round must be at least 1, got %d", data.Round)
	}
	if data.CurrentTurn < 0 || data.CurrentTurn >= len(data.Combatants) {
		return nil, errors.InvalidEncounter("turn index %d out of range", data.CurrentTurn)
	}

	seen := make(map[string]bool, len(data.Combatants))
	var players, enemies int
	order := make([]*entities.Combatant, len(data.Combatants))
	for i, cb := range data.Combatants {
		if cb == nil {
			return nil, errors.InvalidEncounter("combatant %d is missing", i)
		}
		if err := cb.Validate(); err != nil {
			return nil, errors.InvalidEncounter("combatant %q is invalid: %s", cb.ID, errors.GetMessage(err))
		}
		if seen[cb.ID] {
			return nil, errors.InvalidEncounter("duplicate combatant id %q", cb.ID)
		}
		seen[cb.ID] = true
		if cb.IsPlayer {
			players++
		} else {
			enemies++
		}
		order[i] = cb.Clone()
	}
	if players == 0 || enemies == 0 {
		return nil, errors.InvalidEncounter("encounter needs combatants on both sides")
	}

	e := &Encounter{
		name:    data.Name,
		roller:  roller,
		order:   order,
		current: data.CurrentTurn,
		round:   data.Round,
		state:   data.State,
		log:     slices.Clone(data.Log),
	}

	if e.state == StateActive {
		if e.order[e.current].IsDefeated() {
			return nil, errors.InvalidEncounter("turn points at defeated combatant %q", e.order[e.current].ID)
		}
		if e.CheckVictory() != StateActive {
			return nil, errors.InvalidEncounter("active encounter has a side with no one standing")
		}
	}
	return e, nil
}
