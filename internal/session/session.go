// Package session implements GameSession, the owner of one campaign's story
// log, players and active encounter.
//
// A GameSession performs no I/O and takes no locks. Callers that run several
// sessions serialize actions per session; distinct sessions share nothing.
package session

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/core"
	toolkit "github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/encounter"
	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/clock"
)

const (
	// EntityType is reported through core.Entity
	EntityType = "session"

	// DefaultAutosaveInterval is used when Config leaves it unset
	DefaultAutosaveInterval = 3
)

// Config holds what a session needs to run
type Config struct {
	ID     string
	Name   string
	Clock  clock.Clock
	Roller toolkit.Roller
	// Triggers defaults to DefaultTriggers when nil. An empty non-nil slice
	// disables automatic rolls.
	Triggers         []Trigger
	AutosaveInterval int
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("id", c.ID, vb)
	errors.ValidateRequired("name", c.Name, vb)
	if c.Clock == nil {
		vb.RequiredField("clock")
	}
	if c.Roller == nil {
		vb.RequiredField("roller")
	}
	if c.AutosaveInterval < 0 {
		vb.Fieldf("autosave_interval", "must not be negative, got %d", c.AutosaveInterval)
	}
	return vb.Build()
}

// GameSession is one campaign
type GameSession struct {
	id        string
	name      string
	createdAt time.Time
	turnCount int
	location  string
	ended     bool

	players map[string]*entities.Character
	events  []entities.StoryEvent
	nextSeq int64
	active  *encounter.Encounter

	clock    clock.Clock
	roller   toolkit.Roller
	triggers []compiledTrigger
	autosave int
}

// ActionOutcome is what recording a player action produced
type ActionOutcome struct {
	Action entities.StoryEvent
	// Dice and Roll are set when the action matched a trigger
	Dice    *entities.StoryEvent
	Roll    *dice.RollResult
	SaveDue bool
}

// New starts an empty session
func New(cfg *Config) (*GameSession, error) {
	s, err := build(cfg)
	if err != nil {
		return nil, err
	}
	s.createdAt = s.clock.Now()
	s.nextSeq = 1
	return s, nil
}

func build(cfg *Config) (*GameSession, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session config")
	}

	triggers := cfg.Triggers
	if triggers == nil {
		triggers = DefaultTriggers()
	}
	compiled, err := compileTriggers(triggers)
	if err != nil {
		return nil, err
	}

	autosave := cfg.AutosaveInterval
	if autosave == 0 {
		autosave = DefaultAutosaveInterval
	}

	return &GameSession{
		id:       cfg.ID,
		name:     cfg.Name,
		players:  make(map[string]*entities.Character),
		clock:    cfg.Clock,
		roller:   cfg.Roller,
		triggers: compiled,
		autosave: autosave,
	}, nil
}

// GetID implements core.Entity
func (s *GameSession) GetID() string {
	return s.id
}

// GetType implements core.Entity
func (s *GameSession) GetType() string {
	return EntityType
}

// Name returns the campaign name
func (s *GameSession) Name() string {
	return s.name
}

// CreatedAt returns when the campaign started
func (s *GameSession) CreatedAt() time.Time {
	return s.createdAt
}

// TurnCount is the number of player actions recorded
func (s *GameSession) TurnCount() int {
	return s.turnCount
}

// SaveDue reports whether the autosave cadence has been reached. It depends
// only on the turn count.
func (s *GameSession) SaveDue() bool {
	return s.turnCount > 0 && s.turnCount%s.autosave == 0
}

// Location returns where the party is
func (s *GameSession) Location() string {
	return s.location
}

// SetLocation moves the party
func (s *GameSession) SetLocation(location string) {
	s.location = location
}

// Ended reports whether the campaign was closed
func (s *GameSession) Ended() bool {
	return s.ended
}

// End closes the campaign. The session stays loadable; further actions fail.
func (s *GameSession) End() (entities.StoryEvent, error) {
	if s.ended {
		return entities.StoryEvent{}, errors.SessionEnded(s.id)
	}
	ev := s.append(entities.ActorSystem, entities.KindSystem, fmt.Sprintf("The campaign %q has ended.", s.name))
	s.ended = true
	return ev, nil
}

// AddPlayer registers a character under a player id. The id is also the
// character's combatant id in encounters.
func (s *GameSession) AddPlayer(playerID string, character *entities.Character) error {
	if playerID == "" {
		return errors.InvalidArgument("player id is required")
	}
	if character == nil {
		return errors.InvalidArgument("character is required")
	}
	if err := character.Validate(); err != nil {
		return errors.Wrapf(err, "player %q", playerID)
	}
	if _, ok := s.players[playerID]; ok {
		return errors.Newf(errors.CodeAlreadyExists, "player %q already joined", playerID)
	}
	s.players[playerID] = character
	return nil
}

// Join adds a player to a running campaign and announces them in the story.
// A player joining mid-fight takes part from the next encounter.
func (s *GameSession) Join(playerID string, character *entities.Character) (entities.StoryEvent, error) {
	if s.ended {
		return entities.StoryEvent{}, errors.SessionEnded(s.id)
	}
	if err := s.AddPlayer(playerID, character); err != nil {
		return entities.StoryEvent{}, err
	}
	text := fmt.Sprintf("%s the level %d %s joins the party.", character.Name, character.Level, character.Class)
	return s.append(entities.ActorSystem, entities.KindSystem, text), nil
}

// PartyCombatants projects every player still standing into a combatant,
// in player id order
func (s *GameSession) PartyCombatants() []*entities.Combatant {
	var out []*entities.Combatant
	for _, id := range s.PlayerIDs() {
		if c := s.players[id]; c.HitPoints > 0 {
			out = append(out, c.ToCombatant(id))
		}
	}
	return out
}

// Player returns the live character sheet for a player
func (s *GameSession) Player(playerID string) (*entities.Character, bool) {
	c, ok := s.players[playerID]
	return c, ok
}

// PlayerIDs returns registered player ids in sorted order
func (s *GameSession) PlayerIDs() []string {
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// RecordPlayerAction appends a PLAYER event. When the text contains a trigger
// keyword (case-insensitive, first match in configured order) the trigger's
// dice are rolled and a DICE event follows immediately.
func (s *GameSession) RecordPlayerAction(actorID, text string) (*ActionOutcome, error) {
	if s.ended {
		return nil, errors.SessionEnded(s.id)
	}
	if _, ok := s.players[actorID]; !ok {
		return nil, errors.InvalidActor("unknown player %q", actorID)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.InvalidArgument("action text is required")
	}

	var roll *dice.RollResult
	if t, ok := match(s.triggers, text); ok {
		r, err := dice.Roll(t.expr, s.roller)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to roll for %q", t.keyword)
		}
		roll = r
	}

	s.turnCount++
	out := &ActionOutcome{
		Action: s.append(entities.ActorPlayer, entities.KindPlayerAction, text),
	}
	if roll != nil {
		ev := s.append(entities.ActorDice, entities.KindDiceRoll, roll.Description)
		out.Dice = &ev
		out.Roll = roll
	}
	out.SaveDue = s.SaveDue()
	return out, nil
}

// RecordRoll appends a DICE event for a roll the player asked for. It does
// not count as a turn.
func (s *GameSession) RecordRoll(roll *dice.RollResult) (entities.StoryEvent, error) {
	if s.ended {
		return entities.StoryEvent{}, errors.SessionEnded(s.id)
	}
	if roll == nil {
		return entities.StoryEvent{}, errors.InvalidArgument("roll is required")
	}
	return s.append(entities.ActorDice, entities.KindDiceRoll, roll.Description), nil
}

// RecordDMReply appends a DM event
func (s *GameSession) RecordDMReply(text string) entities.StoryEvent {
	return s.append(entities.ActorDM, entities.KindDMResponse, text)
}

// RecordSystem appends a SYSTEM event
func (s *GameSession) RecordSystem(kind entities.EventKind, text string) entities.StoryEvent {
	return s.append(entities.ActorSystem, kind, text)
}

// Events returns a copy of the whole log
func (s *GameSession) Events() []entities.StoryEvent {
	return slices.Clone(s.events)
}

// BuildContext returns the last limit events, oldest first. The log is not
// touched, so repeated calls return equal slices.
func (s *GameSession) BuildContext(limit int) []entities.StoryEvent {
	if limit <= 0 {
		return nil
	}
	start := max(0, len(s.events)-limit)
	return slices.Clone(s.events[start:])
}

// ContextSummaries renders BuildContext as generator context lines
func (s *GameSession) ContextSummaries(limit int) []string {
	window := s.BuildContext(limit)
	out := make([]string, len(window))
	for i, ev := range window {
		out[i] = ev.Summary()
	}
	return out
}

// MaybeStartEncounter attaches a new encounter built from combatants
func (s *GameSession) MaybeStartEncounter(name string, combatants []*entities.Combatant) (*encounter.Encounter, error) {
	if s.ended {
		return nil, errors.SessionEnded(s.id)
	}
	if s.active != nil {
		return nil, errors.EncounterActive(s.id)
	}

	enc, err := encounter.New(&encounter.Config{
		Name:       name,
		Combatants: combatants,
		Roller:     s.roller,
	})
	if err != nil {
		return nil, err
	}

	s.active = enc
	s.append(entities.ActorSystem, entities.KindCombat, fmt.Sprintf("Combat started: %s", enc.Name()))
	return enc, nil
}

// ActiveEncounter returns the running encounter, or nil
func (s *GameSession) ActiveEncounter() *encounter.Encounter {
	return s.active
}

// EndEncounterAndRecord detaches a finished encounter, copies player hit
// points back onto their sheets and appends a SYSTEM summary.
func (s *GameSession) EndEncounterAndRecord() (entities.StoryEvent, error) {
	if s.active == nil {
		return entities.StoryEvent{}, errors.FailedPrecondition("no active encounter")
	}
	if !s.active.IsTerminal() {
		return entities.StoryEvent{}, errors.FailedPreconditionf("encounter %q is still %s", s.active.Name(), s.active.State())
	}

	for id, character := range s.players {
		if cb, ok := s.active.Combatant(id); ok {
			character.SyncFrom(cb)
		}
	}

	ev := s.append(entities.ActorSystem, entities.KindCombat, s.active.Summary())
	s.active = nil
	return ev, nil
}

func (s *GameSession) append(actor entities.Actor, kind entities.EventKind, text string) entities.StoryEvent {
	ev := entities.StoryEvent{
		Sequence:  s.nextSeq,
		Timestamp: s.clock.Now(),
		Actor:     actor,
		Kind:      kind,
		Text:      text,
	}
	s.nextSeq++
	s.events = append(s.events, ev)
	return ev
}

var _ core.Entity = (*GameSession)(nil)
