package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KirkDiggler/rpg-dm/internal/encounter"
	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// Record is the persisted form of a session. Every field except Location,
// Ended, SavedAt and ActiveEncounter is required when decoding.
type Record struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	CreatedAt       time.Time             `json:"created_at"`
	SavedAt         time.Time             `json:"saved_at,omitempty"`
	TurnCount       int                   `json:"turn_count"`
	Location        string                `json:"location,omitempty"`
	Ended           bool                  `json:"ended,omitempty"`
	Players         []PlayerRecord        `json:"players"`
	EventLog        []entities.StoryEvent `json:"event_log"`
	ActiveEncounter *encounter.Data       `json:"active_encounter,omitempty"`
}

// PlayerRecord pairs a player id with their character sheet
type PlayerRecord struct {
	ID        string              `json:"id"`
	Character *entities.Character `json:"character"`
}

var (
	recordRequired = []string{"id", "name", "created_at", "turn_count", "players", "event_log"}
	eventRequired  = []string{"sequence_number", "timestamp", "actor", "kind", "text"}
	playerRequired = []string{"id", "character"}

	characterRequired = []string{
		"name", "class", "level", "ability_scores",
		"hit_points", "max_hit_points", "armor_class",
	}
	encounterRequired = []string{"name", "combatants", "current_turn_index", "round_number", "state"}
	combatantRequired = []string{
		"id", "name", "is_player", "hit_points", "max_hit_points",
		"armor_class", "attack_bonus", "damage_expression",
	}
)

// ToRecord snapshots the session. Players are ordered by id so the same
// state always encodes the same way.
func (s *GameSession) ToRecord() *Record {
	rec := &Record{
		ID:        s.id,
		Name:      s.name,
		CreatedAt: s.createdAt,
		SavedAt:   s.clock.Now(),
		TurnCount: s.turnCount,
		Location:  s.location,
		Ended:     s.ended,
		Players:   make([]PlayerRecord, 0, len(s.players)),
		EventLog:  s.Events(),
	}
	if rec.EventLog == nil {
		rec.EventLog = []entities.StoryEvent{}
	}
	for _, id := range s.PlayerIDs() {
		character := *s.players[id]
		rec.Players = append(rec.Players, PlayerRecord{ID: id, Character: &character})
	}
	if s.active != nil {
		rec.ActiveEncounter = s.active.ToData()
	}
	return rec
}

// Encode renders the record as indented JSON. Text is written as UTF-8
// without HTML escaping.
func (r *Record) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, errors.Wrap(err, "failed to encode session record")
	}
	return buf.Bytes(), nil
}

// DecodeRecord parses and checks a stored record. A missing required field,
// a value of the wrong type, an unknown actor or a sequence number that does
// not increase fails with CORRUPT_SESSION.
func DecodeRecord(data []byte) (*Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.CorruptSession("session record is not a JSON object: %v", err)
	}
	if err := requireKeys("session", raw, recordRequired); err != nil {
		return nil, err
	}

	var events []map[string]json.RawMessage
	if err := json.Unmarshal(raw["event_log"], &events); err != nil {
		return nil, errors.CorruptSession("event_log is malformed: %v", err)
	}
	for i, ev := range events {
		if err := requireKeys(fmt.Sprintf("event %d", i), ev, eventRequired); err != nil {
			return nil, err
		}
	}

	var players []map[string]json.RawMessage
	if err := json.Unmarshal(raw["players"], &players); err != nil {
		return nil, errors.CorruptSession("players is malformed: %v", err)
	}
	for i, p := range players {
		what := fmt.Sprintf("player %d", i)
		if err := requireKeys(what, p, playerRequired); err != nil {
			return nil, err
		}
		if err := requireObjectKeys(what+" character", p["character"], characterRequired); err != nil {
			return nil, err
		}
	}

	if err := checkEncounterKeys(raw["active_encounter"]); err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.CorruptSession("session record is malformed: %v", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Validate checks the record's invariants
func (r *Record) Validate() error {
	if r.ID == "" {
		return errors.CorruptSession("session id is empty")
	}
	if r.Name == "" {
		return errors.CorruptSession("session %s has no name", r.ID)
	}
	if r.CreatedAt.IsZero() {
		return errors.CorruptSession("session %s has no created_at", r.ID)
	}
	if r.TurnCount < 0 {
		return errors.CorruptSession("session %s has negative turn_count %d", r.ID, r.TurnCount)
	}

	seen := make(map[string]bool, len(r.Players))
	for i, p := range r.Players {
		if p.ID == "" || p.Character == nil {
			return errors.CorruptSession("player %d is incomplete", i)
		}
		if err := p.Character.Validate(); err != nil {
			return errors.CorruptSession("player %q has a broken character: %s", p.ID, errors.GetMessage(err))
		}
		if seen[p.ID] {
			return errors.CorruptSession("player %q appears twice", p.ID)
		}
		seen[p.ID] = true
	}

	var last int64
	for i, ev := range r.EventLog {
		if !ev.Actor.Valid() {
			return errors.CorruptSession("event %d has unknown actor %q", i, ev.Actor)
		}
		if ev.Kind == "" {
			return errors.CorruptSession("event %d has no kind", i)
		}
		if ev.Timestamp.IsZero() {
			return errors.CorruptSession("event %d has no timestamp", i)
		}
		if ev.Sequence <= last {
			return errors.CorruptSession("event %d has sequence %d after %d", i, ev.Sequence, last)
		}
		last = ev.Sequence
	}
	return nil
}

// FromRecord rebuilds a session from a record. cfg supplies the runtime
// collaborators; its ID and Name are taken from the record. No partial
// session is returned on failure.
func FromRecord(rec *Record, cfg *Config) (*GameSession, error) {
	if rec == nil {
		return nil, errors.CorruptSession("session record is missing")
	}
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	restore := *cfg
	restore.ID = rec.ID
	restore.Name = rec.Name
	s, err := build(&restore)
	if err != nil {
		return nil, err
	}

	s.createdAt = rec.CreatedAt
	s.turnCount = rec.TurnCount
	s.location = rec.Location
	s.ended = rec.Ended
	s.events = append([]entities.StoryEvent(nil), rec.EventLog...)
	s.nextSeq = 1
	if n := len(s.events); n > 0 {
		s.nextSeq = s.events[n-1].Sequence + 1
	}
	for _, p := range rec.Players {
		character := *p.Character
		s.players[p.ID] = &character
	}

	if rec.ActiveEncounter != nil {
		enc, err := encounter.FromData(rec.ActiveEncounter, s.roller)
		if err != nil {
			return nil, errors.CorruptSession("session %s has a broken encounter: %s", rec.ID, errors.GetMessage(err))
		}
		s.active = enc
	}
	return s, nil
}

func requireKeys(what string, raw map[string]json.RawMessage, keys []string) error {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			return errors.CorruptSession("%s is missing %q", what, key).WithMeta("field", key)
		}
	}
	return nil
}

func requireObjectKeys(what string, data json.RawMessage, keys []string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.CorruptSession("%s is malformed: %v", what, err)
	}
	return requireKeys(what, obj, keys)
}

// checkEncounterKeys accepts an absent or null encounter
func checkEncounterKeys(data json.RawMessage) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var enc map[string]json.RawMessage
	if err := json.Unmarshal(data, &enc); err != nil {
		return errors.CorruptSession("active_encounter is malformed: %v", err)
	}
	if err := requireKeys("active_encounter", enc, encounterRequired); err != nil {
		return err
	}
	var combatants []json.RawMessage
	if err := json.Unmarshal(enc["combatants"], &combatants); err != nil {
		return errors.CorruptSession("active_encounter combatants are malformed: %v", err)
	}
	for i, cb := range combatants {
		if err := requireObjectKeys(fmt.Sprintf("combatant %d", i), cb, combatantRequired); err != nil {
			return err
		}
	}
	return nil
}
