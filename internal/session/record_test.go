package session_test

import (
	"encoding/json"
	"strings"

	"github.com/KirkDiggler/rpg-dm/internal/encounter"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/session"
)

const unicodeText = "Der Drache 🐉 bewacht <den Hort> & das Café"

func (s *SessionTestSuite) restoreConfig() *session.Config {
	return &session.Config{Clock: s.clock, Roller: s.roller}
}

func (s *SessionTestSuite) playSomeTurns() {
	s.roller.Push(12)
	_, err := s.session.RecordPlayerAction("p1", "I search the altar")
	s.Require().NoError(err)
	s.session.RecordDMReply(unicodeText)
	s.session.SetLocation("Flooded crypt")
}

func (s *SessionTestSuite) TestRecordRoundTrip() {
	s.playSomeTurns()

	data, err := s.session.ToRecord().Encode()
	s.Require().NoError(err)
	s.Assert().Contains(string(data), unicodeText, "text is stored unescaped")

	rec, err := session.DecodeRecord(data)
	s.Require().NoError(err)
	loaded, err := session.FromRecord(rec, s.restoreConfig())
	s.Require().NoError(err)

	s.Assert().Equal(s.session.Events(), loaded.Events())
	s.Assert().Equal(s.session.TurnCount(), loaded.TurnCount())
	s.Assert().Equal(s.session.CreatedAt(), loaded.CreatedAt())
	s.Assert().Equal("Flooded crypt", loaded.Location())
	s.Assert().Equal(s.session.PlayerIDs(), loaded.PlayerIDs())

	want, _ := s.session.Player("p1")
	got, _ := loaded.Player("p1")
	s.Assert().Equal(want, got)
	s.Assert().NotSame(want, got)

	// sequence numbers continue from the stored log
	ev := loaded.RecordDMReply("The water rises.")
	s.Assert().Equal(int64(4), ev.Sequence)
}

func (s *SessionTestSuite) TestRecordRoundTripWithEncounter() {
	s.roller.Push(15, 5, 3)
	enc, err := s.session.MaybeStartEncounter("Ambush", s.party())
	s.Require().NoError(err)
	_, err = enc.ResolveAttack("p1", "goblin_1")
	s.Require().NoError(err)
	_, err = enc.AdvanceTurn()
	s.Require().NoError(err)

	data, err := s.session.ToRecord().Encode()
	s.Require().NoError(err)
	rec, err := session.DecodeRecord(data)
	s.Require().NoError(err)
	loaded, err := session.FromRecord(rec, s.restoreConfig())
	s.Require().NoError(err)

	restored := loaded.ActiveEncounter()
	s.Require().NotNil(restored)
	s.Assert().Equal(enc.ToData(), restored.ToData())
	s.Assert().Equal("goblin_1", restored.Current().ID)

	_, err = loaded.MaybeStartEncounter("Again", s.party())
	s.Assert().True(errors.IsEncounterActive(err))
}

func (s *SessionTestSuite) TestRecordWithoutEncounterOmitsIt() {
	data, err := s.session.ToRecord().Encode()
	s.Require().NoError(err)
	s.Assert().NotContains(string(data), "active_encounter")

	rec, err := session.DecodeRecord(data)
	s.Require().NoError(err)
	s.Assert().Nil(rec.ActiveEncounter)
	s.Assert().NotNil(rec.EventLog)
}

func (s *SessionTestSuite) TestDecodeRecordRejectsCorruption() {
	s.playSomeTurns()
	data, err := s.session.ToRecord().Encode()
	s.Require().NoError(err)

	testCases := []struct {
		name   string
		mutate func(doc map[string]any)
	}{
		{"missing id", func(doc map[string]any) { delete(doc, "id") }},
		{"missing name", func(doc map[string]any) { delete(doc, "name") }},
		{"missing created_at", func(doc map[string]any) { delete(doc, "created_at") }},
		{"missing turn_count", func(doc map[string]any) { delete(doc, "turn_count") }},
		{"missing event_log", func(doc map[string]any) { delete(doc, "event_log") }},
		{"null players", func(doc map[string]any) { doc["players"] = nil }},
		{"turn_count wrong type", func(doc map[string]any) { doc["turn_count"] = "three" }},
		{"negative turn_count", func(doc map[string]any) { doc["turn_count"] = -1 }},
		{"bad created_at", func(doc map[string]any) { doc["created_at"] = "yesterday" }},
		{"event missing actor", func(doc map[string]any) { delete(event(doc, 0), "actor") }},
		{"event missing text", func(doc map[string]any) { delete(event(doc, 1), "text") }},
		{"unknown actor", func(doc map[string]any) { event(doc, 0)["actor"] = "NARRATOR" }},
		{"repeated sequence", func(doc map[string]any) { event(doc, 1)["sequence_number"] = 1 }},
		{"player missing character", func(doc map[string]any) {
			delete(doc["players"].([]any)[0].(map[string]any), "character")
		}},
		{"empty character", func(doc map[string]any) {
			doc["players"].([]any)[0].(map[string]any)["character"] = map[string]any{}
		}},
		{"character missing hit_points", func(doc map[string]any) { delete(character(doc), "hit_points") }},
		{"character missing max_hit_points", func(doc map[string]any) { delete(character(doc), "max_hit_points") }},
		{"character missing armor_class", func(doc map[string]any) { delete(character(doc), "armor_class") }},
		{"character not an object", func(doc map[string]any) {
			doc["players"].([]any)[0].(map[string]any)["character"] = "Aria"
		}},
		{"character hit_points above max", func(doc map[string]any) { character(doc)["hit_points"] = 99 }},
		{"character negative hit_points", func(doc map[string]any) { character(doc)["hit_points"] = -1 }},
		{"character zero max_hit_points", func(doc map[string]any) {
			character(doc)["max_hit_points"] = 0
			character(doc)["hit_points"] = 0
		}},
	}
	s.assertCorrupt(data, testCases)
}

func (s *SessionTestSuite) TestDecodeRecordRejectsCorruptEncounter() {
	s.roller.Push(15, 5)
	_, err := s.session.MaybeStartEncounter("Ambush", s.party())
	s.Require().NoError(err)
	data, err := s.session.ToRecord().Encode()
	s.Require().NoError(err)

	testCases := []struct {
		name   string
		mutate func(doc map[string]any)
	}{
		{"encounter not an object", func(doc map[string]any) { doc["active_encounter"] = []any{} }},
		{"encounter missing combatants", func(doc map[string]any) { delete(activeEncounter(doc), "combatants") }},
		{"encounter missing state", func(doc map[string]any) { delete(activeEncounter(doc), "state") }},
		{"encounter missing round", func(doc map[string]any) { delete(activeEncounter(doc), "round_number") }},
		{"encounter missing turn index", func(doc map[string]any) { delete(activeEncounter(doc), "current_turn_index") }},
		{"combatant missing armor_class", func(doc map[string]any) { delete(combatant(doc, 0), "armor_class") }},
		{"combatant missing attack_bonus", func(doc map[string]any) { delete(combatant(doc, 1), "attack_bonus") }},
		{"combatant missing is_player", func(doc map[string]any) { delete(combatant(doc, 0), "is_player") }},
		{"combatant missing hit_points", func(doc map[string]any) { delete(combatant(doc, 1), "hit_points") }},
		{"combatant missing damage", func(doc map[string]any) { delete(combatant(doc, 0), "damage_expression") }},
	}
	s.assertCorrupt(data, testCases)

	// a null encounter is the same as none
	var doc map[string]any
	s.Require().NoError(json.Unmarshal(data, &doc))
	doc["active_encounter"] = nil
	cleared, err := json.Marshal(doc)
	s.Require().NoError(err)
	rec, err := session.DecodeRecord(cleared)
	s.Require().NoError(err)
	s.Assert().Nil(rec.ActiveEncounter)
}

func (s *SessionTestSuite) assertCorrupt(data []byte, testCases []struct {
	name   string
	mutate func(doc map[string]any)
}) {
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			var doc map[string]any
			s.Require().NoError(json.Unmarshal(data, &doc))
			tc.mutate(doc)
			broken, err := json.Marshal(doc)
			s.Require().NoError(err)

			rec, err := session.DecodeRecord(broken)
			s.Require().Error(err)
			s.Assert().Nil(rec)
			s.Assert().True(errors.IsCorruptSession(err), "got %v", err)
		})
	}
}

func (s *SessionTestSuite) TestDecodeRecordRejectsGarbage() {
	for _, input := range []string{"", "[]", "{not json", "null"} {
		_, err := session.DecodeRecord([]byte(input))
		s.Assert().True(errors.IsCorruptSession(err), "input %q", input)
	}
}

func (s *SessionTestSuite) TestFromRecordRejectsBrokenEncounter() {
	s.roller.Push(15, 5)
	_, err := s.session.MaybeStartEncounter("Ambush", s.party())
	s.Require().NoError(err)

	rec := s.session.ToRecord()
	rec.ActiveEncounter.State = encounter.State("PAUSED")

	loaded, err := session.FromRecord(rec, s.restoreConfig())
	s.Assert().Nil(loaded)
	s.Assert().True(errors.IsCorruptSession(err))
	s.Assert().True(strings.Contains(errors.GetMessage(err), "encounter"))
}

func character(doc map[string]any) map[string]any {
	return doc["players"].([]any)[0].(map[string]any)["character"].(map[string]any)
}

func activeEncounter(doc map[string]any) map[string]any {
	return doc["active_encounter"].(map[string]any)
}

func combatant(doc map[string]any, i int) map[string]any {
	return activeEncounter(doc)["combatants"].([]any)[i].(map[string]any)
}

func event(doc map[string]any, i int) map[string]any {
	return doc["event_log"].([]any)[i].(map[string]any)
}
