package encounter_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/encounter"
	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

type EncounterTestSuite struct {
	suite.Suite
	roller *dice.ScriptedRoller
}

func TestEncounterSuite(t *testing.T) {
	suite.Run(t, new(EncounterTestSuite))
}

func (s *EncounterTestSuite) SetupTest() {
	s.roller = dice.NewScriptedRoller()
}

func hero(hp int) *entities.Combatant {
	return &entities.Combatant{
		ID:               "hero",
		Name:             "Hero",
		IsPlayer:         true,
		HitPoints:        hp,
		MaxHitPoints:     10,
		ArmorClass:       12,
		AttackBonus:      0,
		DamageExpression: "1d6",
	}
}

func goblin(id string, hp int) *entities.Combatant {
	return &entities.Combatant{
		ID:               id,
		Name:             "Goblin " + id,
		HitPoints:        hp,
		MaxHitPoints:     10,
		ArmorClass:       12,
		AttackBonus:      4,
		DamageExpression: "1d6",
	}
}

func (s *EncounterTestSuite) start(combatants ...*entities.Combatant) *encounter.Encounter {
	enc, err := encounter.New(&encounter.Config{
		Name:       "Ambush",
		Combatants: combatants,
		Roller:     s.roller,
	})
	s.Require().NoError(err)
	return enc
}

func ids(cbs []*entities.Combatant) []string {
	out := make([]string, len(cbs))
	for i, cb := range cbs {
		out[i] = cb.ID
	}
	return out
}

func (s *EncounterTestSuite) TestNewRequiresBothSides() {
	testCases := []struct {
		name       string
		combatants []*entities.Combatant
	}{
		{"empty", nil},
		{"no enemies", []*entities.Combatant{hero(10)}},
		{"no players", []*entities.Combatant{goblin("g1", 7)}},
		{"only downed enemies", []*entities.Combatant{hero(10), goblin("g1", 0)}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := encounter.New(&encounter.Config{Combatants: tc.combatants, Roller: s.roller})
			s.Require().Error(err)
			s.Assert().True(errors.IsInvalidEncounter(err))
		})
	}
}

func (s *EncounterTestSuite) TestNewRejectsDuplicateIDs() {
	_, err := encounter.New(&encounter.Config{
		Combatants: []*entities.Combatant{hero(10), goblin("g1", 7), goblin("g1", 7)},
		Roller:     s.roller,
	})
	s.Assert().True(errors.IsInvalidEncounter(err))
}

func (s *EncounterTestSuite) TestInitiativeOrderIsStable() {
	s.roller.Push(10, 10, 10)
	enc := s.start(hero(10), goblin("g1", 7), goblin("g2", 7))
	s.Assert().Equal([]string{"hero", "g1", "g2"}, ids(enc.Combatants()))

	s.roller.Push(5, 10, 10)
	enc = s.start(hero(10), goblin("g1", 7), goblin("g2", 7))
	s.Assert().Equal([]string{"g1", "g2", "hero"}, ids(enc.Combatants()))
	s.Assert().Equal("g1", enc.Current().ID)
}

func (s *EncounterTestSuite) TestInitiativeIsReproducibleWithSeed() {
	build := func() []string {
		enc, err := encounter.New(&encounter.Config{
			Combatants: []*entities.Combatant{hero(10), goblin("g1", 7), goblin("g2", 7), goblin("g3", 7)},
			Roller:     dice.NewSeededRoller(99),
		})
		s.Require().NoError(err)
		return ids(enc.Combatants())
	}
	s.Assert().Equal(build(), build())
}

func (s *EncounterTestSuite) TestInitiativeAddsBonus() {
	h := hero(10)
	h.InitiativeBonus = 3
	s.roller.Push(8, 10)
	enc := s.start(h, goblin("g1", 7))

	s.Assert().Equal([]string{"hero", "g1"}, ids(enc.Combatants()))
	s.Assert().Equal(11, enc.Combatants()[0].Initiative)
}

func (s *EncounterTestSuite) TestResolveAttackHit() {
	s.roller.Push(15, 5, 15, 4)
	enc := s.start(hero(10), goblin("g1", 10))

	result, err := enc.ResolveAttack("hero", "g1")
	s.Require().NoError(err)
	s.Assert().True(result.Hit)
	s.Assert().Equal(15, result.RollTotal)
	s.Assert().Equal(4, result.DamageDealt)
	s.Assert().Equal(6, result.TargetHP)
	s.Assert().False(result.TargetDefeated)
	s.Assert().Equal(encounter.StateActive, result.State)

	g, ok := enc.Combatant("g1")
	s.Require().True(ok)
	s.Assert().Equal(6, g.HitPoints)
	s.Assert().Equal("hero", enc.Current().ID, "attacking does not advance the turn")
}

func (s *EncounterTestSuite) TestResolveAttackMissAtArmorClassMinusOne() {
	s.roller.Push(15, 5, 11)
	enc := s.start(hero(10), goblin("g1", 10))

	result, err := enc.ResolveAttack("hero", "g1")
	s.Require().NoError(err)
	s.Assert().False(result.Hit)
	s.Assert().Nil(result.DamageRoll)
	s.Assert().Equal(10, result.TargetHP)
	s.Assert().Zero(s.roller.Remaining())
}

func (s *EncounterTestSuite) TestResolveAttackHitsOnEqualArmorClass() {
	s.roller.Push(15, 5, 12, 1)
	enc := s.start(hero(10), goblin("g1", 10))

	result, err := enc.ResolveAttack("hero", "g1")
	s.Require().NoError(err)
	s.Assert().True(result.Hit)
}

func (s *EncounterTestSuite) TestResolveAttackInvalidActors() {
	s.roller.Push(15, 5, 1)
	enc := s.start(hero(10), goblin("g1", 10), goblin("g2", 0))

	testCases := []struct {
		name     string
		attacker string
		target   string
	}{
		{"out of turn", "g1", "hero"},
		{"unknown attacker", "nobody", "g1"},
		{"unknown target", "hero", "nobody"},
		{"defeated target", "hero", "g2"},
		{"self", "hero", "hero"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := enc.ResolveAttack(tc.attacker, tc.target)
			s.Require().Error(err)
			s.Assert().True(errors.IsInvalidActor(err), "got %v", err)
		})
	}
}

func (s *EncounterTestSuite) TestPlayersWinAfterDefeatingHit() {
	s.roller.Push(15, 5, 18, 5)
	enc := s.start(hero(10), goblin("g1", 3))

	result, err := enc.ResolveAttack("hero", "g1")
	s.Require().NoError(err)
	s.Assert().True(result.TargetDefeated)
	s.Assert().Equal(0, result.TargetHP)
	s.Assert().Equal(encounter.StatePlayersWon, result.State)
	s.Assert().Equal(encounter.StatePlayersWon, enc.State())
	s.Assert().True(enc.IsTerminal())

	_, err = enc.ResolveAttack("hero", "g1")
	s.Assert().True(errors.IsEncounterOver(err))
	_, err = enc.AdvanceTurn()
	s.Assert().True(errors.IsEncounterOver(err))
	s.Assert().True(errors.IsEncounterOver(enc.Flee()))
	s.Assert().Equal("Combat ended: the party defeated Goblin g1 in 1 round.", enc.Summary())
}

func (s *EncounterTestSuite) TestEnemiesWin() {
	s.roller.Push(5, 15, 10, 6)
	enc := s.start(hero(4), goblin("g1", 7))
	s.Require().Equal("g1", enc.Current().ID)

	result, err := enc.ResolveAttack("g1", "hero")
	s.Require().NoError(err)
	s.Assert().True(result.Hit)
	s.Assert().Equal(6, result.DamageDealt)
	s.Assert().Equal(0, result.TargetHP)
	s.Assert().Equal(encounter.StateEnemiesWon, result.State)
	s.Assert().Equal("Combat ended: the party fell to Goblin g1 after 1 round.", enc.Summary())
}

func (s *EncounterTestSuite) TestAdvanceTurnSkipsDefeatedAndCountsRounds() {
	s.roller.Push(20, 10, 5, 19, 6)
	enc := s.start(hero(10), goblin("g1", 3), goblin("g2", 7))
	s.Require().Equal([]string{"hero", "g1", "g2"}, ids(enc.Combatants()))

	result, err := enc.ResolveAttack("hero", "g1")
	s.Require().NoError(err)
	s.Require().True(result.TargetDefeated)
	s.Assert().Equal(encounter.StateActive, result.State)

	next, err := enc.AdvanceTurn()
	s.Require().NoError(err)
	s.Assert().Equal("g2", next.ID)
	s.Assert().Equal(1, enc.Round())

	next, err = enc.AdvanceTurn()
	s.Require().NoError(err)
	s.Assert().Equal("hero", next.ID)
	s.Assert().Equal(2, enc.Round())
	s.Assert().Equal("Combat in progress: round 2, Hero's turn.", enc.Summary())
}

func (s *EncounterTestSuite) TestFlee() {
	s.roller.Push(15, 5)
	enc := s.start(hero(10), goblin("g1", 7))

	s.Require().NoError(enc.Flee())
	s.Assert().Equal(encounter.StateFled, enc.State())
	s.Assert().Equal(encounter.StateFled, enc.CheckVictory())

	_, err := enc.ResolveAttack("hero", "g1")
	s.Assert().True(errors.IsEncounterOver(err))
	s.Assert().Equal("Combat ended: the party fled from Goblin g1 after 1 round.", enc.Summary())
}

func (s *EncounterTestSuite) TestAreaSpellRollsOnceForAllTargets() {
	s.roller.Push(20, 10, 5, 3, 4)
	enc := s.start(hero(10), goblin("g1", 10), goblin("g2", 5))

	result, err := enc.CastSpell("hero", &encounter.Spell{Name: "Burning Hands", Damage: "2d6", Area: true}, []string{"g1", "g2", "g1"})
	s.Require().NoError(err)
	s.Assert().Nil(result.AttackRoll)
	s.Require().Len(result.Targets, 2)
	s.Assert().Equal(7, result.Targets[0].Amount)
	s.Assert().Equal(7, result.Targets[1].Amount)
	s.Assert().Equal(3, result.Targets[0].HitPoints)
	s.Assert().True(result.Targets[1].Defeated)
	s.Assert().Equal(encounter.StateActive, result.State)
	s.Assert().Zero(s.roller.Remaining(), "one damage roll for every target")
}

func (s *EncounterTestSuite) TestAreaSpellSkipsInvalidTargets() {
	s.roller.Push(20, 10, 5, 6)
	enc := s.start(hero(10), goblin("g1", 10), goblin("g2", 0))

	result, err := enc.CastSpell("hero", &encounter.Spell{Name: "Thunderwave", Damage: "1d8", Area: true}, []string{"g1", "g2", "hero"})
	s.Require().NoError(err)
	s.Assert().Equal([]string{"g2", "hero"}, result.Skipped)
	s.Require().Len(result.Targets, 1)
	s.Assert().Equal(4, result.Targets[0].HitPoints)
}

func (s *EncounterTestSuite) TestAreaSpellDefeatingEveryoneWins() {
	s.roller.Push(20, 10, 5, 6, 6)
	enc := s.start(hero(10), goblin("g1", 5), goblin("g2", 5))

	result, err := enc.CastSpell("hero", &encounter.Spell{Name: "Fireball", Damage: "2d6", Area: true}, []string{"g1", "g2"})
	s.Require().NoError(err)
	s.Assert().Equal(encounter.StatePlayersWon, result.State)
}

func (s *EncounterTestSuite) TestSingleTargetSpellUsesAttackPipeline() {
	s.roller.Push(15, 5, 14, 9)
	enc := s.start(hero(10), goblin("g1", 10))

	result, err := enc.CastSpell("hero", &encounter.Spell{Name: "Fire Bolt", Damage: "1d10"}, []string{"g1"})
	s.Require().NoError(err)
	s.Require().NotNil(result.AttackRoll)
	s.Assert().True(result.Hit)
	s.Assert().Equal(1, result.Targets[0].HitPoints)

	s.roller.Push(2)
	_, err = enc.AdvanceTurn()
	s.Require().NoError(err)
	_, err = enc.AdvanceTurn()
	s.Require().NoError(err)

	miss, err := enc.CastSpell("hero", &encounter.Spell{Name: "Fire Bolt", Damage: "1d10"}, []string{"g1"})
	s.Require().NoError(err)
	s.Assert().False(miss.Hit)
	s.Assert().Nil(miss.EffectRoll)
	s.Assert().Zero(s.roller.Remaining())
}

func (s *EncounterTestSuite) TestSingleValidTargetUsesAttackPipeline() {
	s.roller.Push(15, 5, 14, 9)
	enc := s.start(hero(10), goblin("g1", 10))

	result, err := enc.CastSpell("hero", &encounter.Spell{Name: "Fire Bolt", Damage: "1d10"}, []string{"hero", "g1"})
	s.Require().NoError(err)
	s.Assert().Equal([]string{"hero"}, result.Skipped)
	s.Require().NotNil(result.AttackRoll)
	s.Assert().Equal([]int{14}, result.AttackRoll.Flatten())
	s.Require().Len(result.Targets, 1)
	s.Assert().Equal(1, result.Targets[0].HitPoints)
	s.Assert().Zero(s.roller.Remaining())
}

func (s *EncounterTestSuite) TestHealingSpell() {
	s.roller.Push(15, 5, 5)
	enc := s.start(hero(4), goblin("g1", 10))

	result, err := enc.CastSpell("hero", &encounter.Spell{Name: "Cure Wounds", Healing: "1d8"}, []string{"hero"})
	s.Require().NoError(err)
	s.Assert().True(result.Healing)
	s.Assert().Equal(5, result.Targets[0].Amount)
	s.Assert().Equal(9, result.Targets[0].HitPoints)

	_, err = enc.CastSpell("hero", &encounter.Spell{Name: "Cure Wounds", Healing: "1d8"}, []string{"g1"})
	s.Assert().True(errors.IsInvalidActor(err))
}

func (s *EncounterTestSuite) TestCastSpellValidation() {
	s.roller.Push(15, 5)
	enc := s.start(hero(10), goblin("g1", 10))

	_, err := enc.CastSpell("hero", &encounter.Spell{Name: "Nothing"}, []string{"g1"})
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = enc.CastSpell("hero", &encounter.Spell{Name: "Broken", Damage: "0d6"}, []string{"g1"})
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = enc.CastSpell("hero", &encounter.Spell{Name: "Fire Bolt", Damage: "1d10"}, nil)
	s.Assert().True(errors.IsInvalidActor(err))

	_, err = enc.CastSpell("g1", &encounter.Spell{Name: "Fire Bolt", Damage: "1d10"}, []string{"hero"})
	s.Assert().True(errors.IsInvalidActor(err))
}

func (s *EncounterTestSuite) TestDataRoundTrip() {
	s.roller.Push(20, 10, 5, 19, 6)
	enc := s.start(hero(10), goblin("g1", 3), goblin("g2", 7))
	_, err := enc.ResolveAttack("hero", "g1")
	s.Require().NoError(err)
	_, err = enc.AdvanceTurn()
	s.Require().NoError(err)

	restored, err := encounter.FromData(enc.ToData(), s.roller)
	s.Require().NoError(err)
	s.Assert().Equal(enc.Combatants(), restored.Combatants())
	s.Assert().Equal(enc.Current().ID, restored.Current().ID)
	s.Assert().Equal(enc.Round(), restored.Round())
	s.Assert().Equal(enc.State(), restored.State())
	s.Assert().Equal(enc.Log(), restored.Log())
	s.Assert().Equal(enc.ToData(), restored.ToData())
}

func (s *EncounterTestSuite) TestFromDataRejectsBrokenSnapshots() {
	s.roller.Push(20, 10)
	base := s.start(hero(10), goblin("g1", 7)).ToData()

	testCases := []struct {
		name   string
		mutate func(d *encounter.Data)
	}{
		{"bad state", func(d *encounter.Data) { d.State = "PAUSED" }},
		{"bad round", func(d *encounter.Data) { d.Round = 0 }},
		{"turn out of range", func(d *encounter.Data) { d.CurrentTurn = 5 }},
		{"turn on defeated", func(d *encounter.Data) { d.Combatants[0].HitPoints = 0 }},
		{"one side only", func(d *encounter.Data) { d.Combatants = d.Combatants[:1] }},
		{"bad combatant", func(d *encounter.Data) { d.Combatants[1].DamageExpression = "xd6" }},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			data := *base
			data.Combatants = make([]*entities.Combatant, len(base.Combatants))
			for i, cb := range base.Combatants {
				data.Combatants[i] = cb.Clone()
			}
			tc.mutate(&data)

			_, err := encounter.FromData(&data, s.roller)
			s.Require().Error(err)
			s.Assert().True(errors.IsInvalidEncounter(err), "got %v", err)
		})
	}
}
