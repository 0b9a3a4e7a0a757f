package game_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/rpg-dm/internal/clients/generator"
	generatormock "github.com/KirkDiggler/rpg-dm/internal/clients/generator/mock"
	"github.com/KirkDiggler/rpg-dm/internal/clients/spells"
	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/encounter"
	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/orchestrators/game"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/clock"
	mockclock "github.com/KirkDiggler/rpg-dm/internal/pkg/clock/mock"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/idgen"
	idgenmock "github.com/KirkDiggler/rpg-dm/internal/pkg/idgen/mock"
	"github.com/KirkDiggler/rpg-dm/internal/repositories/sessions"
	sessionsmock "github.com/KirkDiggler/rpg-dm/internal/repositories/sessions/mock"
)

const (
	testCampaign       = "The Lost Mine"
	testPlayerID       = "player-1"
	testSecondPlayerID = "player-2"
	testOpening        = "You wake in a damp cell."
)

// recordingBus keeps the type of every published event
type recordingBus struct {
	mu    sync.Mutex
	types []string
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, e.Type())
	return nil
}
func (b *recordingBus) Subscribe(_ string, _ events.Handler) string { return "sub-id" }
func (b *recordingBus) SubscribeFunc(_ string, _ int, _ events.HandlerFunc) string {
	return "sub-id"
}
func (b *recordingBus) Unsubscribe(_ string) error { return nil }
func (b *recordingBus) Clear(_ string)             {}
func (b *recordingBus) ClearAll()                  {}

func (b *recordingBus) published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.types...)
}

type OrchestratorTestSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	mockStore     *sessionsmock.MockRepository
	mockGenerator *generatormock.MockGenerator
	roller        *dice.ScriptedRoller
	bus           *recordingBus
	orchestrator  game.Service
	ctx           context.Context
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = sessionsmock.NewMockRepository(s.ctrl)
	s.mockGenerator = generatormock.NewMockGenerator(s.ctrl)
	s.roller = dice.NewScriptedRoller()
	s.bus = &recordingBus{}
	s.ctx = context.Background()
	s.orchestrator = s.newOrchestrator(s.mockStore)
}

func (s *OrchestratorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *OrchestratorTestSuite) newOrchestrator(store sessions.Repository) game.Service {
	orch, err := game.NewOrchestrator(&game.Config{
		Store:       store,
		Generator:   s.mockGenerator,
		Spells:      spells.NewStatic(),
		Clock:       clock.NewStepping(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), time.Second),
		IDGenerator: idgen.NewSequential("session"),
		Roller:      s.roller,
		EventBus:    s.bus,
	})
	s.Require().NoError(err)
	return orch
}

// testCharacter is a fighter with 12 hit points, AC 12, +5 to hit and +2
// initiative
func testCharacter() *entities.Character {
	return entities.NewCharacter("Aria", "fighter", entities.AbilityScores{
		Strength:     16,
		Dexterity:    14,
		Constitution: 14,
		Intelligence: 10,
		Wisdom:       10,
		Charisma:     10,
	})
}

func (s *OrchestratorTestSuite) startCampaign() string {
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(testOpening, nil)
	s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(&sessions.SaveOutput{}, nil)

	out, err := s.orchestrator.StartCampaign(s.ctx, &game.StartCampaignInput{
		Name:      testCampaign,
		PlayerID:  testPlayerID,
		Character: testCharacter(),
	})
	s.Require().NoError(err)
	return out.SessionID
}

// startFight begins a goblin fight through a story action. Initiative rolls
// are scripted by the caller.
func (s *OrchestratorTestSuite) startFight(sessionID string, playerInit, goblinInit int) *game.TakeActionOutput {
	s.roller.Push(playerInit, goblinInit)
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("A goblin blocks the road.", nil)

	out, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "I wave",
		Enemies:   []string{"goblin"},
	})
	s.Require().NoError(err)
	s.Require().NotNil(out.Encounter)
	return out
}

func (s *OrchestratorTestSuite) TestNewOrchestratorValidation() {
	_, err := game.NewOrchestrator(nil)
	s.True(errors.IsInvalidArgument(err))

	_, err = game.NewOrchestrator(&game.Config{Generator: s.mockGenerator})
	s.Require().Error(err)
	s.Contains(err.Error(), "Store")
}

func (s *OrchestratorTestSuite) TestStartCampaign() {
	var captured *generator.Request
	s.mockGenerator.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *generator.Request) (string, error) {
			captured = req
			return testOpening, nil
		})
	var saved sessions.SaveInput
	s.mockStore.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in sessions.SaveInput) (*sessions.SaveOutput, error) {
			saved = in
			return &sessions.SaveOutput{}, nil
		})

	out, err := s.orchestrator.StartCampaign(s.ctx, &game.StartCampaignInput{
		Name:      testCampaign,
		PlayerID:  testPlayerID,
		Character: testCharacter(),
	})
	s.Require().NoError(err)
	s.Equal("session_1", out.SessionID)
	s.Equal(testOpening, out.Opening)

	s.Require().NotNil(captured)
	s.Contains(captured.SystemPrompt, "Master Aldric the Wise")
	s.Contains(captured.Action, "Aria")
	s.Empty(captured.Context)

	s.Require().NotNil(saved.Record)
	s.Equal("session_1", saved.Record.ID)
	s.Equal(testCampaign, saved.Record.Name)
	s.Require().Len(saved.Record.EventLog, 2)
	s.Equal(entities.ActorSystem, saved.Record.EventLog[0].Actor)
	s.Equal(entities.ActorDM, saved.Record.EventLog[1].Actor)
	s.Contains(s.bus.published(), game.EventSessionSaved)
}

func (s *OrchestratorTestSuite) TestStartCampaignUsesInjectedIDAndClock() {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mockClock := mockclock.NewMockClock(s.ctrl)
	mockClock.EXPECT().Now().Return(now).AnyTimes()
	mockIDs := idgenmock.NewMockGenerator(s.ctrl)
	mockIDs.EXPECT().Generate().Return("campaign_fixed")

	orch, err := game.NewOrchestrator(&game.Config{
		Store:       s.mockStore,
		Generator:   s.mockGenerator,
		Spells:      spells.NewStatic(),
		Clock:       mockClock,
		IDGenerator: mockIDs,
		Roller:      s.roller,
	})
	s.Require().NoError(err)

	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(testOpening, nil)
	var saved sessions.SaveInput
	s.mockStore.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in sessions.SaveInput) (*sessions.SaveOutput, error) {
			saved = in
			return &sessions.SaveOutput{}, nil
		})

	out, err := orch.StartCampaign(s.ctx, &game.StartCampaignInput{
		Name:      testCampaign,
		PlayerID:  testPlayerID,
		Character: testCharacter(),
	})
	s.Require().NoError(err)
	s.Equal("campaign_fixed", out.SessionID)

	s.Require().NotNil(saved.Record)
	s.Equal(now, saved.Record.CreatedAt)
	for _, ev := range saved.Record.EventLog {
		s.Equal(now, ev.Timestamp)
	}
}

func (s *OrchestratorTestSuite) TestStartCampaignValidation() {
	_, err := s.orchestrator.StartCampaign(s.ctx, nil)
	s.True(errors.IsInvalidArgument(err))

	_, err = s.orchestrator.StartCampaign(s.ctx, &game.StartCampaignInput{PlayerID: testPlayerID})
	s.Require().Error(err)
	s.True(errors.IsInvalidArgument(err))
	s.Contains(err.Error(), "name")
}

func (s *OrchestratorTestSuite) TestStartCampaignGeneratorFailureAnswersOffline() {
	s.mockGenerator.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return("", errors.Unavailable("model offline"))
	var saved sessions.SaveInput
	s.mockStore.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in sessions.SaveInput) (*sessions.SaveOutput, error) {
			saved = in
			return &sessions.SaveOutput{}, nil
		})

	out, err := s.orchestrator.StartCampaign(s.ctx, &game.StartCampaignInput{
		Name:      testCampaign,
		PlayerID:  testPlayerID,
		Character: testCharacter(),
	})
	s.Require().NoError(err)
	s.Contains(out.Opening, "What do you do next?")

	s.Require().NotNil(saved.Record)
	s.Require().Len(saved.Record.EventLog, 2)
	s.Equal(entities.ActorDM, saved.Record.EventLog[1].Actor)
	s.Equal(out.Opening, saved.Record.EventLog[1].Text)
}

func (s *OrchestratorTestSuite) TestStartCampaignSaveFailureIsNotFatal() {
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(testOpening, nil)
	s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil, errors.Unavailable("disk full"))

	out, err := s.orchestrator.StartCampaign(s.ctx, &game.StartCampaignInput{
		Name:      testCampaign,
		PlayerID:  testPlayerID,
		Character: testCharacter(),
	})
	s.Require().NoError(err)
	s.Equal("session_1", out.SessionID)
}

// testCleric has 10 hit points, AC 10, +4 to hit and no initiative bonus
func testCleric() *entities.Character {
	return entities.NewCharacter("Borin", "cleric", entities.AbilityScores{
		Strength:     14,
		Dexterity:    10,
		Constitution: 14,
		Intelligence: 10,
		Wisdom:       16,
		Charisma:     12,
	})
}

func (s *OrchestratorTestSuite) joinCleric(sessionID string) {
	s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(&sessions.SaveOutput{}, nil)
	out, err := s.orchestrator.JoinCampaign(s.ctx, &game.JoinCampaignInput{
		SessionID: sessionID,
		PlayerID:  testSecondPlayerID,
		Character: testCleric(),
	})
	s.Require().NoError(err)
	s.Equal([]string{testPlayerID, testSecondPlayerID}, out.PlayerIDs)
	s.Equal("Borin the level 1 cleric joins the party.", out.Event.Text)
}

func (s *OrchestratorTestSuite) TestJoinCampaignValidation() {
	sessionID := s.startCampaign()

	_, err := s.orchestrator.JoinCampaign(s.ctx, nil)
	s.True(errors.IsInvalidArgument(err))

	_, err = s.orchestrator.JoinCampaign(s.ctx, &game.JoinCampaignInput{SessionID: sessionID, PlayerID: testSecondPlayerID})
	s.Require().Error(err)
	s.True(errors.IsInvalidArgument(err))
	s.Contains(err.Error(), "character")

	_, err = s.orchestrator.JoinCampaign(s.ctx, &game.JoinCampaignInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Character: testCleric(),
	})
	s.Equal(errors.CodeAlreadyExists, errors.GetCode(err))
}

func (s *OrchestratorTestSuite) TestPartyFightsTogether() {
	sessionID := s.startCampaign()
	s.joinCleric(sessionID)

	// initiative: Aria 15+2, Borin 10, goblin 5+2
	s.roller.Push(15, 10, 5)
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("A goblin blocks the road.", nil)
	start, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testSecondPlayerID,
		Action:    "I raise my holy symbol",
		Enemies:   []string{"goblin"},
	})
	s.Require().NoError(err)
	s.Require().NotNil(start.Encounter)
	s.Require().Len(start.Encounter.Combatants, 3)
	s.Equal(testPlayerID, start.Encounter.Combatants[0].ID)
	s.Equal(testSecondPlayerID, start.Encounter.Combatants[1].ID)
	s.Equal("goblin-1", start.Encounter.Combatants[2].ID)
	s.Equal(testPlayerID, start.Encounter.CurrentID)

	// Aria misses and the turn passes to Borin, not to the goblin
	s.roller.Push(3)
	miss, err := s.orchestrator.Attack(s.ctx, &game.AttackInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		TargetID:  "goblin-1",
	})
	s.Require().NoError(err)
	s.False(miss.Result.Hit)
	s.Empty(miss.Turn.EnemyAttacks)
	s.Equal(testSecondPlayerID, miss.Turn.Encounter.CurrentID)

	_, err = s.orchestrator.Attack(s.ctx, &game.AttackInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		TargetID:  "goblin-1",
	})
	s.True(errors.IsInvalidActor(err))

	// 15+4 hits AC 15, then 7 damage drops the goblin
	s.roller.Push(15, 7)
	hit, err := s.orchestrator.Attack(s.ctx, &game.AttackInput{
		SessionID: sessionID,
		PlayerID:  testSecondPlayerID,
		TargetID:  "goblin-1",
	})
	s.Require().NoError(err)
	s.True(hit.Result.Hit)
	s.Equal(19, hit.Result.RollTotal)
	s.Require().NotNil(hit.Turn.Summary)
	s.Equal("Combat ended: the party defeated Goblin in 1 round.", hit.Turn.Summary.Text)
	s.Equal(0, s.roller.Remaining())

	status, err := s.orchestrator.GetStatus(s.ctx, &game.GetStatusInput{SessionID: sessionID, PlayerID: testSecondPlayerID})
	s.Require().NoError(err)
	s.Nil(status.Encounter)
	s.Equal(10, status.Character.HitPoints)
}

func (s *OrchestratorTestSuite) TestEnemyTargetsWeakestPartyMember() {
	sessionID := s.startCampaign()
	s.joinCleric(sessionID)

	// goblin goes first and hits the cleric: 18+4 against AC 10, 6+2 damage
	s.roller.Push(2, 3, 20, 18, 6)
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("A goblin blocks the road.", nil)
	start, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "I wave",
		Enemies:   []string{"goblin"},
	})
	s.Require().NoError(err)
	s.Require().NotNil(start.Turn)
	s.Require().Len(start.Turn.EnemyAttacks, 1)
	s.Equal(testSecondPlayerID, start.Turn.EnemyAttacks[0].TargetID, "the goblin picks the weaker player")
	s.Equal(2, start.Turn.EnemyAttacks[0].TargetHP)

	_, err = s.orchestrator.Flee(s.ctx, &game.FleeInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.Require().NoError(err)

	cleric, err := s.orchestrator.GetStatus(s.ctx, &game.GetStatusInput{SessionID: sessionID, PlayerID: testSecondPlayerID})
	s.Require().NoError(err)
	s.Equal(2, cleric.Character.HitPoints)
}

func (s *OrchestratorTestSuite) TestTakeActionRollsForTrigger() {
	sessionID := s.startCampaign()
	s.roller.Push(14)

	var captured *generator.Request
	s.mockGenerator.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *generator.Request) (string, error) {
			captured = req
			return "You find a silver key.", nil
		})

	out, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "  I search the room ",
	})
	s.Require().NoError(err)

	s.Equal("I search the room", out.Action.Text)
	s.Equal(entities.ActorPlayer, out.Action.Actor)
	s.Require().NotNil(out.Roll)
	s.Equal(14, out.Roll.Total)
	s.Require().NotNil(out.Dice)
	s.Equal("1d20: [14] = 14", out.Dice.Text)
	s.Equal(out.Action.Sequence+1, out.Dice.Sequence)
	s.Equal("You find a silver key.", out.Reply)
	s.Nil(out.Encounter)
	s.Nil(out.Turn)
	s.False(out.Saved)

	s.Require().NotNil(captured)
	s.Equal("I search the room", captured.Action)
	s.Equal([]string{
		`System: Aria the level 1 fighter begins the adventure "The Lost Mine".`,
		"DM: " + testOpening,
	}, captured.Context)
	s.Require().NotNil(captured.Dice)
	s.Equal(14, captured.Dice.Total)
}

func (s *OrchestratorTestSuite) TestTakeActionWithoutTrigger() {
	sessionID := s.startCampaign()
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("The bard smiles back.", nil)

	out, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "I wave at the bard",
	})
	s.Require().NoError(err)
	s.Nil(out.Roll)
	s.Nil(out.Dice)
	s.Equal(0, s.roller.Remaining())
}

func (s *OrchestratorTestSuite) TestTakeActionValidation() {
	sessionID := s.startCampaign()

	_, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "   ",
	})
	s.True(errors.IsInvalidArgument(err))

	_, err = s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  "stranger",
		Action:    "I wave",
	})
	s.True(errors.IsInvalidActor(err))

	_, err = s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "I wave",
		Enemies:   []string{"beholder"},
	})
	s.True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestTakeActionAutosaves() {
	sessionID := s.startCampaign()
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("Nothing happens.", nil).Times(3)

	var saved sessions.SaveInput
	s.mockStore.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in sessions.SaveInput) (*sessions.SaveOutput, error) {
			saved = in
			return &sessions.SaveOutput{}, nil
		})

	for i, action := range []string{"I wave", "I sing", "I dance"} {
		out, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
			SessionID: sessionID,
			PlayerID:  testPlayerID,
			Action:    action,
		})
		s.Require().NoError(err)
		s.Equal(i == 2, out.Saved, "action %d", i)
	}

	s.Require().NotNil(saved.Record)
	s.Equal(3, saved.Record.TurnCount)
}

func (s *OrchestratorTestSuite) TestTakeActionGeneratorFailure() {
	sessionID := s.startCampaign()
	gomock.InOrder(
		s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("Nothing happens.", nil),
		s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("   ", nil),
		s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", errors.Unavailable("model offline")),
	)
	var saved sessions.SaveInput
	s.mockStore.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in sessions.SaveInput) (*sessions.SaveOutput, error) {
			saved = in
			return &sessions.SaveOutput{}, nil
		})

	var replies []string
	var last *game.TakeActionOutput
	for _, action := range []string{"I wave", "I sing", "I dance"} {
		out, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
			SessionID: sessionID,
			PlayerID:  testPlayerID,
			Action:    action,
		})
		s.Require().NoError(err)
		replies = append(replies, out.Reply)
		last = out
	}

	s.Equal("Nothing happens.", replies[0])
	s.Contains(replies[1], "What do you do next?")
	s.Contains(replies[2], "What do you do next?")
	s.True(last.Saved, "autosave still runs on the turn the generator failed")

	s.Require().NotNil(saved.Record)
	s.Equal(3, saved.Record.TurnCount)
	final := saved.Record.EventLog[len(saved.Record.EventLog)-1]
	s.Equal(entities.ActorDM, final.Actor)
	s.Equal(replies[2], final.Text)
}

func (s *OrchestratorTestSuite) TestTakeActionAutosaveFailureIsNotFatal() {
	sessionID := s.startCampaign()
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("Nothing happens.", nil).Times(3)
	s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil, errors.Unavailable("disk full"))

	var last *game.TakeActionOutput
	for _, action := range []string{"I wave", "I sing", "I dance"} {
		out, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
			SessionID: sessionID,
			PlayerID:  testPlayerID,
			Action:    action,
		})
		s.Require().NoError(err)
		last = out
	}
	s.False(last.Saved)
}

func (s *OrchestratorTestSuite) TestTakeActionStartsFightFromReply() {
	sessionID := s.startCampaign()
	s.roller.Push(20, 1)
	s.mockGenerator.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		Return("Two orcs burst through the door. Roll initiative!", nil)

	out, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "I wave",
	})
	s.Require().NoError(err)

	s.Require().NotNil(out.Encounter)
	s.Equal("Orc", out.Encounter.Name)
	s.Equal(encounter.StateActive, out.Encounter.State)
	s.Equal(testPlayerID, out.Encounter.CurrentID)
	s.Require().Len(out.Encounter.Combatants, 2)
	s.Equal("orc-1", out.Encounter.Combatants[1].ID)

	s.Require().NotNil(out.Turn)
	s.Empty(out.Turn.EnemyAttacks)
	s.Nil(out.Turn.Summary)
	s.Contains(s.bus.published(), game.EventEncounterStarted)
}

func (s *OrchestratorTestSuite) TestTakeActionDefaultsToGoblin() {
	sessionID := s.startCampaign()
	s.roller.Push(20, 1)
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("Something hostile stirs in the dark.", nil)

	out, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "I wave",
	})
	s.Require().NoError(err)
	s.Require().NotNil(out.Encounter)
	s.Equal("Goblin", out.Encounter.Name)
}

func (s *OrchestratorTestSuite) TestTakeActionKeepsRunningFight() {
	sessionID := s.startCampaign()
	s.startFight(sessionID, 15, 5)

	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("More goblins are hostile too.", nil)
	out, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "I shout a challenge",
	})
	s.Require().NoError(err)
	s.Nil(out.Turn)
	s.Require().NotNil(out.Encounter)
	s.Equal("Goblin", out.Encounter.Name)
}

func (s *OrchestratorTestSuite) TestAttackWinsFight() {
	sessionID := s.startCampaign()
	start := s.startFight(sessionID, 15, 5)
	s.Equal(testPlayerID, start.Encounter.CurrentID)

	// 15+5 hits AC 15, then 7 damage drops the goblin
	s.roller.Push(15, 7)
	out, err := s.orchestrator.Attack(s.ctx, &game.AttackInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		TargetID:  "goblin-1",
	})
	s.Require().NoError(err)

	s.True(out.Result.Hit)
	s.Equal(20, out.Result.RollTotal)
	s.Equal(7, out.Result.DamageDealt)
	s.True(out.Result.TargetDefeated)
	s.Equal(encounter.StatePlayersWon, out.Result.State)

	s.Require().NotNil(out.Turn)
	s.Empty(out.Turn.EnemyAttacks)
	s.Require().NotNil(out.Turn.Summary)
	s.Equal("Combat ended: the party defeated Goblin in 1 round.", out.Turn.Summary.Text)
	s.Equal(encounter.StatePlayersWon, out.Turn.Encounter.State)
	s.Equal(0, s.roller.Remaining())

	status, err := s.orchestrator.GetStatus(s.ctx, &game.GetStatusInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.Require().NoError(err)
	s.Nil(status.Encounter)
	s.Equal(12, status.Character.HitPoints)

	published := s.bus.published()
	s.Contains(published, game.EventAttackResolved)
	s.Contains(published, game.EventEncounterEnded)
}

func (s *OrchestratorTestSuite) TestAttackMissPassesTurnToEnemy() {
	sessionID := s.startCampaign()
	s.startFight(sessionID, 15, 5)

	// player misses with 2+5, goblin then misses with 1+4
	s.roller.Push(2, 1)
	out, err := s.orchestrator.Attack(s.ctx, &game.AttackInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		TargetID:  "goblin-1",
	})
	s.Require().NoError(err)
	s.False(out.Result.Hit)
	s.Require().Len(out.Turn.EnemyAttacks, 1)
	s.Equal("goblin-1", out.Turn.EnemyAttacks[0].AttackerID)
	s.False(out.Turn.EnemyAttacks[0].Hit)
	s.Equal(testPlayerID, out.Turn.Encounter.CurrentID)
	s.Equal(2, out.Turn.Encounter.Round)
}

func (s *OrchestratorTestSuite) TestEnemyActsFirstThenFlee() {
	sessionID := s.startCampaign()

	// goblin wins initiative, hits with 10+4 and deals 3+2
	s.roller.Push(2, 18, 10, 3)
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("A goblin leaps out.", nil)
	start, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "I wave",
		Enemies:   []string{"goblin"},
	})
	s.Require().NoError(err)
	s.Require().NotNil(start.Turn)
	s.Require().Len(start.Turn.EnemyAttacks, 1)
	s.True(start.Turn.EnemyAttacks[0].Hit)
	s.Equal(5, start.Turn.EnemyAttacks[0].DamageDealt)
	s.Equal(7, start.Turn.EnemyAttacks[0].TargetHP)
	s.Equal(testPlayerID, start.Encounter.CurrentID)

	// goblin misses with 1+4 in round 2
	s.roller.Push(1)
	end, err := s.orchestrator.EndTurn(s.ctx, &game.EndTurnInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.Require().NoError(err)
	s.Require().Len(end.Turn.EnemyAttacks, 1)
	s.False(end.Turn.EnemyAttacks[0].Hit)
	s.Equal(2, end.Turn.Encounter.Round)

	fled, err := s.orchestrator.Flee(s.ctx, &game.FleeInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.Require().NoError(err)
	s.Equal("Combat ended: the party fled from Goblin after 2 rounds.", fled.Summary.Text)
	s.Equal(entities.KindCombat, fled.Summary.Kind)

	status, err := s.orchestrator.GetStatus(s.ctx, &game.GetStatusInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.Require().NoError(err)
	s.Nil(status.Encounter)
	s.Equal(7, status.Character.HitPoints)

	_, err = s.orchestrator.Flee(s.ctx, &game.FleeInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.True(errors.IsFailedPrecondition(err))
}

func (s *OrchestratorTestSuite) TestEnemiesWin() {
	sessionID := s.startCampaign()
	s.startFight(sessionID, 15, 5)

	// the player misses and the goblin hits for 8, twice
	s.roller.Push(1, 20, 6)
	out, err := s.orchestrator.Attack(s.ctx, &game.AttackInput{SessionID: sessionID, PlayerID: testPlayerID, TargetID: "goblin-1"})
	s.Require().NoError(err)
	s.Nil(out.Turn.Summary)

	s.roller.Push(20, 6)
	end, err := s.orchestrator.EndTurn(s.ctx, &game.EndTurnInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.Require().NoError(err)
	s.Require().NotNil(end.Turn.Summary)
	s.Equal("Combat ended: the party fell to Goblin after 2 rounds.", end.Turn.Summary.Text)

	status, err := s.orchestrator.GetStatus(s.ctx, &game.GetStatusInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.Require().NoError(err)
	s.Equal(0, status.Character.HitPoints)
}

func (s *OrchestratorTestSuite) TestCastSpellDefaultTarget() {
	sessionID := s.startCampaign()
	s.startFight(sessionID, 15, 5)

	// spell attack 15+5 hits, 9 damage drops the goblin
	s.roller.Push(15, 9)
	out, err := s.orchestrator.CastSpell(s.ctx, &game.CastSpellInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Spell:     "Fire Bolt",
	})
	s.Require().NoError(err)
	s.Equal("Fire Bolt", out.Result.Spell)
	s.True(out.Result.Hit)
	s.Require().Len(out.Result.Targets, 1)
	s.Equal("goblin-1", out.Result.Targets[0].ID)
	s.True(out.Result.Targets[0].Defeated)
	s.Equal(encounter.StatePlayersWon, out.Result.State)
	s.Require().NotNil(out.Turn.Summary)
	s.Contains(s.bus.published(), game.EventSpellCast)
}

func (s *OrchestratorTestSuite) TestCastHealingTargetsCaster() {
	sessionID := s.startCampaign()

	// goblin goes first and deals 5
	s.roller.Push(2, 18, 10, 3)
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("A goblin attacks you.", nil)
	_, err := s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "I wave",
		Enemies:   []string{"goblin"},
	})
	s.Require().NoError(err)

	// heal 4, then the goblin misses
	s.roller.Push(4, 1)
	out, err := s.orchestrator.CastSpell(s.ctx, &game.CastSpellInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Spell:     "cure-wounds",
	})
	s.Require().NoError(err)
	s.True(out.Result.Healing)
	s.Require().Len(out.Result.Targets, 1)
	s.Equal(testPlayerID, out.Result.Targets[0].ID)
	s.Equal(4, out.Result.Targets[0].Amount)
	s.Equal(11, out.Result.Targets[0].HitPoints)
	s.Require().Len(out.Turn.EnemyAttacks, 1)
}

func (s *OrchestratorTestSuite) TestCastUnknownSpell() {
	sessionID := s.startCampaign()
	s.startFight(sessionID, 15, 5)

	_, err := s.orchestrator.CastSpell(s.ctx, &game.CastSpellInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Spell:     "Wish",
	})
	s.True(errors.IsNotFound(err))
}

func (s *OrchestratorTestSuite) TestCombatWithoutFight() {
	sessionID := s.startCampaign()

	_, err := s.orchestrator.Attack(s.ctx, &game.AttackInput{SessionID: sessionID, PlayerID: testPlayerID, TargetID: "goblin-1"})
	s.True(errors.IsFailedPrecondition(err))

	_, err = s.orchestrator.EndTurn(s.ctx, &game.EndTurnInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.True(errors.IsFailedPrecondition(err))

	_, err = s.orchestrator.CastSpell(s.ctx, &game.CastSpellInput{SessionID: sessionID, PlayerID: testPlayerID, Spell: "fire-bolt"})
	s.True(errors.IsFailedPrecondition(err))
}

func (s *OrchestratorTestSuite) TestEndTurnOutOfTurn() {
	sessionID := s.startCampaign()
	s.startFight(sessionID, 15, 5)

	_, err := s.orchestrator.EndTurn(s.ctx, &game.EndTurnInput{SessionID: sessionID, PlayerID: "goblin-1"})
	s.True(errors.IsInvalidActor(err))

	_, err = s.orchestrator.Attack(s.ctx, &game.AttackInput{SessionID: sessionID, PlayerID: testPlayerID, TargetID: "nobody"})
	s.True(errors.IsInvalidActor(err))
}

func (s *OrchestratorTestSuite) TestUnknownSession() {
	s.mockStore.EXPECT().
		Load(gomock.Any(), sessions.LoadInput{ID: "missing"}).
		Return(nil, errors.NotFound("session missing not found")).
		Times(2)

	_, err := s.orchestrator.GetStatus(s.ctx, &game.GetStatusInput{SessionID: "missing", PlayerID: testPlayerID})
	s.True(errors.IsNotFound(err))

	// a failed load is not cached
	_, err = s.orchestrator.LoadCampaign(s.ctx, &game.LoadCampaignInput{SessionID: "missing"})
	s.True(errors.IsNotFound(err))

	_, err = s.orchestrator.LoadCampaign(s.ctx, &game.LoadCampaignInput{})
	s.True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestRollDice() {
	sessionID := s.startCampaign()
	s.roller.Push(3, 4)

	out, err := s.orchestrator.RollDice(s.ctx, &game.RollDiceInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Notation:  "2d6+1",
	})
	s.Require().NoError(err)
	s.Equal(8, out.Roll.Total)
	s.Equal(entities.ActorDice, out.Event.Actor)
	s.Equal(entities.KindDiceRoll, out.Event.Kind)
	s.Equal(out.Roll.Description, out.Event.Text)

	_, err = s.orchestrator.RollDice(s.ctx, &game.RollDiceInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Notation:  "d",
	})
	s.True(errors.IsParseError(err))

	status, err := s.orchestrator.GetStatus(s.ctx, &game.GetStatusInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.Require().NoError(err)
	s.Equal(0, status.TurnCount)
}

func (s *OrchestratorTestSuite) TestGetStatusReturnsCopy() {
	sessionID := s.startCampaign()

	status, err := s.orchestrator.GetStatus(s.ctx, &game.GetStatusInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.Require().NoError(err)
	s.Equal(testCampaign, status.SessionName)
	status.Character.HitPoints = 1
	status.Character.Inventory[0] = "Broken sword"

	again, err := s.orchestrator.GetStatus(s.ctx, &game.GetStatusInput{SessionID: sessionID, PlayerID: testPlayerID})
	s.Require().NoError(err)
	s.Equal(12, again.Character.HitPoints)
	s.Equal("Basic weapon", again.Character.Inventory[0])
}

func (s *OrchestratorTestSuite) TestSaveAndList() {
	sessionID := s.startCampaign()
	summary := sessions.Summary{ID: sessionID, Name: testCampaign}
	s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(&sessions.SaveOutput{Summary: summary}, nil)

	out, err := s.orchestrator.Save(s.ctx, &game.SaveInput{SessionID: sessionID})
	s.Require().NoError(err)
	s.Equal(summary, out.Summary)

	s.mockStore.EXPECT().
		List(gomock.Any(), sessions.ListInput{Limit: 5}).
		Return(&sessions.ListOutput{Sessions: []sessions.Summary{summary}}, nil)
	list, err := s.orchestrator.ListCampaigns(s.ctx, &game.ListCampaignsInput{Limit: 5})
	s.Require().NoError(err)
	s.Equal([]sessions.Summary{summary}, list.Campaigns)
}

func (s *OrchestratorTestSuite) TestSaveFailure() {
	sessionID := s.startCampaign()
	s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil, errors.Unavailable("disk full"))

	_, err := s.orchestrator.Save(s.ctx, &game.SaveInput{SessionID: sessionID})
	s.Require().Error(err)
	s.True(errors.IsUnavailable(err))
}

func (s *OrchestratorTestSuite) TestEndCampaign() {
	sessionID := s.startCampaign()
	var saved sessions.SaveInput
	s.mockStore.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in sessions.SaveInput) (*sessions.SaveOutput, error) {
			saved = in
			return &sessions.SaveOutput{}, nil
		})

	out, err := s.orchestrator.EndCampaign(s.ctx, &game.EndCampaignInput{SessionID: sessionID})
	s.Require().NoError(err)
	s.Equal(`The campaign "The Lost Mine" has ended.`, out.Event.Text)
	s.Require().NotNil(saved.Record)
	s.True(saved.Record.Ended)

	_, err = s.orchestrator.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: sessionID,
		PlayerID:  testPlayerID,
		Action:    "I wave",
	})
	s.True(errors.IsSessionEnded(err))

	_, err = s.orchestrator.EndCampaign(s.ctx, &game.EndCampaignInput{SessionID: sessionID})
	s.True(errors.IsSessionEnded(err))
}

func (s *OrchestratorTestSuite) TestLoadCampaignFromFileStore() {
	store, err := sessions.NewFileRepository(&sessions.FileConfig{
		Dir:   s.T().TempDir(),
		Clock: clock.NewStepping(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), time.Minute),
	})
	s.Require().NoError(err)

	first := s.newOrchestrator(store)
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(testOpening, nil)
	started, err := first.StartCampaign(s.ctx, &game.StartCampaignInput{
		Name:      testCampaign,
		PlayerID:  testPlayerID,
		Character: testCharacter(),
	})
	s.Require().NoError(err)

	s.roller.Push(15, 5)
	s.mockGenerator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("A goblin snarls.", nil)
	_, err = first.TakeAction(s.ctx, &game.TakeActionInput{
		SessionID: started.SessionID,
		PlayerID:  testPlayerID,
		Action:    "I wave",
		Enemies:   []string{"goblin"},
	})
	s.Require().NoError(err)
	_, err = first.Save(s.ctx, &game.SaveInput{SessionID: started.SessionID})
	s.Require().NoError(err)

	second := s.newOrchestrator(store)
	loaded, err := second.LoadCampaign(s.ctx, &game.LoadCampaignInput{SessionID: started.SessionID})
	s.Require().NoError(err)
	s.Equal(testCampaign, loaded.Name)
	s.Equal(1, loaded.TurnCount)
	s.Equal([]string{testPlayerID}, loaded.PlayerIDs)
	s.Require().NotNil(loaded.Encounter)
	s.Equal(testPlayerID, loaded.Encounter.CurrentID)
	s.NotEmpty(loaded.Recent)

	// the restored fight carries on
	s.roller.Push(15, 7)
	out, err := second.Attack(s.ctx, &game.AttackInput{
		SessionID: started.SessionID,
		PlayerID:  testPlayerID,
		TargetID:  "goblin-1",
	})
	s.Require().NoError(err)
	s.Equal(encounter.StatePlayersWon, out.Result.State)

	list, err := second.ListCampaigns(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(list.Campaigns, 1)
	s.Equal(started.SessionID, list.Campaigns[0].ID)
}

func (s *OrchestratorTestSuite) TestConcurrentRollsOnOneSession() {
	sessionID := s.startCampaign()
	const rolls = 20
	for i := 0; i < rolls; i++ {
		s.roller.Push(i%6 + 1)
	}

	var wg sync.WaitGroup
	errs := make(chan error, rolls)
	for i := 0; i < rolls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.orchestrator.RollDice(s.ctx, &game.RollDiceInput{
				SessionID: sessionID,
				PlayerID:  testPlayerID,
				Notation:  "1d6",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	s.Equal(0, s.roller.Remaining())
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}
