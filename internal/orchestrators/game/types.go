package game

import (
	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/encounter"
	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/repositories/sessions"
)

// StartCampaignInput defines the request for starting a campaign
type StartCampaignInput struct {
	Name      string
	PlayerID  string
	Character *entities.Character
}

// StartCampaignOutput defines the response for starting a campaign
type StartCampaignOutput struct {
	SessionID string
	Opening   string
}

// JoinCampaignInput defines the request for adding a player to a campaign
type JoinCampaignInput struct {
	SessionID string
	PlayerID  string
	Character *entities.Character
}

// JoinCampaignOutput defines the response for joining a campaign
type JoinCampaignOutput struct {
	Event     entities.StoryEvent
	PlayerIDs []string
}

// LoadCampaignInput defines the request for loading a saved campaign
type LoadCampaignInput struct {
	SessionID string
}

// LoadCampaignOutput defines the response for loading a saved campaign
type LoadCampaignOutput struct {
	SessionID string
	Name      string
	TurnCount int
	PlayerIDs []string
	// Recent holds the tail of the story log, oldest first
	Recent    []entities.StoryEvent
	Encounter *EncounterView
}

// TakeActionInput defines the request for a story action
type TakeActionInput struct {
	SessionID string
	PlayerID  string
	Action    string
	// Enemies starts a fight with these templates after the reply
	Enemies []string
}

// TakeActionOutput defines the response for a story action
type TakeActionOutput struct {
	Action    entities.StoryEvent
	Dice      *entities.StoryEvent
	Roll      *dice.RollResult
	Reply     string
	Encounter *EncounterView
	// Turn is set when a fight started and enemies acted before the player
	Turn      *TurnOutcome
	Saved     bool
}

// AttackInput defines the request for a player attack
type AttackInput struct {
	SessionID string
	PlayerID  string
	TargetID  string
}

// AttackOutput defines the response for a player attack
type AttackOutput struct {
	Result *encounter.AttackResult
	Turn   *TurnOutcome
}

// CastSpellInput defines the request for casting a spell in combat
type CastSpellInput struct {
	SessionID string
	PlayerID  string
	Spell     string
	TargetIDs []string
}

// CastSpellOutput defines the response for casting a spell
type CastSpellOutput struct {
	Result *encounter.SpellResult
	Turn   *TurnOutcome
}

// EndTurnInput defines the request for passing the rest of a turn
type EndTurnInput struct {
	SessionID string
	PlayerID  string
}

// EndTurnOutput defines the response for ending a turn
type EndTurnOutput struct {
	Turn *TurnOutcome
}

// FleeInput defines the request for fleeing combat
type FleeInput struct {
	SessionID string
	PlayerID  string
}

// FleeOutput defines the response for fleeing combat
type FleeOutput struct {
	Summary entities.StoryEvent
}

// RollDiceInput defines the request for an explicit roll
type RollDiceInput struct {
	SessionID string
	PlayerID  string
	Notation  string
}

// RollDiceOutput defines the response for an explicit roll
type RollDiceOutput struct {
	Roll  *dice.RollResult
	Event entities.StoryEvent
}

// GetStatusInput defines the request for a player's status
type GetStatusInput struct {
	SessionID string
	PlayerID  string
}

// GetStatusOutput defines the response for a player's status
type GetStatusOutput struct {
	SessionName string
	TurnCount   int
	Location    string
	Character   *entities.Character
	Encounter   *EncounterView
}

// SaveInput defines the request for saving a campaign
type SaveInput struct {
	SessionID string
}

// SaveOutput defines the response for saving a campaign
type SaveOutput struct {
	Summary sessions.Summary
}

// ListCampaignsInput defines the request for listing saved campaigns
type ListCampaignsInput struct {
	Limit int
}

// ListCampaignsOutput defines the response for listing saved campaigns
type ListCampaignsOutput struct {
	Campaigns []sessions.Summary
}

// EndCampaignInput defines the request for ending a campaign
type EndCampaignInput struct {
	SessionID string
}

// EndCampaignOutput defines the response for ending a campaign
type EndCampaignOutput struct {
	Event entities.StoryEvent
}

// TurnOutcome reports what happened after a player's action until control
// returned to a player or the fight ended
type TurnOutcome struct {
	EnemyAttacks []*encounter.AttackResult
	// Summary is set when the encounter ended
	Summary   *entities.StoryEvent
	Encounter *EncounterView
}

// EncounterView is a read-only snapshot of a fight
type EncounterView struct {
	Name       string
	State      encounter.State
	Round      int
	CurrentID  string
	Combatants []*entities.Combatant
}

func viewOf(enc *encounter.Encounter) *EncounterView {
	if enc == nil {
		return nil
	}
	v := &EncounterView{
		Name:       enc.Name(),
		State:      enc.State(),
		Round:      enc.Round(),
		Combatants: enc.Combatants(),
	}
	if cur := enc.Current(); cur != nil {
		v.CurrentID = cur.ID
	}
	return v
}
