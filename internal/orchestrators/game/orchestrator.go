// Package game orchestrates campaigns: it owns live sessions and performs the
// I/O around them (generator calls, spell lookups, persistence, events).
package game

//go:generate mockgen -destination=mock/mock_service.go -package=gamemock github.com/KirkDiggler/rpg-dm/internal/orchestrators/game Service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	toolkit "github.com/KirkDiggler/rpg-toolkit/dice"
	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/rpg-dm/internal/clients/generator"
	"github.com/KirkDiggler/rpg-dm/internal/clients/spells"
	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/idgen"
	"github.com/KirkDiggler/rpg-dm/internal/repositories/sessions"
	"github.com/KirkDiggler/rpg-dm/internal/session"
)

// DefaultContextEvents is how many recent events the generator sees
const DefaultContextEvents = 10

const offlineLastResort = "The world holds its breath for a moment.\n\nWhat do you do next?"

// Service defines the interface for campaign operations
type Service interface {
	// StartCampaign creates a session, registers the player and narrates the opening scene
	StartCampaign(ctx context.Context, input *StartCampaignInput) (*StartCampaignOutput, error)

	// JoinCampaign adds another player's character to the party
	JoinCampaign(ctx context.Context, input *JoinCampaignInput) (*JoinCampaignOutput, error)

	// LoadCampaign brings a saved session back into play
	LoadCampaign(ctx context.Context, input *LoadCampaignInput) (*LoadCampaignOutput, error)

	// TakeAction records a story action, narrates the result and may start a fight
	TakeAction(ctx context.Context, input *TakeActionInput) (*TakeActionOutput, error)

	// Attack resolves the player's attack, then runs enemy turns
	Attack(ctx context.Context, input *AttackInput) (*AttackOutput, error)

	// CastSpell resolves the player's spell, then runs enemy turns
	CastSpell(ctx context.Context, input *CastSpellInput) (*CastSpellOutput, error)

	// EndTurn passes the player's turn and runs enemy turns
	EndTurn(ctx context.Context, input *EndTurnInput) (*EndTurnOutput, error)

	// Flee ends the active fight without a winner
	Flee(ctx context.Context, input *FleeInput) (*FleeOutput, error)

	// RollDice rolls notation for a player and records it in the story
	RollDice(ctx context.Context, input *RollDiceInput) (*RollDiceOutput, error)

	// GetStatus returns a player's sheet and the state of any fight
	GetStatus(ctx context.Context, input *GetStatusInput) (*GetStatusOutput, error)

	// Save persists a session
	Save(ctx context.Context, input *SaveInput) (*SaveOutput, error)

	// ListCampaigns lists saved sessions, most recently saved first
	ListCampaigns(ctx context.Context, input *ListCampaignsInput) (*ListCampaignsOutput, error)

	// EndCampaign closes a session for good and saves it
	EndCampaign(ctx context.Context, input *EndCampaignInput) (*EndCampaignOutput, error)
}

// Config holds the dependencies for the game orchestrator
type Config struct {
	Store       sessions.Repository
	Generator   generator.Generator
	Spells      spells.Catalog
	Clock       clock.Clock
	IDGenerator idgen.Generator
	Roller      toolkit.Roller
	// EventBus is optional; nothing is published without one
	EventBus    events.EventBus

	Personality      generator.Personality
	ContentRating    generator.ContentRating
	// ContextEvents defaults to DefaultContextEvents when zero
	ContextEvents    int
	AutosaveInterval int
	// Triggers is passed to every session; nil means session.DefaultTriggers
	Triggers         []session.Trigger
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Store == nil {
		vb.RequiredField("Store")
	}
	if c.Generator == nil {
		vb.RequiredField("Generator")
	}
	if c.Spells == nil {
		vb.RequiredField("Spells")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.Roller == nil {
		vb.RequiredField("Roller")
	}
	if c.ContextEvents < 0 {
		vb.Fieldf("ContextEvents", "must not be negative, got %d", c.ContextEvents)
	}
	if c.AutosaveInterval < 0 {
		vb.Fieldf("AutosaveInterval", "must not be negative, got %d", c.AutosaveInterval)
	}

	return vb.Build()
}

type orchestrator struct {
	store     sessions.Repository
	generator generator.Generator
	offline   generator.Generator
	spells    spells.Catalog
	clock     clock.Clock
	idGen     idgen.Generator
	roller    toolkit.Roller
	bus       events.EventBus

	systemPrompt  string
	contextEvents int
	autosave      int
	triggers      []session.Trigger

	mu   sync.Mutex
	live map[string]*liveSession
}

// liveSession serializes every action against one session
type liveSession struct {
	mu      sync.Mutex
	session *session.GameSession
	// logged counts encounter log lines already copied into the story
	logged  int
}

var _ Service = (*orchestrator)(nil)

// NewOrchestrator creates a new game orchestrator with the provided dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	contextEvents := cfg.ContextEvents
	if contextEvents == 0 {
		contextEvents = DefaultContextEvents
	}

	return &orchestrator{
		store:         cfg.Store,
		generator:     cfg.Generator,
		offline:       generator.NewOffline(&generator.OfflineConfig{Personality: cfg.Personality}),
		spells:        cfg.Spells,
		clock:         cfg.Clock,
		idGen:         cfg.IDGenerator,
		roller:        cfg.Roller,
		bus:           cfg.EventBus,
		systemPrompt:  generator.SystemPrompt(cfg.Personality, cfg.ContentRating),
		contextEvents: contextEvents,
		autosave:      cfg.AutosaveInterval,
		triggers:      cfg.Triggers,
		live:          make(map[string]*liveSession),
	}, nil
}

func (o *orchestrator) sessionConfig(id, name string) *session.Config {
	return &session.Config{
		ID:               id,
		Name:             name,
		Clock:            o.clock,
		Roller:           o.roller,
		Triggers:         o.triggers,
		AutosaveInterval: o.autosave,
	}
}

// acquire locks the live session, loading it from the store on first use.
// The returned func releases the lock.
func (o *orchestrator) acquire(ctx context.Context, sessionID string) (*liveSession, func(), error) {
	if sessionID == "" {
		return nil, nil, errors.InvalidArgument("session ID is required")
	}

	o.mu.Lock()
	ls, ok := o.live[sessionID]
	if !ok {
		ls = &liveSession{}
		o.live[sessionID] = ls
	}
	o.mu.Unlock()

	ls.mu.Lock()
	if ls.session != nil {
		return ls, ls.mu.Unlock, nil
	}

	out, err := o.store.Load(ctx, sessions.LoadInput{ID: sessionID})
	if err == nil {
		ls.session, err = session.FromRecord(out.Record, o.sessionConfig(out.Record.ID, out.Record.Name))
	}
	if err != nil {
		o.mu.Lock()
		if o.live[sessionID] == ls {
			delete(o.live, sessionID)
		}
		o.mu.Unlock()
		ls.mu.Unlock()
		return nil, nil, errors.Wrapf(err, "failed to load session %s", sessionID)
	}

	if enc := ls.session.ActiveEncounter(); enc != nil {
		ls.logged = len(enc.Log())
	}
	slog.Info("Session loaded",
		"session_id", sessionID,
		"turn_count", ls.session.TurnCount())
	return ls, ls.mu.Unlock, nil
}

func (o *orchestrator) StartCampaign(ctx context.Context, input *StartCampaignInput) (*StartCampaignOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("name", input.Name, vb)
	errors.ValidateRequired("player_id", input.PlayerID, vb)
	if input.Character == nil {
		vb.RequiredField("character")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	sessionID := o.idGen.Generate()
	s, err := session.New(o.sessionConfig(sessionID, input.Name))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	if err := s.AddPlayer(input.PlayerID, input.Character); err != nil {
		return nil, err
	}

	c := input.Character
	s.RecordSystem(entities.KindSystem, fmt.Sprintf("%s the level %d %s begins the adventure %q.", c.Name, c.Level, c.Class, input.Name))
	opening := o.narrate(ctx, sessionID, &generator.Request{
		SystemPrompt: o.systemPrompt,
		Action:       fmt.Sprintf("Begin a new adventure for %s, a level %d %s. Describe the opening scene.", c.Name, c.Level, c.Class),
	})
	s.RecordDMReply(opening)

	o.mu.Lock()
	o.live[sessionID] = &liveSession{session: s}
	o.mu.Unlock()

	if _, err := o.save(ctx, s); err != nil {
		slog.Warn("Initial save failed",
			"session_id", sessionID,
			"error", err)
	}

	slog.Info("Campaign started",
		"session_id", sessionID,
		"name", input.Name,
		"player_id", input.PlayerID)

	return &StartCampaignOutput{SessionID: sessionID, Opening: opening}, nil
}

func (o *orchestrator) JoinCampaign(ctx context.Context, input *JoinCampaignInput) (*JoinCampaignOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("session_id", input.SessionID, vb)
	errors.ValidateRequired("player_id", input.PlayerID, vb)
	if input.Character == nil {
		vb.RequiredField("character")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	ls, release, err := o.acquire(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	s := ls.session
	ev, err := s.Join(input.PlayerID, input.Character)
	if err != nil {
		return nil, err
	}
	if _, err := o.save(ctx, s); err != nil {
		slog.Warn("Save after join failed",
			"session_id", s.GetID(),
			"player_id", input.PlayerID,
			"error", err)
	}

	slog.Info("Player joined campaign",
		"session_id", s.GetID(),
		"player_id", input.PlayerID,
		"party_size", len(s.PlayerIDs()))

	return &JoinCampaignOutput{Event: ev, PlayerIDs: s.PlayerIDs()}, nil
}

func (o *orchestrator) LoadCampaign(ctx context.Context, input *LoadCampaignInput) (*LoadCampaignOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	ls, release, err := o.acquire(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	s := ls.session
	return &LoadCampaignOutput{
		SessionID: s.GetID(),
		Name:      s.Name(),
		TurnCount: s.TurnCount(),
		PlayerIDs: s.PlayerIDs(),
		Recent:    s.BuildContext(o.contextEvents),
		Encounter: viewOf(s.ActiveEncounter()),
	}, nil
}

func (o *orchestrator) TakeAction(ctx context.Context, input *TakeActionInput) (*TakeActionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	for _, tmpl := range input.Enemies {
		if _, err := NewEnemy(tmpl, "check"); err != nil {
			return nil, err
		}
	}

	ls, release, err := o.acquire(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()
	s := ls.session

	// context is taken before the action so the generator sees the action once
	history := s.ContextSummaries(o.contextEvents)
	outcome, err := s.RecordPlayerAction(input.PlayerID, input.Action)
	if err != nil {
		return nil, err
	}

	reply := o.narrate(ctx, s.GetID(), &generator.Request{
		SystemPrompt: o.systemPrompt,
		Context:      history,
		Action:       outcome.Action.Text,
		Dice:         outcome.Roll,
	})
	s.RecordDMReply(reply)

	out := &TakeActionOutput{
		Action: outcome.Action,
		Dice:   outcome.Dice,
		Roll:   outcome.Roll,
		Reply:  reply,
	}

	if s.ActiveEncounter() == nil {
		templates := input.Enemies
		if len(templates) == 0 && startsCombat(reply) {
			templates = enemiesMentioned(reply)
			if len(templates) == 0 {
				templates = []string{DefaultEnemy}
			}
		}
		if len(templates) > 0 {
			turn, err := o.startEncounter(ctx, ls, input.PlayerID, templates)
			if err != nil {
				slog.Warn("Could not start encounter",
					"session_id", s.GetID(),
					"enemies", templates,
					"error", err)
			} else {
				out.Turn = turn
			}
		}
	}
	out.Encounter = viewOf(s.ActiveEncounter())

	if outcome.SaveDue {
		if _, err := o.save(ctx, s); err != nil {
			slog.Warn("Autosave failed",
				"session_id", s.GetID(),
				"turn_count", s.TurnCount(),
				"error", err)
		} else {
			out.Saved = true
		}
	}

	return out, nil
}

// narrate asks the configured generator for a reply. Errors and empty replies
// are answered by the offline generator so the action is never left without
// a DM reply.
func (o *orchestrator) narrate(ctx context.Context, sessionID string, req *generator.Request) string {
	reply, err := o.generator.Generate(ctx, req)
	if err == nil && strings.TrimSpace(reply) != "" {
		return reply
	}
	slog.Warn("Generator failed, answering offline",
		"session_id", sessionID,
		"error", err,
		"code", errors.GetCode(err))

	// offline generation is pure; it only needs a live context
	reply, err = o.offline.Generate(context.WithoutCancel(ctx), req)
	if err != nil {
		slog.Error("Offline generator failed",
			"session_id", sessionID,
			"error", err)
		return offlineLastResort
	}
	return reply
}

func (o *orchestrator) RollDice(ctx context.Context, input *RollDiceInput) (*RollDiceOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	ls, release, err := o.acquire(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, ok := ls.session.Player(input.PlayerID); !ok {
		return nil, errors.InvalidActor("unknown player %q", input.PlayerID)
	}
	roll, err := dice.RollNotation(input.Notation, o.roller)
	if err != nil {
		return nil, err
	}
	ev, err := ls.session.RecordRoll(roll)
	if err != nil {
		return nil, err
	}
	return &RollDiceOutput{Roll: roll, Event: ev}, nil
}

func (o *orchestrator) GetStatus(ctx context.Context, input *GetStatusInput) (*GetStatusOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	ls, release, err := o.acquire(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	s := ls.session
	character, ok := s.Player(input.PlayerID)
	if !ok {
		return nil, errors.InvalidActor("unknown player %q", input.PlayerID)
	}
	sheet := *character
	sheet.Inventory = append([]string(nil), character.Inventory...)
	sheet.Conditions = append([]string(nil), character.Conditions...)

	return &GetStatusOutput{
		SessionName: s.Name(),
		TurnCount:   s.TurnCount(),
		Location:    s.Location(),
		Character:   &sheet,
		Encounter:   viewOf(s.ActiveEncounter()),
	}, nil
}

func (o *orchestrator) Save(ctx context.Context, input *SaveInput) (*SaveOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	ls, release, err := o.acquire(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	summary, err := o.save(ctx, ls.session)
	if err != nil {
		return nil, err
	}
	return &SaveOutput{Summary: *summary}, nil
}

func (o *orchestrator) ListCampaigns(ctx context.Context, input *ListCampaignsInput) (*ListCampaignsOutput, error) {
	limit := 0
	if input != nil {
		limit = input.Limit
	}

	out, err := o.store.List(ctx, sessions.ListInput{Limit: limit})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list campaigns")
	}
	return &ListCampaignsOutput{Campaigns: out.Sessions}, nil
}

func (o *orchestrator) EndCampaign(ctx context.Context, input *EndCampaignInput) (*EndCampaignOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	ls, release, err := o.acquire(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	ev, err := ls.session.End()
	if err != nil {
		return nil, err
	}
	if _, err := o.save(ctx, ls.session); err != nil {
		return nil, errors.Wrap(err, "campaign ended but could not be saved")
	}

	slog.Info("Campaign ended", "session_id", input.SessionID)
	return &EndCampaignOutput{Event: ev}, nil
}

func (o *orchestrator) save(ctx context.Context, s *session.GameSession) (*sessions.Summary, error) {
	out, err := o.store.Save(ctx, sessions.SaveInput{Record: s.ToRecord()})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to save session %s", s.GetID())
	}

	o.publish(ctx, EventSessionSaved, s, nil, map[string]any{
		ContextKeySessionID: s.GetID(),
	})
	slog.Debug("Session saved",
		"session_id", s.GetID(),
		"turn_count", s.TurnCount())
	return &out.Summary, nil
}
