package entities

import (
	"fmt"
	"time"
)

// Actor is who produced a story event
type Actor string

const (
	ActorPlayer Actor = "PLAYER"
	ActorDM     Actor = "DM"
	ActorSystem Actor = "SYSTEM"
	ActorDice   Actor = "DICE"
)

// Valid reports whether a is one of the known actors
func (a Actor) Valid() bool {
	switch a {
	case ActorPlayer, ActorDM, ActorSystem, ActorDice:
		return true
	default:
		return false
	}
}

// EventKind classifies a story event
type EventKind string

const (
	KindPlayerAction EventKind = "player_action"
	KindDiceRoll     EventKind = "dice_roll"
	KindDMResponse   EventKind = "dm_response"
	KindCombat       EventKind = "combat"
	KindSystem       EventKind = "system"
)

// StoryEvent is one narrative beat. Events are values: once appended to a
// session log they are never changed. Sequence is unique and increasing
// within a session and doubles as insertion order.
type StoryEvent struct {
	Sequence  int64     `json:"sequence_number"`
	Timestamp time.Time `json:"timestamp"`
	Actor     Actor     `json:"actor"`
	Kind      EventKind `json:"kind"`
	Text      string    `json:"text"`
}

// Summary renders the event as one line of generator context
func (e StoryEvent) Summary() string {
	switch e.Actor {
	case ActorPlayer:
		return fmt.Sprintf("Player: %s", e.Text)
	case ActorDM:
		return fmt.Sprintf("DM: %s", e.Text)
	case ActorDice:
		return fmt.Sprintf("Roll: %s", e.Text)
	default:
		return fmt.Sprintf("System: %s", e.Text)
	}
}
