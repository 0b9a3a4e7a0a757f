package game

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/rpg-toolkit/core"
	"github.com/KirkDiggler/rpg-toolkit/events"
)

// Event types published on the configured bus
const (
	EventEncounterStarted = "encounter.started"
	EventAttackResolved   = "attack.resolved"
	EventSpellCast        = "spell.cast"
	EventEncounterEnded   = "encounter.ended"
	EventSessionSaved     = "session.saved"
)

// Keys set on published event contexts
const (
	ContextKeySessionID = "session_id"
	ContextKeyText      = "text"
	ContextKeyState     = "state"
	ContextKeyHit       = "hit"
	ContextKeyDamage    = "damage"
)

func (o *orchestrator) publish(ctx context.Context, eventType string, source, target core.Entity, values map[string]any) {
	if o.bus == nil {
		return
	}

	ev := events.NewGameEvent(eventType, source, target)
	for k, v := range values {
		ev.Context().Set(k, v)
	}
	if err := o.bus.Publish(ctx, ev); err != nil {
		slog.Warn("Event handler failed",
			"event", eventType,
			"error", err)
	}
}
