package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/KirkDiggler/rpg-toolkit/dice"
	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/rpg-dm/internal/clients/generator"
	"github.com/KirkDiggler/rpg-dm/internal/clients/spells"
	"github.com/KirkDiggler/rpg-dm/internal/config"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/orchestrators/game"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/idgen"
	"github.com/KirkDiggler/rpg-dm/internal/repositories/sessions"
)

// app is everything a command needs, wired from config
type app struct {
	service game.Service
	roller  dice.Roller
}

func newApp(ctx context.Context, c *config.Config) (*app, func(), error) {
	clk := clock.New()
	roller := dice.DefaultRoller

	store, err := sessions.New(ctx, c.Store(clk))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open session store")
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close session store", "error", err)
		}
	}

	gen, err := generator.New(c.Generator(http.DefaultClient))
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	catalog := spells.NewStatic()
	if apiCfg := c.SpellAPI(); apiCfg != nil {
		remote, err := spells.NewAPI(apiCfg)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrap(err, "failed to create spell API client")
		}
		catalog = spells.NewChain(catalog, remote)
	}

	bus := events.NewBus()
	subscribeLogging(bus)

	service, err := game.NewOrchestrator(&game.Config{
		Store:            store,
		Generator:        gen,
		Spells:           catalog,
		Clock:            clk,
		IDGenerator:      idgen.NewUUID("campaign"),
		Roller:           roller,
		EventBus:         bus,
		Personality:      generator.Personality(c.Personality),
		ContentRating:    generator.ContentRating(c.ContentRating),
		ContextEvents:    c.ContextEvents,
		AutosaveInterval: c.AutosaveInterval,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &app{service: service, roller: roller}, cleanup, nil
}

// subscribeLogging logs every game event at debug level
func subscribeLogging(bus events.EventBus) {
	for _, eventType := range []string{
		game.EventEncounterStarted,
		game.EventAttackResolved,
		game.EventSpellCast,
		game.EventEncounterEnded,
		game.EventSessionSaved,
	} {
		bus.SubscribeFunc(eventType, 0, func(_ context.Context, e events.Event) error {
			slog.Debug("Game event", "type", e.Type())
			return nil
		})
	}
}
