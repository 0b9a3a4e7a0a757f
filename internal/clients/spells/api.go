package spells

import (
	"context"
	"net/http"
	"time"

	"github.com/fadedpez/dnd5e-api/clients/dnd5e"
	"github.com/fadedpez/dnd5e-api/entities"

	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/encounter"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// DefaultAPIURL is the public D&D 5e API
const DefaultAPIURL = "https://www.dnd5eapi.co/api/2014/"

// spellSource is the part of the dnd5e client the catalog needs
type spellSource interface {
	GetSpell(key string) (*entities.Spell, error)
}

// APIConfig contains configuration options for the API catalog.
type APIConfig struct {
	// BaseURL for the D&D 5e API (optional, defaults to DefaultAPIURL)
	BaseURL string
	// HTTPTimeout for API requests (optional, defaults to 10 seconds)
	HTTPTimeout time.Duration
	// CacheTTL for the cached client (optional, defaults to 24 hours)
	CacheTTL time.Duration
}

// Validate validates the APIConfig and sets defaults if not provided.
func (cfg *APIConfig) Validate() error {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIURL
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	vb := errors.NewValidationBuilder()
	if cfg.HTTPTimeout < 0 {
		vb.InvalidField("http_timeout", "must not be negative")
	}
	if cfg.CacheTTL < 0 {
		vb.InvalidField("cache_ttl", "must not be negative")
	}
	return vb.Build()
}

type apiCatalog struct {
	source spellSource
}

var _ Catalog = (*apiCatalog)(nil)

// NewAPI creates a catalog backed by the D&D 5e API. Damage comes from the
// spell's base slot level and any area of effect makes it multi-target.
func NewAPI(cfg *APIConfig) (Catalog, error) {
	if cfg == nil {
		cfg = &APIConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid spell api config")
	}

	base, err := dnd5e.NewDND5eAPI(&dnd5e.DND5eAPIConfig{
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInternal, "failed to create D&D 5e API client")
	}

	return &apiCatalog{source: dnd5e.NewCachedClient(base, cfg.CacheTTL)}, nil
}

func (c *apiCatalog) Lookup(ctx context.Context, name string) (*encounter.Spell, error) {
	key := Key(name)
	if key == "" {
		return nil, errors.InvalidArgument("spell name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeDeadlineExceeded, "spell lookup abandoned")
	}

	spell, err := c.source.GetSpell(key)
	if err != nil {
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to get spell %s", key)
	}
	if spell == nil {
		return nil, errors.NotFoundf("spell %q not found", name)
	}

	var slots *entities.SpellDamageAtSlotLevel
	if spell.SpellDamage != nil {
		slots = spell.SpellDamage.SpellDamageAtSlotLevel
	}
	return buildSpell(key, spell.Name, spell.SpellLevel, slots, spell.AreaOfEffect != nil)
}

// buildSpell maps API data onto a combat spell
func buildSpell(key, name string, level int, slots *entities.SpellDamageAtSlotLevel, area bool) (*encounter.Spell, error) {
	damage := ""
	if slots != nil {
		damage = damageAtLevel(level, slots)
	}
	if damage == "" {
		return nil, errors.InvalidArgumentf("spell %s has no damage to roll", key)
	}
	if _, err := dice.Parse(damage); err != nil {
		return nil, errors.Wrapf(err, "spell %s has unusable damage", key)
	}
	if name == "" {
		name = key
	}
	return &encounter.Spell{Key: key, Name: name, Damage: damage, Area: area}, nil
}

// damageAtLevel returns the damage at the spell's minimum casting level
func damageAtLevel(level int, slots *entities.SpellDamageAtSlotLevel) string {
	switch level {
	case 0, 1:
		return slots.FirstLevel
	case 2:
		return slots.SecondLevel
	case 3:
		return slots.ThirdLevel
	case 4:
		return slots.FourthLevel
	case 5:
		return slots.FifthLevel
	case 6:
		return slots.SixthLevel
	case 7:
		return slots.SeventhLevel
	case 8:
		return slots.EighthLevel
	case 9:
		return slots.NinthLevel
	default:
		return ""
	}
}
