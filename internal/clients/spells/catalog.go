// Package spells resolves spell names into combat effects
package spells

//go:generate mockgen -destination=mock/mock_catalog.go -package=spellsmock github.com/KirkDiggler/rpg-dm/internal/clients/spells Catalog

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/KirkDiggler/rpg-dm/internal/encounter"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// Catalog looks spells up by name
type Catalog interface {
	// Lookup returns the spell named name. Unknown spells fail with NotFound.
	Lookup(ctx context.Context, name string) (*encounter.Spell, error)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Key turns a display name into a catalog key, e.g. "Fire Bolt" -> "fire-bolt"
func Key(name string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

type staticCatalog struct {
	spells map[string]encounter.Spell
}

var _ Catalog = (*staticCatalog)(nil)

var builtinSpells = []encounter.Spell{
	{Key: "fire-bolt", Name: "Fire Bolt", Damage: "1d10"},
	{Key: "magic-missile", Name: "Magic Missile", Damage: "3d4+3", Area: true},
	{Key: "burning-hands", Name: "Burning Hands", Damage: "3d6", Area: true},
	{Key: "fireball", Name: "Fireball", Damage: "8d6", Area: true},
	{Key: "thunderwave", Name: "Thunderwave", Damage: "2d8", Area: true},
	{Key: "shocking-grasp", Name: "Shocking Grasp", Damage: "1d8"},
	{Key: "cure-wounds", Name: "Cure Wounds", Healing: "1d8"},
	{Key: "healing-word", Name: "Healing Word", Healing: "1d4"},
}

// NewStatic returns the built-in catalog
func NewStatic() Catalog {
	c := &staticCatalog{spells: make(map[string]encounter.Spell, len(builtinSpells))}
	for _, s := range builtinSpells {
		c.spells[s.Key] = s
	}
	return c
}

func (c *staticCatalog) Lookup(_ context.Context, name string) (*encounter.Spell, error) {
	key := Key(name)
	if key == "" {
		return nil, errors.InvalidArgument("spell name is required")
	}
	spell, ok := c.spells[key]
	if !ok {
		return nil, errors.NotFoundf("spell %q not found", name)
	}
	return &spell, nil
}

// Names lists the built-in spell names in alphabetical order
func Names() []string {
	names := make([]string, 0, len(builtinSpells))
	for _, s := range builtinSpells {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

type chainCatalog struct {
	catalogs []Catalog
}

var _ Catalog = (*chainCatalog)(nil)

// NewChain asks each catalog in order and returns the first hit. Errors
// other than NotFound are logged and the next catalog is tried.
func NewChain(catalogs ...Catalog) Catalog {
	return &chainCatalog{catalogs: catalogs}
}

func (c *chainCatalog) Lookup(ctx context.Context, name string) (*encounter.Spell, error) {
	if Key(name) == "" {
		return nil, errors.InvalidArgument("spell name is required")
	}
	for _, catalog := range c.catalogs {
		spell, err := catalog.Lookup(ctx, name)
		if err == nil {
			return spell, nil
		}
		if !errors.IsNotFound(err) {
			slog.Warn("Spell lookup failed", "spell", name, "error", err)
		}
	}
	return nil, errors.NotFoundf("spell %q not found", name)
}
