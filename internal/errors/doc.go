// Package errors provides the structured error type used by the dungeon master
// engine.
//
// Every error carries a Code describing the class of failure and, for game
// rule violations, a Reason naming the rule:
//
//	err := errors.DiceParse("invalid dice notation %q", notation)
//	errors.IsParseError(err) // true
//	errors.GetCode(err)      // CodeInvalidArgument
//
// Wrapping keeps code, reason and metadata so callers can still branch on the
// original failure:
//
//	if err := store.Load(ctx, id); err != nil {
//	    return errors.Wrapf(err, "failed to load session %s", id)
//	}
//
// Domain reasons:
//   - DICE_PARSE: malformed dice notation, the player should rephrase
//   - INVALID_ACTOR: attacker out of turn or target already down
//   - INVALID_ENCOUNTER: an encounter missing one of its sides
//   - ENCOUNTER_ALREADY_ACTIVE: a fight was started during a fight
//   - ENCOUNTER_OVER: a finished encounter was asked to change
//   - CORRUPT_SESSION: a saved session failed integrity checks on load
//   - SESSION_ENDED: an action arrived for a closed campaign
//
// Config structs validate with the builder:
//
//	vb := errors.NewValidationBuilder()
//	if cfg.Store == nil {
//	    vb.RequiredField("Store")
//	}
//	return vb.Build()
package errors
