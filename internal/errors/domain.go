package errors

import "fmt"

// DiceParse reports dice notation that does not match the grammar.
func DiceParse(format string, args ...any) *Error {
	return Newf(CodeInvalidArgument, format, args...).WithReason(ReasonDiceParse)
}

// InvalidActor reports an attacker acting out of turn or a target that cannot
// be chosen.
func InvalidActor(format string, args ...any) *Error {
	return Newf(CodeFailedPrecondition, format, args...).WithReason(ReasonInvalidActor)
}

// InvalidEncounter reports an encounter that cannot be built as requested.
func InvalidEncounter(format string, args ...any) *Error {
	return Newf(CodeInvalidArgument, format, args...).WithReason(ReasonInvalidEncounter)
}

// EncounterActive reports an attempt to start a fight while one is running.
func EncounterActive(sessionID string) *Error {
	return New(CodeFailedPrecondition, "an encounter is already active").
		WithReason(ReasonEncounterAlreadyActive).
		WithMeta("session_id", sessionID)
}

// EncounterOver reports a mutation attempted after the encounter finished.
func EncounterOver(state fmt.Stringer) *Error {
	return Newf(CodeFailedPrecondition, "encounter already ended: %s", state).
		WithReason(ReasonEncounterOver)
}

// CorruptSession reports a persisted session record that cannot be trusted.
func CorruptSession(format string, args ...any) *Error {
	return Newf(CodeDataLoss, format, args...).WithReason(ReasonCorruptSession)
}

// SessionEnded reports an action against a campaign that was closed.
func SessionEnded(sessionID string) *Error {
	return New(CodeFailedPrecondition, "session has ended").
		WithReason(ReasonSessionEnded).
		WithMeta("session_id", sessionID)
}

// IsParseError reports whether err is a dice notation failure
func IsParseError(err error) bool {
	return GetReason(err) == ReasonDiceParse
}

// IsInvalidActor reports whether err is an invalid actor failure
func IsInvalidActor(err error) bool {
	return GetReason(err) == ReasonInvalidActor
}

// IsInvalidEncounter reports whether err is an invalid encounter failure
func IsInvalidEncounter(err error) bool {
	return GetReason(err) == ReasonInvalidEncounter
}

// IsEncounterActive reports whether err is an already-active encounter failure
func IsEncounterActive(err error) bool {
	return GetReason(err) == ReasonEncounterAlreadyActive
}

// IsEncounterOver reports whether err is a terminal encounter mutation
func IsEncounterOver(err error) bool {
	return GetReason(err) == ReasonEncounterOver
}

// IsCorruptSession reports whether err is a corrupt session record
func IsCorruptSession(err error) bool {
	return GetReason(err) == ReasonCorruptSession
}

// IsSessionEnded reports whether err targets an ended session
func IsSessionEnded(err error) bool {
	return GetReason(err) == ReasonSessionEnded
}
