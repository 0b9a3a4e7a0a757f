package errors

// Code represents an error code
type Code string

// Error codes
const (
	CodeOK                 Code = "OK"
	CodeCanceled           Code = "CANCELED"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeDeadlineExceeded   Code = "DEADLINE_EXCEEDED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeUnimplemented      Code = "UNIMPLEMENTED"
	CodeInternal           Code = "INTERNAL"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeDataLoss           Code = "DATA_LOSS"
)

// String returns the string representation of the code
func (c Code) String() string {
	return string(c)
}

// Reason identifies which game rule an error reports. Callers branch on the
// reason, the code only tells them whether it was their fault.
type Reason string

// Domain reasons
const (
	ReasonDiceParse              Reason = "DICE_PARSE"
	ReasonInvalidActor           Reason = "INVALID_ACTOR"
	ReasonInvalidEncounter       Reason = "INVALID_ENCOUNTER"
	ReasonEncounterAlreadyActive Reason = "ENCOUNTER_ALREADY_ACTIVE"
	ReasonEncounterOver          Reason = "ENCOUNTER_OVER"
	ReasonCorruptSession         Reason = "CORRUPT_SESSION"
	ReasonSessionEnded           Reason = "SESSION_ENDED"
)
