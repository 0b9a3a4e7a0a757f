// Package sessions persists session records. Backends store one JSON
// document per session and agree on the same Repository contract.
package sessions

import (
	"context"
	"time"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-dm/internal/session"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=sessionsmock github.com/KirkDiggler/rpg-dm/internal/repositories/sessions Repository

// Repository stores and retrieves session records
type Repository interface {
	// Save writes the record, replacing any earlier save of the same session
	Save(ctx context.Context, input SaveInput) (*SaveOutput, error)

	// Load returns the stored record. Missing sessions are NOT_FOUND; records
	// that fail to decode are CORRUPT_SESSION.
	Load(ctx context.Context, input LoadInput) (*LoadOutput, error)

	// List returns saved sessions, most recently saved first
	List(ctx context.Context, input ListInput) (*ListOutput, error)

	// Close releases resources owned by the backend
	Close() error
}

// Summary describes a saved session without its log
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TurnCount int       `json:"turn_count"`
	Ended     bool      `json:"ended"`
	SavedAt   time.Time `json:"saved_at"`
}

// SaveInput defines the input for saving a session
type SaveInput struct {
	Record *session.Record
}

// SaveOutput defines the output of a save
type SaveOutput struct {
	Summary Summary
}

// LoadInput defines the input for loading a session
type LoadInput struct {
	ID string
}

// LoadOutput defines the output of a load
type LoadOutput struct {
	Record *session.Record
}

// ListInput defines the input for listing sessions. Limit 0 returns all.
type ListInput struct {
	Limit int
}

// ListOutput defines the output of a list
type ListOutput struct {
	Sessions []Summary
}

const (
	// Error messages
	errRecordNil = "session record cannot be nil"
	errIDEmpty   = "session ID cannot be empty"
)

// prepare validates a record and stamps the save time when it is unset. The
// caller's record is not modified.
func prepare(rec *session.Record, clk clock.Clock) (*session.Record, error) {
	if rec == nil {
		return nil, errors.InvalidArgument(errRecordNil)
	}
	if err := rec.Validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "refusing to save invalid session record")
	}

	out := *rec
	if out.SavedAt.IsZero() {
		out.SavedAt = clk.Now()
	}
	return &out, nil
}

func summaryOf(rec *session.Record) Summary {
	return Summary{
		ID:        rec.ID,
		Name:      rec.Name,
		TurnCount: rec.TurnCount,
		Ended:     rec.Ended,
		SavedAt:   rec.SavedAt,
	}
}

func decode(id string, data []byte) (*session.Record, error) {
	rec, err := session.DecodeRecord(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode session %s", id).WithMeta("session_id", id)
	}
	if rec.ID != id {
		return nil, errors.CorruptSession("record stored under %q claims id %q", id, rec.ID)
	}
	return rec, nil
}
