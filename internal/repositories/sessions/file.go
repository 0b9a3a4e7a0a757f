package sessions

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/clock"
)

const fileExt = ".json"

// FileConfig holds the configuration for the file repository
type FileConfig struct {
	Dir   string
	Clock clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *FileConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("dir", c.Dir, vb)
	if c.Clock == nil {
		vb.RequiredField("clock")
	}
	return vb.Build()
}

type fileRepository struct {
	dir   string
	clock clock.Clock
	mu    sync.Mutex
}

// NewFileRepository stores each session as <dir>/<id>.json
func NewFileRepository(cfg *FileConfig) (Repository, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &fileRepository{
		dir:   cfg.Dir,
		clock: cfg.Clock,
	}, nil
}

// Ensure fileRepository implements Repository
var _ Repository = (*fileRepository)(nil)

// Save writes to a temp file in the target directory and renames it into
// place, so a reader never sees a half-written document. The temp file is
// removed on every failure path.
func (r *fileRepository) Save(_ context.Context, input SaveInput) (*SaveOutput, error) {
	rec, err := prepare(input.Record, r.clock)
	if err != nil {
		return nil, err
	}
	path, err := r.path(rec.ID)
	if err != nil {
		return nil, err
	}

	data, err := rec.Encode()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create sessions directory %s", r.dir)
	}

	tmp, err := os.CreateTemp(r.dir, "."+rec.ID+"-*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return nil, errors.Wrap(err, "failed to write session")
	}
	if err := tmp.Sync(); err != nil {
		return nil, errors.Wrap(err, "failed to sync session")
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, errors.Wrapf(err, "failed to move session into %s", path)
	}
	committed = true

	slog.Debug("Session saved", "session_id", rec.ID, "path", path)
	return &SaveOutput{Summary: summaryOf(rec)}, nil
}

// Load reads one session document
func (r *fileRepository) Load(_ context.Context, input LoadInput) (*LoadOutput, error) {
	path, err := r.path(input.ID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("session %s not found", input.ID)
		}
		return nil, errors.Wrapf(err, "failed to read session %s", input.ID)
	}

	rec, err := decode(input.ID, data)
	if err != nil {
		return nil, err
	}
	return &LoadOutput{Record: rec}, nil
}

// List decodes every document in the directory. Unreadable documents are
// logged and skipped so one bad file does not hide the rest.
func (r *fileRepository) List(_ context.Context, input ListInput) (*ListOutput, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &ListOutput{}, nil
		}
		return nil, errors.Wrapf(err, "failed to read sessions directory %s", r.dir)
	}

	var out []Summary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != fileExt {
			continue
		}
		id := strings.TrimSuffix(name, fileExt)

		data, err := os.ReadFile(filepath.Join(r.dir, name))
		if err != nil {
			slog.Warn("Skipping unreadable session", "session_id", id, "error", err)
			continue
		}
		rec, err := decode(id, data)
		if err != nil {
			slog.Warn("Skipping corrupt session", "session_id", id, "error", err)
			continue
		}
		out = append(out, summaryOf(rec))
	}

	sortSummaries(out)
	if input.Limit > 0 && len(out) > input.Limit {
		out = out[:input.Limit]
	}
	return &ListOutput{Sessions: out}, nil
}

// Close is a no-op; the file repository holds no open handles
func (r *fileRepository) Close() error {
	return nil
}

// path maps an id to its document, refusing ids that would escape the
// directory
func (r *fileRepository) path(id string) (string, error) {
	if id == "" {
		return "", errors.InvalidArgument(errIDEmpty)
	}
	if id == "." || id == ".." || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) {
		return "", errors.InvalidArgumentf("session ID %q is not a valid file name", id)
	}
	return filepath.Join(r.dir, id+fileExt), nil
}

func sortSummaries(s []Summary) {
	slices.SortStableFunc(s, func(a, b Summary) int {
		if c := b.SavedAt.Compare(a.SavedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
