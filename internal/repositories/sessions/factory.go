package sessions

import (
	"context"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/rpg-dm/internal/redis"
)

// Backend names accepted by New
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config selects and configures a backend
type Config struct {
	Backend    string
	Dir        string
	SQLitePath string
	RedisAddr  string
	Clock      clock.Clock
}

// Validate ensures the selected backend has what it needs
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateEnum("backend", c.Backend, []string{BackendFile, BackendRedis, BackendSQLite}, vb)
	if c.Clock == nil {
		vb.RequiredField("clock")
	}
	switch c.Backend {
	case BackendFile:
		errors.ValidateRequired("dir", c.Dir, vb)
	case BackendRedis:
		errors.ValidateRequired("redis_addr", c.RedisAddr, vb)
	case BackendSQLite:
		errors.ValidateRequired("sqlite_path", c.SQLitePath, vb)
	}
	return vb.Build()
}

// New builds the configured backend
func New(ctx context.Context, cfg *Config) (Repository, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session store config")
	}

	switch cfg.Backend {
	case BackendRedis:
		client, err := redisclient.NewClient(cfg.RedisAddr, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create redis client")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "redis at %s is unreachable", cfg.RedisAddr)
		}
		repo, err := NewRedisRepository(&RedisConfig{Client: client, Clock: cfg.Clock})
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &ownedClient{Repository: repo, client: client}, nil
	case BackendSQLite:
		return NewSQLiteRepository(ctx, &SQLiteConfig{Path: cfg.SQLitePath, Clock: cfg.Clock})
	default:
		return NewFileRepository(&FileConfig{Dir: cfg.Dir, Clock: cfg.Clock})
	}
}

// ownedClient closes a redis client the factory created
type ownedClient struct {
	Repository
	client redisclient.Client
}

func (o *ownedClient) Close() error {
	return o.client.Close()
}
