package sessions

import (
	"context"
	"fmt"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/rpg-dm/internal/redis"
)

const (
	// Key pattern: session:{id}
	sessionKeyPrefix = "session:"
	// Sorted set of session ids scored by save time in milliseconds
	sessionIndexKey = "sessions:index"
)

// RedisConfig holds the configuration for the Redis repository
type RedisConfig struct {
	Client redisclient.Client
	Clock  clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *RedisConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Client == nil {
		vb.RequiredField("client")
	}
	if c.Clock == nil {
		vb.RequiredField("clock")
	}
	return vb.Build()
}

type redisRepository struct {
	client redisclient.Client
	clock  clock.Clock
}

// NewRedisRepository creates a new Redis repository for session records
func NewRedisRepository(cfg *RedisConfig) (Repository, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &redisRepository{
		client: cfg.Client,
		clock:  cfg.Clock,
	}, nil
}

// Ensure redisRepository implements Repository
var _ Repository = (*redisRepository)(nil)

// Save writes the document and its index entry in one transaction
func (r *redisRepository) Save(ctx context.Context, input SaveInput) (*SaveOutput, error) {
	rec, err := prepare(input.Record, r.clock)
	if err != nil {
		return nil, err
	}

	data, err := rec.Encode()
	if err != nil {
		return nil, err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.buildKey(rec.ID), data, 0)
	pipe.ZAdd(ctx, sessionIndexKey, redis.Z{
		Score:  float64(rec.SavedAt.UnixMilli()),
		Member: rec.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to store session %s in Redis", rec.ID)
	}

	return &SaveOutput{Summary: summaryOf(rec)}, nil
}

// Load retrieves a session document
func (r *redisRepository) Load(ctx context.Context, input LoadInput) (*LoadOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errIDEmpty)
	}

	data, err := r.client.Get(ctx, r.buildKey(input.ID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("session %s not found", input.ID)
		}
		return nil, errors.Wrapf(err, "failed to get session %s from Redis", input.ID)
	}

	rec, err := decode(input.ID, data)
	if err != nil {
		return nil, err
	}
	return &LoadOutput{Record: rec}, nil
}

// List walks the index newest first. Index entries whose document is gone
// and documents that fail to decode are left out.
func (r *redisRepository) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	stop := int64(-1)
	if input.Limit > 0 {
		stop = int64(input.Limit) - 1
	}

	ids, err := r.client.ZRevRange(ctx, sessionIndexKey, 0, stop).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read session index")
	}
	if len(ids) == 0 {
		return &ListOutput{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.buildKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sessions")
	}

	out := make([]Summary, 0, len(ids))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decode(ids[i], []byte(s))
		if err != nil {
			slog.Warn("Skipping corrupt session", "session_id", ids[i], "error", err)
			continue
		}
		out = append(out, summaryOf(rec))
	}

	sortSummaries(out)
	return &ListOutput{Sessions: out}, nil
}

// Close is a no-op; the client is owned by the caller
func (r *redisRepository) Close() error {
	return nil
}

// buildKey creates the Redis key for a session
func (r *redisRepository) buildKey(id string) string {
	return fmt.Sprintf("%s%s", sessionKeyPrefix, id)
}
