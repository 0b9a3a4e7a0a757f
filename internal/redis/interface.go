package redis

import (
	"github.com/redis/go-redis/v9"
)

// Client is the subset of go-redis the stores depend on. It is satisfied by
// *redis.Client and by the miniredis-backed client used in tests.
type Client interface {
	redis.UniversalClient
}
