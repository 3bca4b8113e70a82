package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow counts a hit and arms the window expiry in one step. A key that
// somehow lost its TTL is re-armed on the next hit instead of counting forever.
var incrWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisStore shares windows between API instances. The window starts at the
// first request and expires with the key.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", s.prefix, key)

	count, err := incrWindow.Run(ctx, s.client, []string{redisKey}, window.Milliseconds()).Int64()
	if err != nil {
		return true, fmt.Errorf("ratelimit incr: %w", err)
	}

	return count <= int64(max), nil
}
