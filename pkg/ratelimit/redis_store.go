package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/observability/logging"
)

// admitScript runs the whole admission sequence server-side so it is atomic
// with respect to concurrent checks for the same key. Tickets live in a ZSET
// whose member is an opaque token and whose score is the expiry unix-milli:
//
//  1. ZREMRANGEBYSCORE drops tickets with expiresAt <= now (garbage collection)
//  2. ZCARD counts the live tickets
//  3. under max: ZADD a fresh ticket expiring at now+window, PEXPIRE the key
//
// Returns {allowed 0|1, live-count-before-insert}.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local token = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now)
local live = redis.call('ZCARD', key)
if live >= max then
  return {0, live}
end
redis.call('ZADD', key, now + window, token)
redis.call('PEXPIRE', key, window)
return {1, live}
`)

// RedisStoreConfig configures the Redis-backed ticket store.
type RedisStoreConfig struct {
	Address   string
	Password  string
	Database  int
	KeyPrefix string
}

// RedisTicketStore implements TicketStore on Redis. This is the store used
// in multi-node deployments where admission state must be shared.
type RedisTicketStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ TicketStore = (*RedisTicketStore)(nil)

// NewRedisTicketStore connects to Redis and verifies the connection.
func NewRedisTicketStore(config RedisStoreConfig) (*RedisTicketStore, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logging.Infof("RedisTicketStore connected to %s with prefix %s", config.Address, keyPrefix)

	return &RedisTicketStore{client: client, keyPrefix: keyPrefix}, nil
}

// Admit runs the atomic admission script for key.
func (s *RedisTicketStore) Admit(ctx context.Context, key string, now time.Time, window time.Duration, max int) (Admission, error) {
	res, err := admitScript.Run(ctx, s.client,
		[]string{s.keyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), max, uuid.NewString(),
	).Result()
	if err != nil {
		return Admission{}, fmt.Errorf("admission script failed: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return Admission{}, fmt.Errorf("unexpected admission script result: %v", res)
	}
	allowed, _ := vals[0].(int64)
	live, _ := vals[1].(int64)

	return Admission{Allowed: allowed == 1, Live: int(live)}, nil
}

// Close releases the Redis connection.
func (s *RedisTicketStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
