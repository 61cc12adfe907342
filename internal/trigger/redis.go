package trigger

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces latch keys.
const DefaultRedisPrefix = "intake:trigger:"

var reclaimScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// RedisLatch stores latches as persistent keys without expiry.
type RedisLatch struct {
	client *redis.Client
	prefix string
}

// NewRedisLatch creates a latch over a connected client. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisLatch(client *redis.Client, prefix string) *RedisLatch {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisLatch{client: client, prefix: prefix}
}

func (l *RedisLatch) key(documentID string) string {
	return l.prefix + documentID
}

func (l *RedisLatch) Acquire(ctx context.Context, documentID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(documentID), string(Pending), 0).Result()
	if err != nil {
		return false, fmt.Errorf("latch acquire: %w", err)
	}
	return ok, nil
}

func (l *RedisLatch) Mark(ctx context.Context, documentID string, state State) error {
	if err := l.client.SetXX(ctx, l.key(documentID), string(state), 0).Err(); err != nil {
		return fmt.Errorf("latch mark: %w", err)
	}
	return nil
}

func (l *RedisLatch) Reclaim(ctx context.Context, documentID string) (bool, error) {
	n, err := reclaimScript.Run(ctx, l.client, []string{l.key(documentID)}, string(Failed), string(Pending)).Int()
	if err != nil {
		return false, fmt.Errorf("latch reclaim: %w", err)
	}
	return n == 1, nil
}
