package refreshtokens

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces ledger keys.
const DefaultRedisPrefix = "tokenkeeper:refresh:"

// RedisRepository keeps one key per recorded token, holding the user ID and
// expiring together with the token. Expired entries disappear on their own.
type RedisRepository struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewRedisRepository(client redis.Cmdable, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisRepository) key(token string) string {
	return r.prefix + token
}

// Create stores token with a TTL that ends at expiresAt. A token that has
// already expired is not stored.
func (r *RedisRepository) Create(ctx context.Context, userID string, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Exists(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRepository) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts entries when their TTL runs out.
func (r *RedisRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
