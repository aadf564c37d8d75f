package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps the shared redis client. A nil Store degrades gracefully: locks
// always acquire, so single-node deployments and tests run without redis.
type Store struct {
	Client *redis.Client
}

func NewStore(addr, password string, db int) *Store {
	return &Store{Client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Ping(ctx).Err()
}

func turnLockKey(conversationID string) string {
	return "deskbell:turn:" + conversationID
}

// AcquireTurnLock serializes message processing per conversation. The TTL
// bounds how long a crashed turn can block the next one.
func (s *Store) AcquireTurnLock(ctx context.Context, conversationID string, ttl time.Duration) (bool, error) {
	if s == nil || s.Client == nil {
		return true, nil
	}
	return s.Client.SetNX(ctx, turnLockKey(conversationID), 1, ttl).Result()
}

func (s *Store) ReleaseTurnLock(ctx context.Context, conversationID string) error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Del(ctx, turnLockKey(conversationID)).Err()
}

func (s *Store) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Close()
}
