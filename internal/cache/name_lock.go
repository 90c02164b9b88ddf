package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"

	"docchat/internal/app"
)

const defaultPollInterval = 100 * time.Millisecond

// releaseScript deletes the key only while it still holds the caller's token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redisv9.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redisv9.Cmd
}

// NameLock is an app.NameLocker shared by every process using the same Redis.
type NameLock struct {
	client       lockClient
	ttl          time.Duration
	pollInterval time.Duration
}

var _ app.NameLocker = (*NameLock)(nil)

func NewNameLock(client lockClient, ttl time.Duration) *NameLock {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &NameLock{
		client:       client,
		ttl:          ttl,
		pollInterval: defaultPollInterval,
	}
}

func (l *NameLock) Lock(ctx context.Context, name string) (func(), error) {
	key := l.key(name)
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", app.ErrTaskBusy, ctx.Err())
			}
			return nil, fmt.Errorf("redis acquire lock failed: %w", err)
		}
		if ok {
			return l.unlocker(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", app.ErrTaskBusy, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *NameLock) unlocker(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
				log.Printf("redis release lock %s failed: %v", key, err)
			}
		})
	}
}

func (l *NameLock) key(name string) string {
	return fmt.Sprintf("docchat:lock:document:%s", name)
}
