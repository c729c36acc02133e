package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sakif/game-reviews/internal/apperror"
)

const redisKeyPrefix = "session:"

// RedisStore keeps sessions in Redis as JSON with a TTL, so several server
// instances can share them.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: redisKeyPrefix}
}

// NewRedisClient connects and pings with a short timeout so a bad address
// fails at startup rather than on the first login.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("session: pinging redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (Data, error) {
	if s.rdb == nil {
		return Data{}, errors.New("session: redis store not configured")
	}

	raw, err := s.rdb.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return Data{}, apperror.NotFound("session", id)
		}
		return Data{}, apperror.Storage("redis: loading session", err)
	}

	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("session: decoding %s: %w", id, err)
	}
	return d, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, d Data, ttl time.Duration) error {
	if s.rdb == nil {
		return errors.New("session: redis store not configured")
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("session: encoding %s: %w", id, err)
	}
	if err := s.rdb.Set(ctx, s.prefix+id, raw, ttl).Err(); err != nil {
		return apperror.Storage("redis: saving session", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if s.rdb == nil {
		return errors.New("session: redis store not configured")
	}
	if err := s.rdb.Del(ctx, s.prefix+id).Err(); err != nil {
		return apperror.Storage("redis: deleting session", err)
	}
	return nil
}
