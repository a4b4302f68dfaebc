package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const redisProgressKey = "wtracker::workout_progress"

// RedisStore keeps the progress record under a single fixed key. There
// is one session at a time, so there is nothing to namespace.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Save(ctx context.Context, progress *WorkoutProgress) {
	if progress == nil {
		return
	}
	data, err := json.Marshal(progress)
	if err != nil {
		log.Errorf("redis progress store: marshal progress: %s", err)
		return
	}
	if err := s.rdb.Set(ctx, redisProgressKey, data, 0).Err(); err != nil {
		log.Errorf("redis progress store: save: %s", err)
	}
}

func (s *RedisStore) Load(ctx context.Context) *WorkoutProgress {
	data, err := s.rdb.Get(ctx, redisProgressKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Errorf("redis progress store: load: %s", err)
		}
		return nil
	}

	var progress WorkoutProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		log.Errorf("redis progress store: corrupt progress record: %s", err)
		return nil
	}
	return &progress
}

func (s *RedisStore) Clear(ctx context.Context) {
	if err := s.rdb.Del(ctx, redisProgressKey).Err(); err != nil {
		log.Errorf("redis progress store: clear: %s", err)
	}
}
