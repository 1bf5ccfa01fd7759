package intervention

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/havenmind/sentinel/pkg/contracts"
)

const (
	redisActivePrefix  = "sentinel:intervention:active:"
	redisHistoryPrefix = "sentinel:intervention:history:"
	redisActiveSet     = "sentinel:interventions:active"
	redisHistorySet    = "sentinel:interventions:history"
)

// RedisStore keeps the intervention indices in Redis so active
// interventions survive process restarts and are visible across instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, iv *contracts.CrisisIntervention) error {
	data, err := json.Marshal(iv)
	if err != nil {
		return fmt.Errorf("marshal intervention %s: %w", iv.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisActivePrefix+iv.ID, data, 0)
	pipe.SAdd(ctx, redisActiveSet, iv.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store intervention %s: %w", iv.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*contracts.CrisisIntervention, bool, error) {
	return s.get(ctx, redisActivePrefix+id)
}

func (s *RedisStore) Archive(ctx context.Context, iv *contracts.CrisisIntervention) error {
	data, err := json.Marshal(iv)
	if err != nil {
		return fmt.Errorf("marshal intervention %s: %w", iv.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisActivePrefix+iv.ID)
	pipe.SRem(ctx, redisActiveSet, iv.ID)
	pipe.Set(ctx, redisHistoryPrefix+iv.ID, data, 0)
	pipe.SAdd(ctx, redisHistorySet, iv.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("archive intervention %s: %w", iv.ID, err)
	}
	return nil
}

func (s *RedisStore) GetArchived(ctx context.Context, id string) (*contracts.CrisisIntervention, bool, error) {
	return s.get(ctx, redisHistoryPrefix+id)
}

func (s *RedisStore) ActiveCount(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, redisActiveSet).Result()
	return int(n), err
}

func (s *RedisStore) ArchivedCount(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, redisHistorySet).Result()
	return int(n), err
}

func (s *RedisStore) get(ctx context.Context, key string) (*contracts.CrisisIntervention, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	var iv contracts.CrisisIntervention
	if err := json.Unmarshal(data, &iv); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return &iv, true, nil
}
