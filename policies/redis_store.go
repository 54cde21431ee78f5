package policies

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps a QTable in redis, one hash per state under <prefix>:q:<state>,
// and the episode rewards in the list <prefix>:rewards. ForRun scopes a store to one run.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(addr, prefix string) *RedisStore {
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{
		Addr: addr,
	}), prefix)
}

func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "cab"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// ForRun returns the store of a single run, keyed under <prefix>:<run>
func (r *RedisStore) ForRun(run int) *RedisStore {
	return &RedisStore{
		client: r.client,
		prefix: r.prefix + ":" + strconv.Itoa(run),
	}
}

func (r *RedisStore) stateKey(state string) string {
	return r.prefix + ":q:" + state
}

func (r *RedisStore) rewardsKey() string {
	return r.prefix + ":rewards"
}

// SaveQTable replaces the stored table with q, states missing from q are removed
func (r *RedisStore) SaveQTable(ctx context.Context, q *QTable) error {
	stale, err := r.keys(ctx, r.stateKey("")+"*")
	if err != nil {
		return fmt.Errorf("saving q table: %w", err)
	}
	pipe := r.client.TxPipeline()
	if len(stale) > 0 {
		pipe.Del(ctx, stale...)
	}
	for _, state := range q.States() {
		values := make(map[string]interface{})
		for a, v := range q.Actions(state) {
			values[a] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if len(values) > 0 {
			pipe.HSet(ctx, r.stateKey(state), values)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving q table: %w", err)
	}
	return nil
}

func (r *RedisStore) keys(ctx context.Context, pattern string) ([]string, error) {
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// LoadQTable reads every state stored under the prefix
func (r *RedisStore) LoadQTable(ctx context.Context) (*QTable, error) {
	q := NewQTable()
	keyPrefix := r.stateKey("")
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		values, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		state := strings.TrimPrefix(key, keyPrefix)
		for a, raw := range values {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("value of %s in %s: %w", a, key, err)
			}
			q.Set(state, a, v)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning q table: %w", err)
	}
	return q, nil
}

func (r *RedisStore) PushEpisodeReward(ctx context.Context, reward float64) error {
	return r.client.RPush(ctx, r.rewardsKey(), strconv.FormatFloat(reward, 'g', -1, 64)).Err()
}

func (r *RedisStore) EpisodeRewards(ctx context.Context) ([]float64, error) {
	raw, err := r.client.LRange(ctx, r.rewardsKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	rewards := make([]float64, len(raw))
	for i, s := range raw {
		if rewards[i], err = strconv.ParseFloat(s, 64); err != nil {
			return nil, err
		}
	}
	return rewards, nil
}

// Clear removes every key under the prefix, the stores of all runs included
func (r *RedisStore) Clear(ctx context.Context) error {
	keys, err := r.keys(ctx, r.prefix+":*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
