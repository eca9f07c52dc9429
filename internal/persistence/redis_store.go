package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/taskflow/pkg/api"
)

// DefaultRedisPrefix is used when NewRedisRunStore is given no prefix.
const DefaultRedisPrefix = "taskflow:"

// RedisRunStore is a RunStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>run:<id>              => gob-encoded run record
//	<prefix>idx:all               => SET of all run IDs
//	<prefix>idx:name:<name>       => SET of run IDs for a flow or segment name
//	<prefix>idx:kind:<kind>       => SET of run IDs for a run kind
//	<prefix>idx:status:<status>   => SET of run IDs for a given status
//
// Runs are saved once they finish, so index entries never go stale.
type RedisRunStore struct {
	client *redis.Client
	prefix string
}

var _ RunStore = (*RedisRunStore)(nil)

// NewRedisRunStore creates a RedisRunStore.
// prefix is optional but recommended (e.g. "taskflow:").
func NewRedisRunStore(client *redis.Client, prefix string) *RedisRunStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisRunStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisRunStore) keyRun(id string) string {
	return s.prefix + "run:" + id
}

func (s *RedisRunStore) keyAll() string {
	return s.prefix + "idx:all"
}

func (s *RedisRunStore) keyName(name string) string {
	return s.prefix + "idx:name:" + name
}

func (s *RedisRunStore) keyKind(kind api.RunKind) string {
	return s.prefix + "idx:kind:" + string(kind)
}

func (s *RedisRunStore) keyStatus(status api.Status) string {
	return s.prefix + "idx:status:" + string(status)
}

func (s *RedisRunStore) SaveRun(ctx context.Context, run *api.Run) error {
	data, err := EncodeRun(run)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keyRun(run.ID), data, 0)
	pipe.SAdd(ctx, s.keyAll(), run.ID)
	pipe.SAdd(ctx, s.keyName(run.Name), run.ID)
	pipe.SAdd(ctx, s.keyKind(run.Kind), run.ID)
	pipe.SAdd(ctx, s.keyStatus(run.Status), run.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisRunStore) GetRun(ctx context.Context, id string) (*api.Run, error) {
	data, err := s.client.Get(ctx, s.keyRun(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return DecodeRun(data)
}

func (s *RedisRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*api.Run, error) {
	var keys []string
	if filter.Name != "" {
		keys = append(keys, s.keyName(filter.Name))
	}
	if filter.Kind != "" {
		keys = append(keys, s.keyKind(filter.Kind))
	}
	if filter.Status != "" {
		keys = append(keys, s.keyStatus(filter.Status))
	}

	var (
		ids []string
		err error
	)
	switch len(keys) {
	case 0:
		ids, err = s.client.SMembers(ctx, s.keyAll()).Result()
	case 1:
		ids, err = s.client.SMembers(ctx, keys[0]).Result()
	default:
		ids, err = s.client.SInter(ctx, keys...).Result()
	}
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*api.Run{}, nil
		}
		return nil, err
	}
	if len(ids) == 0 {
		return []*api.Run{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.keyRun(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	runs := make([]*api.Run, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		run, err := DecodeRun(data)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	sortRuns(runs)
	return runs, nil
}
