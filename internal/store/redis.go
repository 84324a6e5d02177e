package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps each timeline under <prefix>tl:<name> and indexes
// names in the sorted set <prefix>index, scored by modification time.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client, prefix: opts.Prefix}, nil
}

func (s *RedisStore) key(name string) string { return s.prefix + "tl:" + name }
func (s *RedisStore) index() string          { return s.prefix + "index" }

func (s *RedisStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(name), data, 0)
		p.ZAdd(ctx, s.index(), redis.Z{Score: float64(time.Now().UnixMilli()), Member: name})
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.key(name))
		p.ZRem(ctx, s.index(), name)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Info, error) {
	entries, err := s.client.ZRangeWithScores(ctx, s.index(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	sizes := make([]*redis.IntCmd, len(entries))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, z := range entries {
			sizes[i] = p.StrLen(ctx, s.key(z.Member.(string)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Info, len(entries))
	for i, z := range entries {
		out[i] = Info{
			Name:     z.Member.(string),
			Size:     sizes[i].Val(),
			Modified: time.UnixMilli(int64(z.Score)),
		}
	}
	sortInfos(out)
	return out, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
