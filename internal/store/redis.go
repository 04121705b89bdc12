package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	logx "hllstatus/pkg/logx"
)

// redisStore keeps one hash per server at <prefix>:messages:<server>.
type redisStore struct {
	rdb    *redis.Client
	prefix string
	log    logx.Logger
}

func openRedis(ctx context.Context, cfg Config, log logx.Logger) (Backend, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("store.addr is required for redis driver")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return newRedisStore(rdb, cfg.Prefix, log), nil
}

func newRedisStore(rdb *redis.Client, prefix string, log logx.Logger) *redisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "hllstatus"
	}
	return &redisStore{rdb: rdb, prefix: prefix, log: log}
}

func (s *redisStore) key(server string) string {
	return s.prefix + ":messages:" + server
}

func (s *redisStore) Load(ctx context.Context, server string) (Raw, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(server)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	out := make(Raw, len(fields))
	for k, v := range fields {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = n
		} else {
			out[k] = v
		}
	}
	return out, nil
}

func (s *redisStore) Save(ctx context.Context, server string, doc Document) error {
	key := s.key(server)
	values := make(map[string]any, len(doc))
	for k, v := range doc {
		values[k] = int64(v)
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
		}
		return nil
	})
	return err
}

func (s *redisStore) Close() error { return s.rdb.Close() }
