package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// 文档注释：Redis 缓存后端
// 背景：多实例部署时共享已拉取的响应；过期交由 Redis TTL 处理。
// 约束：键带前缀以便与其他业务共存；rc 为 nil 时所有操作视为未命中且不写入。
type RedisStore struct {
	rc     *redis.Client
	prefix string
}

func NewRedis(rc *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pleiades:webi:"
	}
	return &RedisStore{rc: rc, prefix: prefix}
}

func (r *RedisStore) Get(ctx context.Context, k string) (Entry, bool, error) {
	if r.rc == nil {
		return Entry{}, false, nil
	}
	b, err := r.rc.Get(ctx, r.prefix+k).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrap(err, "redis get")
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		_ = r.rc.Del(ctx, r.prefix+k).Err()
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (r *RedisStore) Set(ctx context.Context, k string, e Entry, ttl time.Duration) error {
	if r.rc == nil || ttl <= 0 {
		return nil
	}
	e.Expires = time.Now().Add(ttl)
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "encode cache entry")
	}
	return errors.Wrap(r.rc.Set(ctx, r.prefix+k, b, ttl).Err(), "redis set")
}

func (r *RedisStore) Delete(ctx context.Context, k string) error {
	if r.rc == nil {
		return nil
	}
	return errors.Wrap(r.rc.Del(ctx, r.prefix+k).Err(), "redis del")
}
