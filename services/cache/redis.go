package cachesvc

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/shule/core"
)

// RedisCache stores each key as a hash of JSON encoded fields, expiring TTL after the last write.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ core.Cache = (*RedisCache)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisCache(client *redis.Client, conf *core.Config) *RedisCache {
	return &RedisCache{client: client, ttl: conf.Redis.TTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return errors.Wrap(c.client.Ping(ctx).Err(), "pinging redis")
}

// the generation of key lives beside it, without expiry, so that it survives Invalidate
func genKey(key string) string { return key + ":gen" }

func (c *RedisCache) Get(ctx context.Context, key, field string, dst interface{}) (bool, int64, error) {
	var hget *redis.StringCmd
	var gget *redis.StringCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hget = pipe.HGet(ctx, key, field)
		gget = pipe.Get(ctx, genKey(key))
		return nil
	})
	if err != nil && err != redis.Nil {
		return false, 0, errors.Wrap(err, "reading "+key)
	}

	gen, err := gget.Int64()
	if err != nil && err != redis.Nil {
		return false, 0, errors.Wrap(err, "reading "+key+" generation")
	}
	raw, err := hget.Bytes()
	if err == redis.Nil {
		return false, gen, nil
	}
	if err != nil {
		return false, gen, errors.Wrap(err, "reading "+key)
	}
	if err = json.Unmarshal(raw, dst); err != nil {
		return false, gen, errors.Wrap(err, "decoding "+key+" "+field)
	}
	return true, gen, nil
}

// KEYS: key, generation key. ARGV: generation, field, value, ttl in ms.
var setIfGeneration = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[2], ARGV[3])
if tonumber(ARGV[4]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[4])
end
return 1
`)

func (c *RedisCache) Set(ctx context.Context, key, field string, value interface{}, gen int64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding "+key+" "+field)
	}
	err = setIfGeneration.Run(ctx, c.client, []string{key, genKey(key)},
		strconv.FormatInt(gen, 10), field, raw, c.ttl.Milliseconds()).Err()
	return errors.Wrap(err, "writing "+key)
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		for _, key := range keys {
			pipe.Incr(ctx, genKey(key))
		}
		return nil
	})
	return errors.Wrap(err, "invalidating keys")
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
