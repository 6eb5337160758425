////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/lupyd/client/storage/versioned"
)

// Determines maximum runtime of a redis round trip.
const redisTimeout = 3 * time.Second

// NewRedisClient connects to the redis server at addr and checks that it
// answers.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := newContext()
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", addr)
	}
	return client, nil
}

// RedisKV stores versioned objects in redis, so several clients can share
// one query cache.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV returns a RedisKV that namespaces its keys with prefix.
func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

// Get loads the object stored at key with the given version.
func (r *RedisKV) Get(key string, version uint64) (*versioned.Object, error) {
	key = r.makeKey(key, version)
	jww.TRACE.Printf("[PERSIST] redis get %s", key)

	ctx, cancel := newContext()
	defer cancel()
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	obj := &versioned.Object{}
	if err = obj.Unmarshal(data); err != nil {
		return nil, errors.Wrapf(err, "malformed object at %s", key)
	}
	return obj, nil
}

// Set writes object under key and its version.
func (r *RedisKV) Set(key string, object *versioned.Object) error {
	key = r.makeKey(key, object.Version)
	jww.TRACE.Printf("[PERSIST] redis set %s", key)

	ctx, cancel := newContext()
	defer cancel()
	return r.client.Set(ctx, key, object.Marshal(), 0).Err()
}

// Delete removes the object at key and version.
func (r *RedisKV) Delete(key string, version uint64) error {
	key = r.makeKey(key, version)
	jww.TRACE.Printf("[PERSIST] redis delete %s", key)

	ctx, cancel := newContext()
	defer cancel()
	return r.client.Del(ctx, key).Err()
}

// Exists returns false if the error indicates the element doesn't exist.
func (r *RedisKV) Exists(err error) bool {
	return !errors.Is(err, redis.Nil)
}

func (r *RedisKV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", r.prefix, key, version)
}

func newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisTimeout)
}
