////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package persistence

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gitlab.com/lupyd/client/storage/versioned"
)

// newTestRedisKV connects to the server named by LUPYD_TEST_REDIS, skipping
// the test when it is unset.
func newTestRedisKV(t *testing.T) *RedisKV {
	addr := os.Getenv("LUPYD_TEST_REDIS")
	if addr == "" {
		t.Skip("LUPYD_TEST_REDIS not set")
	}
	client, err := NewRedisClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	// Each test writes under its own prefix so runs never collide
	return NewRedisKV(client, "lupyd-test:"+uuid.NewString()+":")
}

func TestRedisKV_Set_Get_Delete(t *testing.T) {
	kv := newTestRedisKV(t)

	_, err := kv.Get("k", 0)
	require.Error(t, err)
	require.False(t, kv.Exists(err))

	obj := &versioned.Object{Version: 0, Data: []byte("value")}
	require.NoError(t, kv.Set("k", obj))

	loaded, err := kv.Get("k", 0)
	require.NoError(t, err)
	require.Equal(t, obj.Data, loaded.Data)

	require.NoError(t, kv.Delete("k", 0))
	_, err = kv.Get("k", 0)
	require.False(t, kv.Exists(err))
}

func TestRedisKV_Store(t *testing.T) {
	s := NewStore(newTestRedisKV(t), GetDefaultParams())
	cache := mapCache{"posts": []post{{ID: "p1"}}}

	require.NoError(t, Dehydrate(s, cache, "posts", "posts-storage"))

	restored := mapCache{}
	require.NoError(t, Hydrate[[]post](s, restored, "posts", "posts-storage"))
	require.Equal(t, cache["posts"], restored["posts"])
	require.NoError(t, s.Delete("posts-storage"))
}

func TestRedisKV_Exists(t *testing.T) {
	kv := NewRedisKV(nil, "")
	require.False(t, kv.Exists(redis.Nil))
	require.True(t, kv.Exists(errBackend))
}

func TestRedisKV_makeKey(t *testing.T) {
	kv := NewRedisKV(nil, "lupyd:")
	require.Equal(t, "lupyd:posts_3", kv.makeKey("posts", 3))
}
