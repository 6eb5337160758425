////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package persistence keeps query results across restarts. Values are JSON
// encoded into versioned.Object entries of a key-value backend, either a
// local ekv store or a shared redis server.
package persistence

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/lupyd/client/storage/versioned"
	"gitlab.com/xx_network/primitives/netTime"
)

// Format version of the stored JSON payloads.
const currentVersion = 0

// KV is the versioned key-value backend of a Store. It is implemented by
// versioned.KV and RedisKV.
type KV interface {
	Get(key string, version uint64) (*versioned.Object, error)
	Set(key string, object *versioned.Object) error
	Delete(key string, version uint64) error

	// Exists returns false if the error indicates the element doesn't exist.
	Exists(err error) bool
}

// QueryCache is the in-memory cache that Hydrate fills and Dehydrate reads.
type QueryCache interface {
	GetQueryData(key string) (interface{}, bool)
	SetQueryData(key string, data interface{})
}

// TimestampedQueryCache is a QueryCache that can be seeded with the time the
// data was originally fetched. Hydrate uses it so restored data keeps its age
// and goes stale on schedule.
type TimestampedQueryCache interface {
	QueryCache
	SetQueryDataAt(key string, data interface{}, updatedAt time.Time)
}

// Params configures a Store.
type Params struct {
	// MaxAge is how long a saved entry stays loadable. Zero keeps entries
	// until they are deleted.
	MaxAge time.Duration
}

// GetDefaultParams returns the default Params, which never expire entries.
func GetDefaultParams() Params {
	return Params{MaxAge: 0}
}

// Store is a durable map from storage keys to JSON values.
type Store struct {
	kv     KV
	params Params
	now    func() time.Time
}

// NewStore returns a Store writing to kv.
func NewStore(kv KV, params Params) *Store {
	return &Store{
		kv:     kv,
		params: params,
		now:    netTime.Now,
	}
}

// Save JSON encodes value and writes it under key.
func (s *Store) Save(key string, value interface{}) error {
	jww.TRACE.Printf("[PERSIST] Save(%s)", key)
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "[PERSIST] failed to encode %s", key)
	}
	return s.saveBytes(key, data)
}

// Load decodes the value saved under key into dest. It returns false and no
// error when nothing is saved under key or the entry expired.
func (s *Store) Load(key string, dest interface{}) (bool, error) {
	jww.TRACE.Printf("[PERSIST] Load(%s)", key)
	obj, exists, err := s.loadObject(key)
	if err != nil || !exists {
		return false, err
	}
	if err = obj.Decode(dest); err != nil {
		return false, errors.WithMessagef(err, "[PERSIST] failed to load %s",
			key)
	}
	return true, nil
}

// Delete removes the value saved under key. Deleting a missing key is not an
// error.
func (s *Store) Delete(key string) error {
	jww.TRACE.Printf("[PERSIST] Delete(%s)", key)
	err := s.kv.Delete(key, currentVersion)
	if err != nil && s.kv.Exists(err) {
		return errors.WithMessagef(err, "[PERSIST] failed to delete %s", key)
	}
	return nil
}

func (s *Store) saveBytes(key string, data []byte) error {
	obj := &versioned.Object{
		Version:   currentVersion,
		Timestamp: s.now(),
		Data:      data,
	}
	if err := s.kv.Set(key, obj); err != nil {
		return errors.WithMessagef(err, "[PERSIST] failed to save %s", key)
	}
	return nil
}

// loadObject returns the entry under key. Expired entries are removed and
// reported as missing.
func (s *Store) loadObject(key string) (*versioned.Object, bool, error) {
	obj, err := s.kv.Get(key, currentVersion)
	if err != nil {
		if !s.kv.Exists(err) {
			return nil, false, nil
		}
		return nil, false,
			errors.WithMessagef(err, "[PERSIST] failed to load %s", key)
	}

	if obj.Expired(s.now(), s.params.MaxAge) {
		jww.DEBUG.Printf("[PERSIST] Entry %s saved at %s expired", key,
			obj.Timestamp)
		if err = s.Delete(key); err != nil {
			jww.ERROR.Printf("%+v", err)
		}
		return nil, false, nil
	}

	return obj, true, nil
}

// Hydrate copies the value saved under storageKey into cache at queryKey.
// It does nothing when storageKey holds no value. A TimestampedQueryCache
// receives the time the value was saved, any other cache treats it as fresh.
func Hydrate[T any](s *Store, cache QueryCache, queryKey,
	storageKey string) error {
	jww.TRACE.Printf("[PERSIST] Hydrate(%s, %s)", queryKey, storageKey)
	obj, exists, err := s.loadObject(storageKey)
	if err != nil {
		return err
	}
	if !exists {
		jww.TRACE.Printf("[PERSIST] Nothing saved under %s", storageKey)
		return nil
	}

	var value T
	if err = obj.Decode(&value); err != nil {
		return errors.WithMessagef(err, "[PERSIST] failed to load %s",
			storageKey)
	}

	if tc, ok := cache.(TimestampedQueryCache); ok {
		tc.SetQueryDataAt(queryKey, value, obj.Timestamp)
	} else {
		cache.SetQueryData(queryKey, value)
	}
	jww.DEBUG.Printf("[PERSIST] Hydrated %s from %s saved at %s", queryKey,
		storageKey, obj.Timestamp)
	return nil
}

// Dehydrate saves the value cached at queryKey under storageKey. A missing
// or nil value never overwrites what is saved, and an unchanged value is not
// written again.
func Dehydrate(s *Store, cache QueryCache, queryKey, storageKey string) error {
	value, exists := cache.GetQueryData(queryKey)
	if !exists || isNil(value) {
		jww.TRACE.Printf("[PERSIST] No data cached at %s", queryKey)
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "[PERSIST] failed to encode %s", queryKey)
	}

	saved, exists, err := s.loadObject(storageKey)
	if err != nil {
		return err
	}
	if exists && bytes.Equal(saved.Data, data) {
		jww.TRACE.Printf("[PERSIST] %s unchanged", storageKey)
		return nil
	}

	if err = s.saveBytes(storageKey, data); err != nil {
		return err
	}
	jww.DEBUG.Printf("[PERSIST] Dehydrated %s to %s", queryKey, storageKey)
	return nil
}

// isNil reports whether v is nil or a nil pointer, map, slice or interface.
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface,
		reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
