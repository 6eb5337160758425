////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"fmt"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
)

const PrefixSeparator = "/"

type root struct {
	data ekv.KeyValue
}

// KV stores versioned objects in an underlying ekv.KeyValue. Keys are
// namespaced by the chain of prefixes the KV was derived with.
type KV struct {
	r      *root
	prefix string
}

// NewKV creates a versioned key/value store backed by something implementing
// ekv.KeyValue.
func NewKV(data ekv.KeyValue) *KV {
	return &KV{r: &root{data: data}}
}

// Get loads the object stored at key with the given version. Use Exists on
// the returned error to tell a missing key apart from a storage failure.
func (v *KV) Get(key string, version uint64) (*Object, error) {
	key = v.makeKey(key, version)
	jww.TRACE.Printf("get %p with key %v", v.r.data, key)

	result := Object{}
	if err := v.r.data.Get(key, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes a given key from the data store.
func (v *KV) Delete(key string, version uint64) error {
	key = v.makeKey(key, version)
	jww.TRACE.Printf("delete %p with key %v", v.r.data, key)
	return v.r.data.Delete(key)
}

// Set upserts new data into the storage. The key is derived from the
// object's version, so callers must keep Version consistent between Set and
// Get.
func (v *KV) Set(key string, object *Object) error {
	key = v.makeKey(key, object.Version)
	jww.TRACE.Printf("set %p with key %v", v.r.data, key)
	return v.r.data.Set(key, object)
}

// GetPrefix returns the prefix of the KV.
func (v *KV) GetPrefix() string {
	return v.prefix
}

// Prefix returns a new KV sharing the same storage with the given prefix
// appended.
func (v *KV) Prefix(prefix string) *KV {
	return &KV{
		r:      v.r,
		prefix: v.prefix + prefix + PrefixSeparator,
	}
}

// IsMemStore reports whether the KV is backed by an in-memory store.
func (v *KV) IsMemStore() bool {
	_, success := v.r.data.(*ekv.Memstore)
	return success
}

// GetFullKey returns the key with all prefixes appended.
func (v *KV) GetFullKey(key string, version uint64) string {
	return v.makeKey(key, version)
}

func (v *KV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", v.prefix, key, version)
}

// Exists returns false if the error indicates the element doesn't
// exist.
func (v *KV) Exists(err error) bool {
	return ekv.Exists(err)
}
