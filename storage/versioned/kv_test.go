///////////////////////////////////////////////////////////////////////////////
// Copyright © 2020 xx network SEZC                                          //
//                                                                           //
// Use of this source code is governed by a license that can be found in the //
// LICENSE file                                                              //
///////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"bytes"
	"testing"
	"time"

	"gitlab.com/elixxir/ekv"
)

// Getting a key that was never set must fail with a not-exists error.
func TestVersionedKV_Get_Err(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())
	result, err := vkv.Get("test", 0)
	if err == nil {
		t.Error("Getting a key that didn't exist should have" +
			" returned an error")
	}
	if vkv.Exists(err) {
		t.Errorf("Error should indicate a missing key: %+v", err)
	}
	if result != nil {
		t.Error("Getting a key that didn't exist shouldn't " +
			"have returned data")
	}
}

// Test that Set puts data in the store and Get reads it back.
func TestVersionedKV_Set_Get(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())
	original := Object{
		Version:   1,
		Timestamp: time.Now(),
		Data:      []byte("cached posts"),
	}
	if err := vkv.Set("posts", &original); err != nil {
		t.Fatal(err)
	}

	result, err := vkv.Get("posts", 1)
	if err != nil {
		t.Fatalf("Error getting something that should have been in: %v",
			err)
	}
	if !bytes.Equal(result.Data, original.Data) {
		t.Errorf("Unexpected data.\nexpected: %q\nreceived: %q",
			original.Data, result.Data)
	}

	// A different version is a different key
	if _, err = vkv.Get("posts", 0); err == nil {
		t.Error("Version 0 of the key should not exist")
	}
}

// Test that Delete removes the key.
func TestVersionedKV_Delete(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())
	if err := vkv.Set("posts", &Object{Data: []byte("data")}); err != nil {
		t.Fatal(err)
	}
	if err := vkv.Delete("posts", 0); err != nil {
		t.Fatalf("Delete error: %+v", err)
	}
	if _, err := vkv.Get("posts", 0); err == nil {
		t.Error("Deleted key should not exist")
	}
}

// Prefixed KVs share storage but not keys.
func TestVersionedKV_Prefix(t *testing.T) {
	vkv := NewKV(ekv.MakeMemstore())
	a := vkv.Prefix("a")
	b := vkv.Prefix("b").Prefix("c")

	if b.GetPrefix() != "b/c/" {
		t.Errorf("Unexpected prefix %q", b.GetPrefix())
	}
	if full := a.GetFullKey("key", 3); full != "a/key_3" {
		t.Errorf("Unexpected full key %q", full)
	}

	if err := a.Set("key", &Object{Data: []byte("a")}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Get("key", 0); err == nil {
		t.Error("Key set under prefix a should not be visible under b/c")
	}
	if _, err := vkv.Get("a/key", 0); err != nil {
		t.Errorf("Key should be visible from the root: %+v", err)
	}
}
