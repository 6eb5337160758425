////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"reflect"
	"testing"
	"time"
)

// Objects older than maxAge are expired; a non-positive maxAge never expires.
func TestObject_Expired(t *testing.T) {
	written := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	obj := &Object{Timestamp: written}

	tests := []struct {
		now     time.Time
		maxAge  time.Duration
		expired bool
	}{
		{written.Add(59 * time.Minute), time.Hour, false},
		{written.Add(time.Hour), time.Hour, false},
		{written.Add(61 * time.Minute), time.Hour, true},
		{written.Add(24 * 365 * time.Hour), 0, false},
		{written.Add(time.Hour), -time.Second, false},
	}

	for i, tt := range tests {
		if obj.Expired(tt.now, tt.maxAge) != tt.expired {
			t.Errorf("Expired(%s, %s) should be %t (%d)",
				tt.now, tt.maxAge, tt.expired, i)
		}
	}
}

func TestObject_Decode(t *testing.T) {
	obj := &Object{Data: []byte(`{"username":"alice","likes":3}`)}

	var decoded struct {
		Username string `json:"username"`
		Likes    int    `json:"likes"`
	}
	if err := obj.Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode: %+v", err)
	}
	if decoded.Username != "alice" || decoded.Likes != 3 {
		t.Errorf("Unexpected decoded payload: %+v", decoded)
	}

	malformed := &Object{Version: 2, Data: []byte("{not json")}
	if err := malformed.Decode(&decoded); err == nil {
		t.Error("Decoding a malformed payload should fail")
	}
}

func TestObject_Marshal_Unmarshal(t *testing.T) {
	original := &Object{
		Version:   1,
		Timestamp: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
		Data:      []byte(`["p1","p2"]`),
	}

	var restored Object
	if err := restored.Unmarshal(original.Marshal()); err != nil {
		t.Fatalf("Failed to unmarshal: %+v", err)
	}
	if !reflect.DeepEqual(*original, restored) {
		t.Errorf("Restored object %+v differs from %+v", restored, *original)
	}
}
