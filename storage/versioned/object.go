////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Object is a JSON payload stored in a KV together with the version of its
// format and the time it was written. The write time drives expiry of saved
// entries and the staleness of data restored from them.
type Object struct {
	Version   uint64
	Timestamp time.Time
	Data      []byte
}

// Expired reports whether the object is older than maxAge at now. A
// non-positive maxAge never expires.
func (v *Object) Expired(now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && now.Sub(v.Timestamp) > maxAge
}

// Decode unmarshals the JSON payload into dest.
func (v *Object) Decode(dest interface{}) error {
	if err := json.Unmarshal(v.Data, dest); err != nil {
		return errors.Wrapf(err, "failed to decode version %d payload",
			v.Version)
	}
	return nil
}

// Unmarshal reads an Object back from its ekv.KeyValue encoding.
func (v *Object) Unmarshal(data []byte) error {
	return json.Unmarshal(data, v)
}

// Marshal encodes an Object for an ekv.KeyValue. The fields are plain
// values, so encoding never fails.
func (v *Object) Marshal() []byte {
	d, err := json.Marshal(v)
	if err != nil {
		jww.FATAL.Panicf("Failed to encode object written at %s: %+v",
			v.Timestamp, err)
	}
	return d
}
