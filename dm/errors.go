////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"github.com/pkg/errors"
)

// Error values returned by the message stores. Errors are wrapped with
// context, so compare them with errors.Is.
var (
	// ErrConstraintViolation is returned when a message with the same
	// (ConversationID, Timestamp) is already stored.
	ErrConstraintViolation = errors.New("message already exists")

	// ErrStorageUnavailable is returned when the underlying database cannot
	// be opened.
	ErrStorageUnavailable = errors.New("message storage unavailable")

	// ErrInvalidMessage is returned when a message is missing its sender or
	// recipient.
	ErrInvalidMessage = errors.New("message must have a sender and recipient")
)
