////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package dm defines the direct message types shared by the local message
// stores and their callers.
package dm

// Message is a single direct message as kept in local storage. A Message is
// immutable once stored.
//
// A conversation is directed: messages from A to B and from B to A belong to
// two different (From, To) pairs and are never merged by the stores. Callers
// wanting both directions must query both pairs.
type Message struct {
	// Encrypted or plain message body; opaque to the store
	Content []byte

	// Unique per conversation; the caller must guarantee monotonicity
	Timestamp int64

	From string
	To   string

	ConversationID int64
}

// MessageNotification is a pending notification for a direct message that
// has not been read yet.
type MessageNotification struct {
	MessageID      int64
	ConversationID int64

	// The other party of the conversation
	Other string

	Text     []byte
	SentByMe bool
}

// MessageStore is the durable, queryable store of direct messages.
//
// Messages are keyed by (ConversationID, Timestamp) and additionally ordered
// by (From, To, Timestamp) so the most recent messages of a directed pair can
// be read without scanning the whole store.
type MessageStore interface {
	// StoreMessage inserts msg. Storing a second message with the same
	// (ConversationID, Timestamp) fails with ErrConstraintViolation.
	StoreMessage(msg Message) error

	// GetLastMessages returns up to count messages sent from "from" to
	// "to", most recent first. A count of zero or less uses
	// DefaultMessageCount.
	GetLastMessages(from, to string, count int) ([]Message, error)

	// GetLastMessagesBefore is GetLastMessages restricted to messages with
	// a timestamp strictly lower than before. It is used to page backwards
	// through a conversation.
	GetLastMessagesBefore(from, to string, count int, before int64) (
		[]Message, error)

	// GetLastMessage returns the most recent message from "from" to "to",
	// or nil if there is none.
	GetLastMessage(from, to string) (*Message, error)

	// GetLastMessagesFromAllConversations returns the most recent message
	// of every distinct (From, To) pair in the store.
	GetLastMessagesFromAllConversations() ([]Message, error)

	// Close releases the underlying connection. Any later call reopens it.
	Close() error
}

// NotificationStore keeps the backlog of unread message notifications.
type NotificationStore interface {
	// PutNotification inserts n, replacing any notification with the same
	// (ConversationID, MessageID).
	PutNotification(n MessageNotification) error

	// GetNotificationsFromUser returns the notifications of the
	// conversation with other, oldest first. A limit of zero or less
	// returns all of them.
	GetNotificationsFromUser(other string, limit int) (
		[]MessageNotification, error)

	// GetAllNotifications returns every stored notification.
	GetAllNotifications() ([]MessageNotification, error)

	// DeleteAllNotifications removes every stored notification.
	DeleteAllNotifications() error

	// DeleteNotificationsUntil removes the notifications of the
	// conversation with other up to and including messageID.
	DeleteNotificationsUntil(other string, messageID int64) error
}

// DefaultMessageCount is the number of messages returned by GetLastMessages
// when no positive count is given.
const DefaultMessageCount = 10
