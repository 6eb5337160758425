////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 Privategrity Corporation                                   /
//                                                                             /
// All rights reserved.                                                        /
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/lupyd/client/dm"
	"gorm.io/gorm"
)

const (
	// Can be provided to SqlLite to create a temporary, in-memory DB.
	temporaryDbPath = "file:%s?mode=memory&cache=shared"

	// Determines maximum runtime (in seconds) of DB queries.
	dbTimeout = 3 * time.Second

	// Upper bound on the capacity reserved up front for a message scan;
	// count is caller supplied and may be arbitrarily large.
	maxPrealloc = 64
)

// newContext builds a context for database operations.
func newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

// buildMessage is a private helper that converts a dm.Message into its
// Message row.
func buildMessage(msg dm.Message) *Message {
	content := msg.Content
	if content == nil {
		content = []byte{}
	}
	return &Message{
		ConversationId: msg.ConversationID,
		Timestamp:      msg.Timestamp,
		From:           msg.From,
		To:             msg.To,
		Content:        content,
	}
}

// StoreMessage inserts msg. The indexes are updated by the same statement,
// so a message is visible through all of them or none.
func (s *Store) StoreMessage(msg dm.Message) error {
	jww.TRACE.Printf("[DM SQL] StoreMessage(%d, %d, %s -> %s)",
		msg.ConversationID, msg.Timestamp, msg.From, msg.To)

	if msg.From == "" || msg.To == "" {
		return errors.WithStack(dm.ErrInvalidMessage)
	}

	db, err := s.conn.get()
	if err != nil {
		return err
	}

	ctx, cancel := newContext()
	err = db.WithContext(ctx).Create(buildMessage(msg)).Error
	cancel()

	if err != nil {
		if isDuplicateKey(err) {
			return errors.WithMessagef(dm.ErrConstraintViolation,
				"conversation %d already has a message at %d: %+v",
				msg.ConversationID, msg.Timestamp, err)
		}
		return errors.WithMessage(err, "[DM SQL] failed to StoreMessage")
	}

	jww.DEBUG.Printf("[DM SQL] Successfully stored message (%d, %d)",
		msg.ConversationID, msg.Timestamp)
	return nil
}

// GetLastMessages returns up to count messages from "from" to "to", most
// recent first.
func (s *Store) GetLastMessages(from, to string, count int) (
	[]dm.Message, error) {
	return s.getLastMessages(from, to, count, nil)
}

// GetLastMessagesBefore returns up to count messages from "from" to "to"
// with a timestamp strictly lower than before, most recent first.
func (s *Store) GetLastMessagesBefore(from, to string, count int,
	before int64) ([]dm.Message, error) {
	return s.getLastMessages(from, to, count, &before)
}

// GetLastMessage returns the most recent message from "from" to "to", or nil
// if the pair has no messages.
func (s *Store) GetLastMessage(from, to string) (*dm.Message, error) {
	messages, err := s.getLastMessages(from, to, 1, nil)
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	return &messages[0], nil
}

// GetLastMessagesFromAllConversations walks the distinct (from, to) pairs of
// the from_to index in ascending order and returns the most recent message
// of each.
func (s *Store) GetLastMessagesFromAllConversations() ([]dm.Message, error) {
	jww.TRACE.Printf("[DM SQL] GetLastMessagesFromAllConversations()")

	pairs, err := s.getConversationPairs()
	if err != nil {
		return nil, err
	}

	lastMessages := make([]dm.Message, 0, len(pairs))
	for _, pair := range pairs {
		msg, err := s.GetLastMessage(pair.from, pair.to)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			lastMessages = append(lastMessages, *msg)
		}
	}
	return lastMessages, nil
}

// Close releases the database connection. The next operation reopens it.
func (s *Store) Close() error {
	jww.DEBUG.Printf("[DM SQL] Closing database")
	return s.conn.close()
}

// getLastMessages walks the to_and_from index backwards from before (or from
// the end of the pair) and collects up to count well-formed messages.
func (s *Store) getLastMessages(from, to string, count int, before *int64) (
	[]dm.Message, error) {
	jww.TRACE.Printf("[DM SQL] getLastMessages(%s, %s, %d, %v)",
		from, to, count, before)

	if count <= 0 {
		count = dm.DefaultMessageCount
	}

	db, err := s.conn.get()
	if err != nil {
		return nil, err
	}

	ctx, cancel := newContext()
	defer cancel()

	query := db.WithContext(ctx).Model(&Message{}).
		Select(messageColumns).
		Where("mfrom = ? AND mto = ?", from, to)
	if before != nil {
		query = query.Where("timestamp < ?", *before)
	}

	rows, err := query.Order("timestamp DESC").Rows()
	if err != nil {
		return nil, errors.WithMessagef(err,
			"[DM SQL] failed to scan messages of %s -> %s", from, to)
	}

	c := newCursor(rows, decodeMessage)
	defer func() {
		if err := c.Close(); err != nil {
			jww.ERROR.Printf("[DM SQL] Failed to close cursor: %+v", err)
		}
	}()

	messages := make([]dm.Message, 0, min(count, maxPrealloc))
	for len(messages) < count && c.Next() {
		messages = append(messages, c.Value())
	}
	if err = c.Err(); err != nil {
		return nil, errors.WithMessagef(err,
			"[DM SQL] failed to scan messages of %s -> %s", from, to)
	}
	return messages, nil
}

// getConversationPairs returns every distinct (from, to) pair, skipping
// malformed index entries. The scan is finished before any message lookup
// runs, since the store uses a single connection.
func (s *Store) getConversationPairs() ([]pairKey, error) {
	db, err := s.conn.get()
	if err != nil {
		return nil, err
	}

	ctx, cancel := newContext()
	defer cancel()

	rows, err := db.WithContext(ctx).Model(&Message{}).
		Distinct("mfrom", "mto").
		Order("mfrom, mto").
		Rows()
	if err != nil {
		return nil, errors.WithMessage(err,
			"[DM SQL] failed to scan conversations")
	}

	c := newCursor(rows, decodePairKey)
	var pairs []pairKey
	for c.Next() {
		pairs = append(pairs, c.Value())
	}
	scanErr := c.Err()
	if err = c.Close(); err != nil {
		jww.ERROR.Printf("[DM SQL] Failed to close cursor: %+v", err)
	}
	if scanErr != nil {
		return nil, errors.WithMessage(scanErr,
			"[DM SQL] failed to scan conversations")
	}

	if c.Skipped() > 0 {
		jww.WARN.Printf("[DM SQL] Skipped %d malformed conversation keys",
			c.Skipped())
	}
	return pairs, nil
}

// isDuplicateKey reports whether err is a primary key or unique constraint
// violation.
func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
