////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 Privategrity Corporation                                   /
//                                                                             /
// All rights reserved.                                                        /
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"database/sql"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/lupyd/client/dm"
)

// decodeFunc reads the current row of rows into a T. An error marks the row
// as malformed.
type decodeFunc[T any] func(rows *sql.Rows) (T, error)

// cursor walks the rows of an index scan one at a time. Rows that fail to
// decode are logged and skipped, so a single bad entry never aborts a scan.
type cursor[T any] struct {
	rows    *sql.Rows
	decode  decodeFunc[T]
	current T
	skipped int
}

func newCursor[T any](rows *sql.Rows, decode decodeFunc[T]) *cursor[T] {
	return &cursor[T]{rows: rows, decode: decode}
}

// Next advances to the next well-formed row. It returns false once the rows
// are exhausted or the scan failed; check Err to tell them apart.
func (c *cursor[T]) Next() bool {
	for c.rows.Next() {
		v, err := c.decode(c.rows)
		if err != nil {
			c.skipped++
			jww.WARN.Printf("[DM SQL] Skipping malformed index entry: %+v",
				err)
			continue
		}
		c.current = v
		return true
	}
	return false
}

// Value returns the row decoded by the last successful call to Next.
func (c *cursor[T]) Value() T {
	return c.current
}

// Skipped returns the number of malformed rows discarded so far.
func (c *cursor[T]) Skipped() int {
	return c.skipped
}

// Err returns the error, if any, that ended the scan.
func (c *cursor[T]) Err() error {
	return c.rows.Err()
}

// Close releases the rows. It is safe to call after the rows are exhausted.
func (c *cursor[T]) Close() error {
	return c.rows.Close()
}

// pairKey is an entry of the from_to index.
type pairKey struct {
	from, to string
}

// decodePairKey reads a (mfrom, mto) row. Both parties must be non-empty
// strings.
func decodePairKey(rows *sql.Rows) (pairKey, error) {
	var from, to sql.NullString
	if err := rows.Scan(&from, &to); err != nil {
		return pairKey{}, err
	}
	if !from.Valid || !to.Valid || from.String == "" || to.String == "" {
		return pairKey{}, errors.Errorf(
			"invalid pair key (%q, %q)", from.String, to.String)
	}
	return pairKey{from: from.String, to: to.String}, nil
}

// messageColumns is the column order expected by decodeMessage.
var messageColumns = []string{
	"conversation_id", "timestamp", "mfrom", "mto", "content"}

// decodeMessage reads a row selected with messageColumns.
func decodeMessage(rows *sql.Rows) (dm.Message, error) {
	var (
		conversationID, timestamp sql.NullInt64
		from, to                  sql.NullString
		content                   []byte
	)
	err := rows.Scan(&conversationID, &timestamp, &from, &to, &content)
	if err != nil {
		return dm.Message{}, err
	}
	if !conversationID.Valid || !timestamp.Valid {
		return dm.Message{}, errors.New("message key has a NULL component")
	}
	if !from.Valid || !to.Valid || from.String == "" || to.String == "" {
		return dm.Message{}, errors.Errorf(
			"invalid message parties (%q, %q)", from.String, to.String)
	}

	return dm.Message{
		Content:        content,
		Timestamp:      timestamp.Int64,
		From:           from.String,
		To:             to.String,
		ConversationID: conversationID.Int64,
	}, nil
}
