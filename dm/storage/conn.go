////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 Privategrity Corporation                                   /
//                                                                             /
// All rights reserved.                                                        /
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"sync"

	jww "github.com/spf13/jwalterweatherman"
	"gorm.io/gorm"
)

// connState is the lifecycle state of a connection.
type connState uint8

const (
	closed connState = iota
	opening
	open
)

// String returns a human-readable form of the connState for logging.
func (s connState) String() string {
	switch s {
	case closed:
		return "Closed"
	case opening:
		return "Opening"
	case open:
		return "Open"
	default:
		return "Unknown"
	}
}

// openAttempt is one transition out of closed. Callers arriving while it is
// in flight wait on done and share its result.
type openAttempt struct {
	done chan struct{}
	db   *gorm.DB
	err  error
}

// connection lazily opens a database and memoizes the handle.
//
// States move Closed -> Opening -> Open. Any operation issued while Closed
// starts a new open; close moves back to Closed. A failed open also returns
// to Closed, so the next operation tries again.
type connection struct {
	openFn func() (*gorm.DB, error)

	state   connState
	db      *gorm.DB
	attempt *openAttempt
	mux     sync.Mutex
}

func newConnection(openFn func() (*gorm.DB, error)) *connection {
	return &connection{
		openFn: openFn,
		state:  closed,
	}
}

// get returns the open database, opening it first if needed.
func (c *connection) get() (*gorm.DB, error) {
	c.mux.Lock()
	switch c.state {
	case open:
		db := c.db
		c.mux.Unlock()
		return db, nil
	case opening:
		a := c.attempt
		c.mux.Unlock()
		<-a.done
		return a.db, a.err
	}

	a := &openAttempt{done: make(chan struct{})}
	c.attempt = a
	c.setState(opening)
	c.mux.Unlock()

	a.db, a.err = c.openFn()

	c.mux.Lock()
	if a.err != nil {
		c.setState(closed)
	} else {
		c.db = a.db
		c.setState(open)
	}
	c.attempt = nil
	c.mux.Unlock()

	close(a.done)
	return a.db, a.err
}

// close releases the database. An open in flight is allowed to finish and
// is then closed. Closing a closed connection is a no-op.
func (c *connection) close() error {
	c.mux.Lock()
	for c.state == opening {
		a := c.attempt
		c.mux.Unlock()
		<-a.done
		c.mux.Lock()
	}

	if c.state == closed {
		c.mux.Unlock()
		return nil
	}

	db := c.db
	c.db = nil
	c.setState(closed)
	c.mux.Unlock()

	sqlDb, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}

// getState returns the current state.
func (c *connection) getState() connState {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.state
}

// setState must be called with the lock held.
func (c *connection) setState(s connState) {
	jww.TRACE.Printf("[DM SQL] Connection %s -> %s", c.state, s)
	c.state = s
}
