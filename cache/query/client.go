////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package query caches the results of remote queries in memory, keyed by a
// query key, and optionally persists them through a persistence.Store.
package query

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the current data of a query.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Params configures a Client.
type Params struct {
	// StaleTime is how long fetched data is served without fetching again.
	StaleTime time.Duration

	// Retry is the number of extra attempts after a failed fetch.
	Retry int

	// RetryDelay is the pause between two attempts.
	RetryDelay time.Duration
}

// GetDefaultParams returns the default Params: data stays fresh for two
// minutes and a failed fetch is retried once.
func GetDefaultParams() Params {
	return Params{
		StaleTime:  2 * time.Minute,
		Retry:      1,
		RetryDelay: 0,
	}
}

type entry struct {
	data        interface{}
	updatedAt   time.Time
	invalidated bool
}

// Client is an in-memory query cache. It is safe for concurrent use.
type Client struct {
	params  Params
	entries map[string]*entry
	group   singleflight.Group
	now     func() time.Time
	mux     sync.RWMutex
}

// NewClient returns an empty Client.
func NewClient(params Params) *Client {
	return &Client{
		params:  params,
		entries: make(map[string]*entry),
		now:     netTime.Now,
	}
}

// GetQueryData returns the data cached at key.
func (c *Client) GetQueryData(key string) (interface{}, bool) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	e, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	return e.data, true
}

// SetQueryData caches data at key as freshly fetched.
func (c *Client) SetQueryData(key string, data interface{}) {
	c.SetQueryDataAt(key, data, c.now())
}

// SetQueryDataAt caches data at key as fetched at updatedAt, so data restored
// from storage keeps the age it had when it was saved.
func (c *Client) SetQueryDataAt(key string, data interface{},
	updatedAt time.Time) {
	jww.TRACE.Printf("[QUERY] SetQueryDataAt(%s, %s)", key, updatedAt)
	c.mux.Lock()
	defer c.mux.Unlock()
	c.entries[key] = &entry{data: data, updatedAt: updatedAt}
}

// GetTyped returns the data cached at key if it holds a T.
func GetTyped[T any](c *Client, key string) (T, bool) {
	var zero T
	data, exists := c.GetQueryData(key)
	if !exists {
		return zero, false
	}
	typed, ok := data.(T)
	if !ok {
		jww.WARN.Printf("[QUERY] Data at %s is %T, not %T", key, data, zero)
		return zero, false
	}
	return typed, true
}

// IsStale reports whether the data at key is missing, invalidated or older
// than StaleTime.
func (c *Client) IsStale(key string) bool {
	c.mux.RLock()
	defer c.mux.RUnlock()
	e, exists := c.entries[key]
	return !exists || c.isStale(e)
}

func (c *Client) isStale(e *entry) bool {
	return e.invalidated || c.now().Sub(e.updatedAt) >= c.params.StaleTime
}

// Fetch returns the data at key, calling fn when the cached data is stale.
// Concurrent fetches of one key share a single call of fn. The shared call
// does not observe the cancellation of any caller; a caller whose ctx is done
// stops waiting and the others still receive the result. A failed fetch keeps
// the previous data.
func (c *Client) Fetch(ctx context.Context, key string, fn FetchFunc) (
	interface{}, error) {
	c.mux.RLock()
	e, exists := c.entries[key]
	if exists && !c.isStale(e) {
		c.mux.RUnlock()
		jww.TRACE.Printf("[QUERY] Serving fresh data for %s", key)
		return e.data, nil
	}
	c.mux.RUnlock()

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.fetch(detached, key, fn)
	})

	select {
	case res := <-ch:
		if res.Shared {
			jww.TRACE.Printf("[QUERY] Shared fetch of %s", key)
		}
		return res.Val, res.Err
	case <-ctx.Done():
		jww.DEBUG.Printf("[QUERY] Stopped waiting for fetch of %s", key)
		return nil, errors.WithMessagef(ctx.Err(),
			"[QUERY] fetch of %s abandoned", key)
	}
}

func (c *Client) fetch(ctx context.Context, key string, fn FetchFunc) (
	interface{}, error) {
	var err error
	for attempt := 0; attempt <= c.params.Retry; attempt++ {
		if attempt > 0 && c.params.RetryDelay > 0 {
			time.Sleep(c.params.RetryDelay)
		}

		var data interface{}
		data, err = fn(ctx)
		if err == nil {
			c.SetQueryData(key, data)
			jww.DEBUG.Printf("[QUERY] Fetched %s", key)
			return data, nil
		}
		jww.WARN.Printf("[QUERY] Attempt %d to fetch %s failed: %+v",
			attempt+1, key, err)
	}
	return nil, errors.WithMessagef(err, "[QUERY] failed to fetch %s", key)
}

// Invalidate marks the data at key stale so the next Fetch calls its fetch
// function. The data stays readable.
func (c *Client) Invalidate(key string) {
	jww.TRACE.Printf("[QUERY] Invalidate(%s)", key)
	c.mux.Lock()
	defer c.mux.Unlock()
	if e, exists := c.entries[key]; exists {
		e.invalidated = true
	}
}

// Remove drops the data at key.
func (c *Client) Remove(key string) {
	c.mux.Lock()
	defer c.mux.Unlock()
	delete(c.entries, key)
}

// Clear drops all cached data.
func (c *Client) Clear() {
	jww.DEBUG.Printf("[QUERY] Clearing all queries")
	c.mux.Lock()
	defer c.mux.Unlock()
	c.entries = make(map[string]*entry)
}
