////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package page remembers the last content shown for each page, so a page
// that is visited again can show it while fresh content loads. Content lives
// only as long as the process.
package page

import (
	"sync"

	jww "github.com/spf13/jwalterweatherman"
)

// Cache maps page keys to content. It is safe for concurrent use.
type Cache[V any] struct {
	pages map[string]V
	mux   sync.RWMutex
}

// NewCache returns an empty Cache.
func NewCache[V any]() *Cache[V] {
	return &Cache[V]{pages: make(map[string]V)}
}

// Set stores content for key, replacing any previous content.
func (c *Cache[V]) Set(key string, content V) {
	jww.TRACE.Printf("[PAGE] Set(%s)", key)
	c.mux.Lock()
	defer c.mux.Unlock()
	c.pages[key] = content
}

// Get returns the content stored for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	content, exists := c.pages[key]
	return content, exists
}

// Clear removes the content of key.
func (c *Cache[V]) Clear(key string) {
	jww.TRACE.Printf("[PAGE] Clear(%s)", key)
	c.mux.Lock()
	defer c.mux.Unlock()
	delete(c.pages, key)
}

// ClearAll removes all content.
func (c *Cache[V]) ClearAll() {
	jww.DEBUG.Printf("[PAGE] Clearing all pages")
	c.mux.Lock()
	defer c.mux.Unlock()
	c.pages = make(map[string]V)
}

// Len returns the number of cached pages.
func (c *Cache[V]) Len() int {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return len(c.pages)
}
