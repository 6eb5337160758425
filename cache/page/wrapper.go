////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package page

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// RefreshFunc reloads the data behind a page.
type RefreshFunc func(ctx context.Context) error

// Wrapper is one mount of a page. It shows the content cached when it was
// mounted, seeds the cache when there was none, and updates the cache after
// a successful refresh.
type Wrapper[V any] struct {
	cache     *Cache[V]
	key       string
	onRefresh RefreshFunc

	cached    V
	hasCached bool
	seeded    bool
	mux       sync.Mutex
}

// Mount checks cache for the content of key. A nil onRefresh makes Refresh
// only update the cache.
func Mount[V any](cache *Cache[V], key string,
	onRefresh RefreshFunc) *Wrapper[V] {
	w := &Wrapper[V]{
		cache:     cache,
		key:       key,
		onRefresh: onRefresh,
	}
	w.cached, w.hasCached = cache.Get(key)
	if w.hasCached {
		jww.DEBUG.Printf("[PAGE] Mounted %s with cached content", key)
	}
	return w
}

// Key returns the page key of the mount.
func (w *Wrapper[V]) Key() string {
	return w.key
}

// HasCached reports whether content was cached when the page was mounted.
func (w *Wrapper[V]) HasCached() bool {
	return w.hasCached
}

// Content returns the content to show: the content cached at mount time if
// there was any, otherwise latest. The first call of a mount without cached
// content stores latest in the cache; later calls do not write.
func (w *Wrapper[V]) Content(latest V) V {
	if w.hasCached {
		return w.cached
	}

	w.mux.Lock()
	defer w.mux.Unlock()
	if !w.seeded {
		w.cache.Set(w.key, latest)
		w.seeded = true
		jww.DEBUG.Printf("[PAGE] Seeded cache for %s", w.key)
	}
	return latest
}

// Refresh calls the refresh function and, if it succeeds, overwrites the
// cached content of the page with latest. A failed refresh leaves the cache
// untouched.
func (w *Wrapper[V]) Refresh(ctx context.Context, latest V) error {
	if w.onRefresh != nil {
		if err := w.onRefresh(ctx); err != nil {
			jww.ERROR.Printf("[PAGE] Refresh of %s failed: %+v", w.key, err)
			return errors.WithMessagef(err, "failed to refresh %s", w.key)
		}
	}

	w.cache.Set(w.key, latest)

	w.mux.Lock()
	w.seeded = true
	w.mux.Unlock()
	return nil
}
