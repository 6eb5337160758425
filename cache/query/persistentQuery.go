////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package query

import (
	"context"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/lupyd/client/storage/persistence"
)

// PersistentQuery binds a query key of a Client to a storage key of a
// persistence.Store. Saved data seeds the client on Hydrate, and every
// successful Fetch is saved.
type PersistentQuery[T any] struct {
	client     *Client
	store      *persistence.Store
	queryKey   string
	storageKey string
	fetch      func(ctx context.Context) (T, error)
}

// NewPersistentQuery returns a PersistentQuery fetching with fetch.
func NewPersistentQuery[T any](client *Client, store *persistence.Store,
	queryKey, storageKey string,
	fetch func(ctx context.Context) (T, error)) *PersistentQuery[T] {
	return &PersistentQuery[T]{
		client:     client,
		store:      store,
		queryKey:   queryKey,
		storageKey: storageKey,
		fetch:      fetch,
	}
}

// Hydrate seeds the client with the saved data, if any. The data keeps the
// age it had when saved, so data older than StaleTime is refetched by the
// next Fetch.
func (q *PersistentQuery[T]) Hydrate() error {
	err := persistence.Hydrate[T](q.store, q.client, q.queryKey, q.storageKey)
	if err != nil {
		jww.ERROR.Printf("[QUERY] Failed to hydrate %s: %+v", q.queryKey, err)
	}
	return err
}

// Fetch returns the data of the query, fetching it when stale, and saves it.
// A failure to save is logged and does not fail the fetch.
func (q *PersistentQuery[T]) Fetch(ctx context.Context) (T, error) {
	var zero T
	data, err := q.client.Fetch(ctx, q.queryKey,
		func(ctx context.Context) (interface{}, error) {
			result, err := q.fetch(ctx)
			if err != nil {
				return nil, err
			}
			return result, nil
		})
	if err != nil {
		return zero, err
	}

	typed, ok := data.(T)
	if !ok {
		return zero, errors.Errorf("[QUERY] data at %s is %T, not %T",
			q.queryKey, data, zero)
	}

	err = persistence.Dehydrate(q.store, q.client, q.queryKey, q.storageKey)
	if err != nil {
		jww.ERROR.Printf("[QUERY] Failed to persist %s: %+v", q.queryKey, err)
	}
	return typed, nil
}

// Data returns the cached data of the query without fetching.
func (q *PersistentQuery[T]) Data() (T, bool) {
	return GetTyped[T](q.client, q.queryKey)
}
