////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package page

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// Without cached content the first render seeds the cache once.
func TestWrapper_Content_Seed(t *testing.T) {
	c := NewCache[string]()
	w := Mount(c, "home", nil)
	require.False(t, w.HasCached())

	require.Equal(t, "render 1", w.Content("render 1"))
	require.Equal(t, "render 2", w.Content("render 2"))

	// Later renders of the same mount do not rewrite the cache
	content, exists := c.Get("home")
	require.True(t, exists)
	require.Equal(t, "render 1", content)
}

// A mount with cached content shows it and leaves the cache alone.
func TestWrapper_Content_Cached(t *testing.T) {
	c := NewCache[string]()
	c.Set("home", "cached")

	w := Mount(c, "home", nil)
	require.True(t, w.HasCached())
	require.Equal(t, "cached", w.Content("fresh"))
	require.Equal(t, "cached", w.Content("fresher"))

	content, _ := c.Get("home")
	require.Equal(t, "cached", content)
}

// Remounting sees what the previous mount left behind.
func TestWrapper_Remount(t *testing.T) {
	c := NewCache[string]()
	first := Mount(c, "home", nil)
	first.Content("first visit")

	second := Mount(c, "home", nil)
	require.True(t, second.HasCached())
	require.Equal(t, "first visit", second.Content("second visit"))

	c.Clear("home")
	third := Mount(c, "home", nil)
	require.False(t, third.HasCached())
	require.Equal(t, "third visit", third.Content("third visit"))
}

// A successful refresh overwrites the cache with the latest content.
func TestWrapper_Refresh(t *testing.T) {
	c := NewCache[string]()
	c.Set("feed", "old")

	var calls int
	w := Mount(c, "feed", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, w.Refresh(context.Background(), "new"))
	require.Equal(t, 1, calls)

	content, _ := c.Get("feed")
	require.Equal(t, "new", content)

	// Refreshing again overwrites again
	require.NoError(t, w.Refresh(context.Background(), "newer"))
	content, _ = c.Get("feed")
	require.Equal(t, "newer", content)
}

// A failed refresh leaves the cached content in place.
func TestWrapper_Refresh_Error(t *testing.T) {
	c := NewCache[string]()
	c.Set("feed", "old")

	expected := errors.New("network down")
	w := Mount(c, "feed", func(context.Context) error { return expected })
	err := w.Refresh(context.Background(), "new")
	require.ErrorIs(t, err, expected)

	content, _ := c.Get("feed")
	require.Equal(t, "old", content)
}

// A refresh before the first render counts as the seed.
func TestWrapper_Refresh_BeforeContent(t *testing.T) {
	c := NewCache[string]()

	w := Mount(c, "feed", nil)
	require.NoError(t, w.Refresh(context.Background(), "refreshed"))

	require.Equal(t, "render", w.Content("render"))
	content, _ := c.Get("feed")
	require.Equal(t, "refreshed", content)
}
