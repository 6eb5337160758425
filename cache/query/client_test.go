////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package query

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	jww.SetStdoutThreshold(jww.LevelDebug)
	os.Exit(m.Run())
}

// newTestClient returns a Client whose clock is driven by the returned
// function.
func newTestClient(params Params) (*Client, func(d time.Duration)) {
	c := NewClient(params)
	now := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	var mux sync.Mutex
	c.now = func() time.Time {
		mux.Lock()
		defer mux.Unlock()
		return now
	}
	return c, func(d time.Duration) {
		mux.Lock()
		defer mux.Unlock()
		now = now.Add(d)
	}
}

func TestGetDefaultParams(t *testing.T) {
	p := GetDefaultParams()
	require.Equal(t, 2*time.Minute, p.StaleTime)
	require.Equal(t, 1, p.Retry)
}

func TestClient_SetQueryData_GetQueryData(t *testing.T) {
	c := NewClient(GetDefaultParams())

	_, exists := c.GetQueryData("posts")
	require.False(t, exists)

	c.SetQueryData("posts", []string{"a", "b"})
	data, exists := c.GetQueryData("posts")
	require.True(t, exists)
	require.Equal(t, []string{"a", "b"}, data)
}

func TestGetTyped(t *testing.T) {
	c := NewClient(GetDefaultParams())
	c.SetQueryData("posts", []string{"a"})

	posts, ok := GetTyped[[]string](c, "posts")
	require.True(t, ok)
	require.Equal(t, []string{"a"}, posts)

	_, ok = GetTyped[int](c, "posts")
	require.False(t, ok)

	_, ok = GetTyped[[]string](c, "missing")
	require.False(t, ok)
}

// Fresh data is served without calling the fetch function.
func TestClient_Fetch_Fresh(t *testing.T) {
	c, advance := newTestClient(GetDefaultParams())
	var calls int
	fn := func(context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	data, err := c.Fetch(context.Background(), "n", fn)
	require.NoError(t, err)
	require.Equal(t, 1, data)

	advance(time.Minute)
	data, err = c.Fetch(context.Background(), "n", fn)
	require.NoError(t, err)
	require.Equal(t, 1, data)
	require.False(t, c.IsStale("n"))

	advance(time.Minute)
	require.True(t, c.IsStale("n"))
	data, err = c.Fetch(context.Background(), "n", fn)
	require.NoError(t, err)
	require.Equal(t, 2, data)
	require.Equal(t, 2, calls)
}

// Concurrent fetches of one key call the fetch function once.
func TestClient_Fetch_Deduplicated(t *testing.T) {
	c := NewClient(GetDefaultParams())
	var calls int32
	release := make(chan struct{})
	started := make(chan struct{})
	fn := func(context.Context) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return "posts", nil
	}

	const callers = 8
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			data, err := c.Fetch(context.Background(), "posts", fn)
			if err != nil || data != "posts" {
				t.Errorf("Fetch returned %v, %+v", data, err)
			}
		}()
	}

	<-started
	// Give the remaining callers time to join the in-flight fetch
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// A failed fetch is retried once.
func TestClient_Fetch_Retry(t *testing.T) {
	c := NewClient(GetDefaultParams())
	var calls int
	data, err := c.Fetch(context.Background(), "posts",
		func(context.Context) (interface{}, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("timeout")
			}
			return "posts", nil
		})
	require.NoError(t, err)
	require.Equal(t, "posts", data)
	require.Equal(t, 2, calls)
}

// After the retries run out the error is returned and old data survives.
func TestClient_Fetch_Error(t *testing.T) {
	c := NewClient(GetDefaultParams())
	c.SetQueryData("posts", "old")
	c.Invalidate("posts")

	expected := errors.New("server down")
	var calls int
	_, err := c.Fetch(context.Background(), "posts",
		func(context.Context) (interface{}, error) {
			calls++
			return nil, expected
		})
	require.ErrorIs(t, err, expected)
	require.Equal(t, 2, calls)

	data, exists := c.GetQueryData("posts")
	require.True(t, exists)
	require.Equal(t, "old", data)
}

// A caller that gives up gets its context error; the fetch still completes
// and caches its result.
func TestClient_Fetch_Cancelled(t *testing.T) {
	c := NewClient(GetDefaultParams())
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	done := make(chan struct{})
	_, err := c.Fetch(ctx, "posts",
		func(fetchCtx context.Context) (interface{}, error) {
			defer close(done)
			cancel()
			<-release
			if err := fetchCtx.Err(); err != nil {
				t.Errorf("Fetch context done: %+v", err)
			}
			return "posts", nil
		})
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done
	require.Eventually(t, func() bool {
		data, exists := c.GetQueryData("posts")
		return exists && data == "posts"
	}, time.Second, 5*time.Millisecond)
}

// Two callers share one fetch. The first one cancelling does not fail the
// fetch for the second.
func TestClient_Fetch_SharedCancelled(t *testing.T) {
	c := NewClient(GetDefaultParams())
	var calls int32
	release := make(chan struct{})
	started := make(chan struct{})
	fn := func(ctx context.Context) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return "posts", nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctxA, "posts", fn)
		errA <- err
	}()
	<-started

	type result struct {
		data interface{}
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		data, err := c.Fetch(context.Background(), "posts", fn)
		resB <- result{data, err}
	}()
	// Give the second caller time to join the in-flight fetch
	time.Sleep(50 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	res := <-resB
	require.NoError(t, res.err)
	require.Equal(t, "posts", res.data)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// Data cached with an old timestamp is stale and refetched.
func TestClient_SetQueryDataAt(t *testing.T) {
	c, advance := newTestClient(GetDefaultParams())
	c.SetQueryDataAt("posts", "old", c.now().Add(-time.Hour))
	require.True(t, c.IsStale("posts"))

	c.SetQueryDataAt("recent", "new", c.now().Add(-time.Minute))
	require.False(t, c.IsStale("recent"))
	advance(time.Minute)
	require.True(t, c.IsStale("recent"))

	var calls int
	data, err := c.Fetch(context.Background(), "posts",
		func(context.Context) (interface{}, error) {
			calls++
			return "fetched", nil
		})
	require.NoError(t, err)
	require.Equal(t, "fetched", data)
	require.Equal(t, 1, calls)
}

func TestClient_Invalidate(t *testing.T) {
	c := NewClient(GetDefaultParams())
	c.SetQueryData("posts", "a")
	require.False(t, c.IsStale("posts"))

	c.Invalidate("posts")
	require.True(t, c.IsStale("posts"))

	data, exists := c.GetQueryData("posts")
	require.True(t, exists)
	require.Equal(t, "a", data)

	// Setting data makes it fresh again
	c.SetQueryData("posts", "b")
	require.False(t, c.IsStale("posts"))

	// Invalidating a missing key does nothing
	c.Invalidate("missing")
	require.True(t, c.IsStale("missing"))
}

func TestClient_Remove_Clear(t *testing.T) {
	c := NewClient(GetDefaultParams())
	c.SetQueryData("a", 1)
	c.SetQueryData("b", 2)

	c.Remove("a")
	_, exists := c.GetQueryData("a")
	require.False(t, exists)
	_, exists = c.GetQueryData("b")
	require.True(t, exists)

	c.Clear()
	_, exists = c.GetQueryData("b")
	require.False(t, exists)
}
