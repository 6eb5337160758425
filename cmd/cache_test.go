///////////////////////////////////////////////////////////////////////////////
// Copyright © 2020 xx network SEZC                                          //
//                                                                           //
// Use of this source code is governed by a license that can be found in the //
// LICENSE file                                                              //
///////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gitlab.com/lupyd/client/dm"
)

// Without redis or DynamoDB the query cache lives in the cache directory and
// survives reopening.
func Test_initPersistence_Directory(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set(cacheDirFlag, t.TempDir())
	viper.Set(passwordFlag, "hunter2")

	s, closeFn := initPersistence()
	require.NoError(t, s.Save("posts", []string{"a", "b"}))
	closeFn()

	s, closeFn = initPersistence()
	defer closeFn()
	var posts []string
	exists, err := s.Load("posts", &posts)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, []string{"a", "b"}, posts)
}

func Test_fetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/missing" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(`{"posts":["a"]}`))
		}))
	defer srv.Close()

	value, err := fetchJSON(context.Background(), srv.URL+"/posts")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"posts": []interface{}{"a"}}, value)

	_, err = fetchJSON(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
}

func Test_toMessageViews(t *testing.T) {
	views := toMessageViews([]dm.Message{{
		Content:        []byte("hi"),
		Timestamp:      100,
		From:           "alice",
		To:             "bob",
		ConversationID: 7,
	}})
	require.Equal(t, []messageView{{
		ConversationID: 7,
		Timestamp:      100,
		From:           "alice",
		To:             "bob",
		Content:        "hi",
	}}, views)
}
