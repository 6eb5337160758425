///////////////////////////////////////////////////////////////////////////////
// Copyright © 2020 xx network SEZC                                          //
//                                                                           //
// Use of this source code is governed by a license that can be found in the //
// LICENSE file                                                              //
///////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/lupyd/client/cache/query"
	"gitlab.com/lupyd/client/storage/persistence"
	"gitlab.com/lupyd/client/storage/versioned"
)

const (
	queryCachePrefix = "queryCache"
	fetchTimeout     = 30 * time.Second
)

// cacheCmd groups the subcommands of the persistent query cache.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and edit the persistent query cache",
	Args:  cobra.NoArgs,
}

var cacheSaveCmd = &cobra.Command{
	Use:   "save [key] [json]",
	Short: "Saves a JSON value under a storage key",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, closeFn := initPersistence()
		defer closeFn()

		var value interface{}
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			jww.FATAL.Panicf("Value is not valid JSON: %+v", err)
		}
		if err := s.Save(args[0], value); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
	},
}

var cacheLoadCmd = &cobra.Command{
	Use:   "load [key]",
	Short: "Prints the value saved under a storage key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, closeFn := initPersistence()
		defer closeFn()

		var value interface{}
		exists, err := s.Load(args[0], &value)
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		if !exists {
			jww.WARN.Printf("Nothing saved under %s", args[0])
			return
		}
		printJSON(value)
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete [key]",
	Short: "Removes the value saved under a storage key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, closeFn := initPersistence()
		defer closeFn()

		if err := s.Delete(args[0]); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
	},
}

var cacheFetchCmd = &cobra.Command{
	Use:   "fetch [key] [url]",
	Short: "Fetches JSON from a URL through the query cache and saves it",
	Long: "Hydrates the query from the storage key, fetches the URL when " +
		"the saved value is stale and saves the result.",
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, closeFn := initPersistence()
		defer closeFn()

		key, url := args[0], args[1]
		client := query.NewClient(query.GetDefaultParams())
		q := query.NewPersistentQuery(client, s, key, key,
			func(ctx context.Context) (interface{}, error) {
				return fetchJSON(ctx, url)
			})
		if err := q.Hydrate(); err != nil {
			jww.WARN.Printf("Ignoring saved value of %s", key)
		}

		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		value, err := q.Fetch(ctx)
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		printJSON(value)
	},
}

// initPersistence opens the query cache backend selected by the flags. A
// DynamoDB table takes precedence over a redis server, and the encrypted
// cache directory is used when neither is named.
func initPersistence() (*persistence.Store, func()) {
	params := persistence.GetDefaultParams()
	params.MaxAge = viper.GetDuration(maxAgeFlag)

	if table := viper.GetString(dynamoTableFlag); table != "" {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		client, err := persistence.NewDynamoClient(ctx)
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		kv, err := persistence.NewDynamoKV(client, table,
			queryCachePrefix+"/")
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		jww.DEBUG.Printf("Using DynamoDB query cache table %s", table)
		return persistence.NewStore(kv, params), func() {}
	}

	if addr := viper.GetString(redisFlag); addr != "" {
		client, err := persistence.NewRedisClient(addr,
			viper.GetString(redisPasswordFlag), viper.GetInt(redisDBFlag))
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		jww.DEBUG.Printf("Using redis query cache at %s", addr)
		kv := persistence.NewRedisKV(client, queryCachePrefix+":")
		return persistence.NewStore(kv, params), func() {
			if err := client.Close(); err != nil {
				jww.ERROR.Printf("Failed to close redis client: %+v", err)
			}
		}
	}

	dir := viper.GetString(cacheDirFlag)
	fs, err := ekv.NewFilestore(dir, viper.GetString(passwordFlag))
	if err != nil {
		jww.FATAL.Panicf("Failed to open query cache %s: %+v", dir, err)
	}
	jww.DEBUG.Printf("Using query cache directory %s", dir)
	kv := versioned.NewKV(fs).Prefix(queryCachePrefix)
	return persistence.NewStore(kv, params), func() {}
}

func fetchJSON(ctx context.Context, url string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s returned %s: %s", url, resp.Status,
			body)
	}

	var value interface{}
	if err = json.Unmarshal(body, &value); err != nil {
		return nil, errors.Wrapf(err, "%s did not return JSON", url)
	}
	return value, nil
}

func init() {
	cacheCmd.AddCommand(cacheSaveCmd, cacheLoadCmd, cacheDeleteCmd,
		cacheFetchCmd)
	rootCmd.AddCommand(cacheCmd)
}

