///////////////////////////////////////////////////////////////////////////////
// Copyright © 2020 xx network SEZC                                          //
//                                                                           //
// Use of this source code is governed by a license that can be found in the //
// LICENSE file                                                              //
///////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// Execute adds all child commands to the root command and sets flags
// appropriately.  This is called by main.main(). It only needs to
// happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lupyd",
	Short: "Inspects and edits the local message store and query cache of a Lupyd client",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLog(viper.GetUint(logLevelFlag), viper.GetString(logFlag))
	},
}

func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(ioutil.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.INFO.Printf("log level set to: TRACE")
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.INFO.Printf("log level set to: DEBUG")
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.INFO.Printf("log level set to: INFO")
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
	}
}

// init is the initialization function for Cobra which defines commands
// and flags.
func init() {
	// NOTE: The point of init() is to be declarative.
	// There is one init in each sub command. Do not put variable declarations
	// here, and ensure all the Flags are of the *P variety, unless there's a
	// very good reason not to have them as local params to sub command."
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP(configFlag, "c", "",
		"Config file (yaml, json or toml). Flags override its values")
	_ = viper.BindPFlag(configFlag, rootCmd.PersistentFlags().Lookup(configFlag))

	rootCmd.PersistentFlags().UintP(logLevelFlag, "v", 0,
		"Verbose mode for debugging")
	_ = viper.BindPFlag(logLevelFlag,
		rootCmd.PersistentFlags().Lookup(logLevelFlag))

	rootCmd.PersistentFlags().StringP(logFlag, "l", "-",
		"Path to the log output path (- is stdout)")
	_ = viper.BindPFlag(logFlag, rootCmd.PersistentFlags().Lookup(logFlag))

	rootCmd.PersistentFlags().StringP(dbFlag, "d", "lupyd.db",
		"Path to the message database. Empty uses a temporary in-memory "+
			"database")
	_ = viper.BindPFlag(dbFlag, rootCmd.PersistentFlags().Lookup(dbFlag))

	rootCmd.PersistentFlags().String(cacheDirFlag, "queryCache",
		"Directory of the encrypted query cache")
	_ = viper.BindPFlag(cacheDirFlag,
		rootCmd.PersistentFlags().Lookup(cacheDirFlag))

	rootCmd.PersistentFlags().StringP(passwordFlag, "p", "",
		"Password of the query cache directory")
	_ = viper.BindPFlag(passwordFlag,
		rootCmd.PersistentFlags().Lookup(passwordFlag))

	rootCmd.PersistentFlags().String(redisFlag, "",
		"Address of a redis server to keep the query cache in instead of "+
			"the cache directory")
	_ = viper.BindPFlag(redisFlag, rootCmd.PersistentFlags().Lookup(redisFlag))

	rootCmd.PersistentFlags().String(redisPasswordFlag, "",
		"Password of the redis server")
	_ = viper.BindPFlag(redisPasswordFlag,
		rootCmd.PersistentFlags().Lookup(redisPasswordFlag))

	rootCmd.PersistentFlags().Int(redisDBFlag, 0, "Redis database number")
	_ = viper.BindPFlag(redisDBFlag,
		rootCmd.PersistentFlags().Lookup(redisDBFlag))

	rootCmd.PersistentFlags().String(dynamoTableFlag, "",
		"DynamoDB table to keep the query cache in. AWS credentials come "+
			"from the default configuration chain")
	_ = viper.BindPFlag(dynamoTableFlag,
		rootCmd.PersistentFlags().Lookup(dynamoTableFlag))

	rootCmd.PersistentFlags().Duration(maxAgeFlag, 0,
		"Age after which cached queries are dropped (0 keeps them)")
	_ = viper.BindPFlag(maxAgeFlag,
		rootCmd.PersistentFlags().Lookup(maxAgeFlag))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Values already in the environment win over .env.local, which wins
	// over .env
	var dotEnv []string
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			dotEnv = append(dotEnv, f)
		}
	}
	if len(dotEnv) > 0 {
		if err := godotenv.Load(dotEnv...); err != nil {
			jww.WARN.Printf("Failed to load %v: %+v", dotEnv, err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPath := viper.GetString(configFlag)
	if configPath == "" {
		return
	}
	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		jww.FATAL.Panicf("Failed to read config file %s: %+v",
			configPath, err)
	}
	jww.DEBUG.Printf("Using config file %s", viper.ConfigFileUsed())
}
