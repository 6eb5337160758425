///////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx network SEZC                                          //
//                                                                           //
// Use of this source code is governed by a license that can be found in the //
// LICENSE file                                                              //
///////////////////////////////////////////////////////////////////////////////

package cmd

// This is a comprehensive list of CLI flag name constants. Organized by
// subcommand, with root level CLI flags at the top of the list. Newly added
// flags for any existing or new subcommands should be listed and organized
// here. Pulling flags using Viper should use the constants defined here.
const (
	// Environment variables are named LUPYD_ followed by the flag name
	envPrefix = "LUPYD"

	//////////////// Root flags ///////////////////////////////////////////////

	// Config flags
	configFlag = "config"

	// Log flags
	logLevelFlag = "logLevel"
	logFlag      = "log"

	// Storage flags
	dbFlag            = "db"
	cacheDirFlag      = "cache-dir"
	passwordFlag      = "password"
	redisFlag         = "redis"
	redisPasswordFlag = "redis-password"
	redisDBFlag       = "redis-db"
	dynamoTableFlag   = "dynamo-table"
	maxAgeFlag        = "max-age"

	///////////////// Messages subcommand flags ///////////////////////////////
	fromFlag         = "from"
	toFlag           = "to"
	conversationFlag = "conversation"
	timestampFlag    = "timestamp"
	countFlag        = "count"
	beforeFlag       = "before"

	///////////////// Notifications subcommand flags //////////////////////////
	otherFlag     = "other"
	messageIDFlag = "message-id"
	sentByMeFlag  = "sent-by-me"
	limitFlag     = "limit"
)
