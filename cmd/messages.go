///////////////////////////////////////////////////////////////////////////////
// Copyright © 2020 xx network SEZC                                          //
//                                                                           //
// Use of this source code is governed by a license that can be found in the //
// LICENSE file                                                              //
///////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"gitlab.com/lupyd/client/dm"
	"gitlab.com/lupyd/client/dm/storage"
	"gitlab.com/xx_network/primitives/netTime"
)

// messagesCmd groups the subcommands reading and writing the conversation
// store.
var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Store and list direct messages in the message database",
	Args:  cobra.NoArgs,
}

var messagesStoreCmd = &cobra.Command{
	Use:   "store [content]",
	Short: "Stores a message from --from to --to",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := initMessageStore()
		defer closeStore(s)

		timestamp := viper.GetInt64(timestampFlag)
		if timestamp == 0 {
			timestamp = netTime.Now().UnixMilli()
		}
		msg := dm.Message{
			Content:        []byte(strings.Join(args, " ")),
			Timestamp:      timestamp,
			From:           viper.GetString(fromFlag),
			To:             viper.GetString(toFlag),
			ConversationID: viper.GetInt64(conversationFlag),
		}
		if err := s.StoreMessage(msg); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		jww.INFO.Printf("Stored message %d of conversation %d",
			msg.Timestamp, msg.ConversationID)
		printJSON(toMessageViews([]dm.Message{msg})[0])
	},
}

var messagesLastCmd = &cobra.Command{
	Use:   "last",
	Short: "Lists the last messages from --from to --to, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := initMessageStore()
		defer closeStore(s)

		from, to := viper.GetString(fromFlag), viper.GetString(toFlag)
		count := viper.GetInt(countFlag)

		var messages []dm.Message
		var err error
		if cmd.Flags().Changed(beforeFlag) {
			messages, err = s.GetLastMessagesBefore(from, to, count,
				viper.GetInt64(beforeFlag))
		} else {
			messages, err = s.GetLastMessages(from, to, count)
		}
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		printJSON(toMessageViews(messages))
	},
}

var messagesConversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Lists the most recent message of every conversation",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := initMessageStore()
		defer closeStore(s)

		messages, err := s.GetLastMessagesFromAllConversations()
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		printJSON(toMessageViews(messages))
	},
}

// messageView is the printed form of a dm.Message.
type messageView struct {
	ConversationID int64  `json:"conversationId"`
	Timestamp      int64  `json:"timestamp"`
	From           string `json:"from"`
	To             string `json:"to"`
	Content        string `json:"content"`
}

func toMessageViews(messages []dm.Message) []messageView {
	views := make([]messageView, len(messages))
	for i, m := range messages {
		views[i] = messageView{
			ConversationID: m.ConversationID,
			Timestamp:      m.Timestamp,
			From:           m.From,
			To:             m.To,
			Content:        string(m.Content),
		}
	}
	return views
}

// initMessageStore opens the message database named by the db flag.
func initMessageStore() *storage.Store {
	path := viper.GetString(dbFlag)
	jww.DEBUG.Printf("Opening message database %q", path)
	s, err := storage.NewStore(path)
	if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}
	return s
}

func closeStore(s *storage.Store) {
	if err := s.Close(); err != nil {
		jww.ERROR.Printf("Failed to close message database: %+v", err)
	}
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		jww.FATAL.Panicf("Failed to encode output: %+v", err)
	}
	fmt.Println(string(out))
}

func init() {
	messagesCmd.PersistentFlags().String(fromFlag, "",
		"Sender of the conversation")
	_ = viper.BindPFlag(fromFlag, messagesCmd.PersistentFlags().Lookup(fromFlag))

	messagesCmd.PersistentFlags().String(toFlag, "",
		"Recipient of the conversation")
	_ = viper.BindPFlag(toFlag, messagesCmd.PersistentFlags().Lookup(toFlag))

	messagesStoreCmd.Flags().Int64(conversationFlag, 0,
		"Conversation ID of the message")
	_ = viper.BindPFlag(conversationFlag,
		messagesStoreCmd.Flags().Lookup(conversationFlag))

	messagesStoreCmd.Flags().Int64(timestampFlag, 0,
		"Timestamp of the message in milliseconds (0 uses the current time)")
	_ = viper.BindPFlag(timestampFlag,
		messagesStoreCmd.Flags().Lookup(timestampFlag))

	messagesLastCmd.Flags().IntP(countFlag, "n", dm.DefaultMessageCount,
		"Maximum number of messages to list")
	_ = viper.BindPFlag(countFlag, messagesLastCmd.Flags().Lookup(countFlag))

	messagesLastCmd.Flags().Int64(beforeFlag, 0,
		"Only list messages older than this timestamp")
	_ = viper.BindPFlag(beforeFlag, messagesLastCmd.Flags().Lookup(beforeFlag))

	messagesCmd.AddCommand(messagesStoreCmd, messagesLastCmd,
		messagesConversationsCmd)
	rootCmd.AddCommand(messagesCmd)
}
