///////////////////////////////////////////////////////////////////////////////
// Copyright © 2020 xx network SEZC                                          //
//                                                                           //
// Use of this source code is governed by a license that can be found in the //
// LICENSE file                                                              //
///////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"gitlab.com/lupyd/client/dm"
)

// notificationsCmd groups the subcommands of the message notification
// history.
var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Manage the message notification history",
	Args:  cobra.NoArgs,
}

var notificationsPutCmd = &cobra.Command{
	Use:   "put [text]",
	Short: "Records a notification of the conversation with --other",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := initMessageStore()
		defer closeStore(s)

		// The conversation flag is bound to viper by the messages command
		conversationID, err := cmd.Flags().GetInt64(conversationFlag)
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}

		n := dm.MessageNotification{
			MessageID:      viper.GetInt64(messageIDFlag),
			ConversationID: conversationID,
			Other:          viper.GetString(otherFlag),
			Text:           []byte(strings.Join(args, " ")),
			SentByMe:       viper.GetBool(sentByMeFlag),
		}
		if err = s.PutNotification(n); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		jww.INFO.Printf("Recorded notification %d of %s", n.MessageID,
			n.Other)
	},
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the notifications of --other, or all of them",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := initMessageStore()
		defer closeStore(s)

		var notifications []dm.MessageNotification
		var err error
		if other := viper.GetString(otherFlag); other != "" {
			notifications, err = s.GetNotificationsFromUser(other,
				viper.GetInt(limitFlag))
		} else {
			notifications, err = s.GetAllNotifications()
		}
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		printJSON(toNotificationViews(notifications))
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Drops the notifications of --other up to --message-id",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := initMessageStore()
		defer closeStore(s)

		other := viper.GetString(otherFlag)
		if other == "" {
			jww.FATAL.Panicf("--%s is required", otherFlag)
		}
		err := s.DeleteNotificationsUntil(other, viper.GetInt64(messageIDFlag))
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
	},
}

var notificationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drops every notification",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := initMessageStore()
		defer closeStore(s)

		if err := s.DeleteAllNotifications(); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
	},
}

type notificationView struct {
	MessageID      int64  `json:"messageId"`
	ConversationID int64  `json:"conversationId"`
	Other          string `json:"other"`
	Text           string `json:"text"`
	SentByMe       bool   `json:"sentByMe"`
}

func toNotificationViews(
	notifications []dm.MessageNotification) []notificationView {
	views := make([]notificationView, len(notifications))
	for i, n := range notifications {
		views[i] = notificationView{
			MessageID:      n.MessageID,
			ConversationID: n.ConversationID,
			Other:          n.Other,
			Text:           string(n.Text),
			SentByMe:       n.SentByMe,
		}
	}
	return views
}

func init() {
	notificationsCmd.PersistentFlags().String(otherFlag, "",
		"The other party of the conversation")
	_ = viper.BindPFlag(otherFlag,
		notificationsCmd.PersistentFlags().Lookup(otherFlag))

	notificationsCmd.PersistentFlags().Int64(messageIDFlag, 0,
		"Message ID of the notification")
	_ = viper.BindPFlag(messageIDFlag,
		notificationsCmd.PersistentFlags().Lookup(messageIDFlag))

	notificationsPutCmd.Flags().Int64(conversationFlag, 0,
		"Conversation ID of the notification")
	notificationsPutCmd.Flags().Bool(sentByMeFlag, false,
		"The notification is of a message this user sent")
	_ = viper.BindPFlag(sentByMeFlag,
		notificationsPutCmd.Flags().Lookup(sentByMeFlag))

	notificationsListCmd.Flags().Int(limitFlag, 0,
		"Maximum number of notifications to list (0 lists all)")
	_ = viper.BindPFlag(limitFlag,
		notificationsListCmd.Flags().Lookup(limitFlag))

	notificationsCmd.AddCommand(notificationsPutCmd, notificationsListCmd,
		notificationsReadCmd, notificationsClearCmd)
	rootCmd.AddCommand(notificationsCmd)
}
