////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 Privategrity Corporation                                   /
//                                                                             /
// All rights reserved.                                                        /
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/lupyd/client/dm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PutNotification inserts n, replacing any notification stored for the same
// message.
func (s *Store) PutNotification(n dm.MessageNotification) error {
	jww.TRACE.Printf("[DM SQL] PutNotification(%d, %d, %s)",
		n.ConversationID, n.MessageID, n.Other)

	text := n.Text
	if text == nil {
		text = []byte{}
	}
	row := &Notification{
		MessageId:      n.MessageID,
		ConversationId: n.ConversationID,
		Other:          n.Other,
		Text:           text,
		SentByMe:       n.SentByMe,
	}

	err := s.withDB(func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(row).Error
	})
	if err != nil {
		return errors.WithMessage(err, "[DM SQL] failed to PutNotification")
	}
	return nil
}

// GetNotificationsFromUser returns the notifications of the conversation
// with other in ascending message order, at most limit of them.
func (s *Store) GetNotificationsFromUser(other string, limit int) (
	[]dm.MessageNotification, error) {
	jww.TRACE.Printf("[DM SQL] GetNotificationsFromUser(%s, %d)", other, limit)

	if limit <= 0 {
		// gorm treats a negative limit as no limit
		limit = -1
	}

	var results []*Notification
	err := s.withDB(func(db *gorm.DB) error {
		return db.Where("other = ?", other).
			Order("message_id").
			Limit(limit).
			Find(&results).Error
	})
	if err != nil {
		return nil, errors.WithMessage(err,
			"[DM SQL] failed to GetNotificationsFromUser")
	}
	return toModelNotifications(results), nil
}

// GetAllNotifications returns every stored notification ordered by
// conversation and message.
func (s *Store) GetAllNotifications() ([]dm.MessageNotification, error) {
	var results []*Notification
	err := s.withDB(func(db *gorm.DB) error {
		return db.Order("conversation_id, message_id").Find(&results).Error
	})
	if err != nil {
		return nil, errors.WithMessage(err,
			"[DM SQL] failed to GetAllNotifications")
	}
	return toModelNotifications(results), nil
}

// DeleteAllNotifications removes every stored notification.
func (s *Store) DeleteAllNotifications() error {
	jww.DEBUG.Printf("[DM SQL] Deleting all notifications")
	err := s.withDB(func(db *gorm.DB) error {
		return db.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&Notification{}).Error
	})
	if err != nil {
		return errors.WithMessage(err,
			"[DM SQL] failed to DeleteAllNotifications")
	}
	return nil
}

// DeleteNotificationsUntil removes the notifications of the conversation
// with other whose message ID is at most messageID.
func (s *Store) DeleteNotificationsUntil(other string, messageID int64) error {
	jww.TRACE.Printf("[DM SQL] DeleteNotificationsUntil(%s, %d)",
		other, messageID)
	err := s.withDB(func(db *gorm.DB) error {
		return db.Where("other = ? AND message_id <= ?", other, messageID).
			Delete(&Notification{}).Error
	})
	if err != nil {
		return errors.WithMessage(err,
			"[DM SQL] failed to DeleteNotificationsUntil")
	}
	return nil
}

// withDB runs fn against the open database with the standard query timeout.
func (s *Store) withDB(fn func(db *gorm.DB) error) error {
	db, err := s.conn.get()
	if err != nil {
		return err
	}
	ctx, cancel := newContext()
	defer cancel()
	return fn(db.WithContext(ctx))
}

func toModelNotifications(results []*Notification) []dm.MessageNotification {
	notifications := make([]dm.MessageNotification, len(results))
	for i, n := range results {
		notifications[i] = dm.MessageNotification{
			MessageID:      n.MessageId,
			ConversationID: n.ConversationId,
			Other:          n.Other,
			Text:           n.Text,
			SentByMe:       n.SentByMe,
		}
	}
	return notifications
}
