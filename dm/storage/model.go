////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 Privategrity Corporation                                   /
//                                                                             /
// All rights reserved.                                                        /
////////////////////////////////////////////////////////////////////////////////

package storage

// Message defines the SQL representation of a single direct Message.
//
// The primary key is (ConversationId, Timestamp). Two secondary indexes order
// the table by sender and recipient: to_and_from covers the time-ordered scan
// of one directed pair and from_to is walked to enumerate the distinct pairs.
//
// The sender and recipient columns are named mfrom and mto because FROM and
// TO are SQL keywords.
type Message struct {
	ConversationId int64  `gorm:"primaryKey;autoIncrement:false"`
	Timestamp      int64  `gorm:"primaryKey;autoIncrement:false;index:to_and_from,priority:3"`
	From           string `gorm:"column:mfrom;not null;index:to_and_from,priority:1;index:from_to,priority:1"`
	To             string `gorm:"column:mto;not null;index:to_and_from,priority:2;index:from_to,priority:2"`
	Content        []byte `gorm:"not null"`
}

// TableName overrides the table name used by Message.
func (Message) TableName() string {
	return "user_messages"
}

// Notification defines the SQL representation of a single unread message
// Notification.
type Notification struct {
	MessageId      int64  `gorm:"primaryKey;autoIncrement:false"`
	ConversationId int64  `gorm:"primaryKey;autoIncrement:false"`
	Other          string `gorm:"index;not null"`
	Text           []byte `gorm:"not null"`
	SentByMe       bool   `gorm:"not null"`
}

// TableName overrides the table name used by Notification.
func (Notification) TableName() string {
	return "user_message_notifications"
}

// SchemaInfo records the schema version a database was last migrated to.
type SchemaInfo struct {
	Name    string `gorm:"primaryKey;not null"`
	Version uint64 `gorm:"not null"`
}

// TableName overrides the table name used by SchemaInfo.
func (SchemaInfo) TableName() string {
	return "schema_info"
}
