////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 Privategrity Corporation                                   /
//                                                                             /
// All rights reserved.                                                        /
////////////////////////////////////////////////////////////////////////////////

// Handles low level database control and interfaces

package storage

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/lupyd/client/dm"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	// CurrentSchemaVersion is the version of the tables created by migrate.
	// Bump it whenever the set of tables or indexes changes.
	CurrentSchemaVersion = 1

	// Row name of the message schema in the SchemaInfo table
	schemaName = "user_messages"
)

// Store implements [dm.MessageStore] and [dm.NotificationStore] with an
// underlying sqlite database.
type Store struct {
	conn *connection
}

// NewStore opens the message database at dbFilePath. If the path is empty, a
// temporary in-memory database is used instead; its contents are lost once
// the Store is closed.
func NewStore(dbFilePath string) (*Store, error) {
	useTemporary := len(dbFilePath) == 0
	return newStore(dbFilePath, useTemporary)
}

// If useTemporary is set to true, this will use an in-RAM database named
// after dbFilePath.
func newStore(dbFilePath string, useTemporary bool) (*Store, error) {
	if useTemporary {
		dbFilePath = fmt.Sprintf(temporaryDbPath, dbFilePath)
		jww.WARN.Printf("No database file path specified! " +
			"Using temporary in-memory database")
	}

	s := &Store{
		conn: newConnection(func() (*gorm.DB, error) {
			return openDatabase(dbFilePath)
		}),
	}

	// Open eagerly so an unusable path is reported to the caller right away
	if _, err := s.conn.get(); err != nil {
		return nil, err
	}

	jww.INFO.Println("Database backend initialized successfully!")
	return s, nil
}

// openDatabase opens the sqlite database at dbFilePath and migrates it to
// CurrentSchemaVersion. Any failure is reported as dm.ErrStorageUnavailable.
func openDatabase(dbFilePath string) (*gorm.DB, error) {
	jww.DEBUG.Printf("[DM SQL] Opening database %s", dbFilePath)

	db, err := gorm.Open(sqlite.Open(withLockOptions(dbFilePath)), &gorm.Config{
		Logger:         logger.New(jww.TRACE, logger.Config{LogLevel: logger.Info}),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.WithMessagef(dm.ErrStorageUnavailable,
			"Unable to initialize database backend: %+v", err)
	}

	sqlDb, err := db.DB()
	if err != nil {
		return nil, errors.WithMessagef(dm.ErrStorageUnavailable,
			"Unable to configure database connection pool: %+v", err)
	}

	// sqlite runs one writer at a time. A single long-lived connection keeps
	// the journal mode below in effect and keeps an in-memory database alive.
	sqlDb.SetMaxOpenConns(1)
	sqlDb.SetMaxIdleConns(1)
	sqlDb.SetConnMaxIdleTime(0)
	sqlDb.SetConnMaxLifetime(0)

	// Enable Write Ahead Logging so readers in other processes do not block
	// on the writer
	if err = db.Exec("PRAGMA journal_mode = WAL;").Error; err != nil {
		_ = sqlDb.Close()
		return nil, errors.WithMessagef(dm.ErrStorageUnavailable,
			"Unable to enable WAL: %+v", err)
	}

	if err = migrate(db); err != nil {
		_ = sqlDb.Close()
		return nil, errors.WithMessagef(dm.ErrStorageUnavailable,
			"Unable to migrate database schema: %+v", err)
	}

	return db, nil
}

// withLockOptions adds the driver options that make opens of one database
// from several connections wait on each other. The busy timeout applies from
// the first statement, and transactions take the write lock when they begin,
// so a migration never has to upgrade a read lock held alongside another.
func withLockOptions(dbFilePath string) string {
	sep := "?"
	if strings.Contains(dbFilePath, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d&_txlock=immediate", dbFilePath,
		sep, dbTimeout.Milliseconds())
}

// migrate creates any missing table or index and records the schema version.
// It runs in a single transaction, so concurrent opens of the same database
// converge on one schema. Existing data is never dropped.
func migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		// WARNING: Order is important. Do not change without database testing
		err := tx.AutoMigrate(&SchemaInfo{}, &Message{}, &Notification{})
		if err != nil {
			return err
		}

		info := SchemaInfo{}
		err = tx.Where("name = ?", schemaName).Take(&info).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		switch {
		case info.Version > CurrentSchemaVersion:
			return errors.Errorf("database schema version %d is newer "+
				"than supported version %d", info.Version,
				CurrentSchemaVersion)
		case info.Version == CurrentSchemaVersion:
			return nil
		}

		jww.INFO.Printf("[DM SQL] Upgrading schema from version %d to %d",
			info.Version, CurrentSchemaVersion)
		info.Name = schemaName
		info.Version = CurrentSchemaVersion
		return tx.Save(&info).Error
	})
}
