// Copyright 2025 The txtool authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/yordanove/hedera-transaction-tool-sub000/database/models"
)

var ErrPersistence = errors.New("failed to save transaction")

// Config describes how to open the store. An empty DataDir with no
// PostgresDsn opens an in-memory SQLite database, useful for testing.
type Config struct {
	Logger      *slog.Logger
	DataDir     string
	PostgresDsn string
	Tracing     bool
}

// Database is the relational store backing the coordinator
type Database struct {
	logger *slog.Logger
	db     *gorm.DB
}

// New opens the store and applies schema migrations
func New(cfg Config) (*Database, error) {
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var gormDb *gorm.DB
	var err error
	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	switch {
	case cfg.PostgresDsn != "":
		gormDb, err = gorm.Open(postgres.Open(cfg.PostgresDsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
	case cfg.DataDir == "":
		// cache=shared allows multiple connections to share the same in-memory database
		gormDb, err = gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			gormCfg,
		)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
	default:
		if _, err := os.Stat(cfg.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf(
					"failed to read data dir: %w",
					err,
				)
			}
			if err := os.MkdirAll(cfg.DataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf(
					"failed to create data dir: %w",
					err,
				)
			}
		}
		dbPath := filepath.Join(cfg.DataDir, "txtool.sqlite")
		connOpts := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		gormDb, err = gorm.Open(
			sqlite.Open(fmt.Sprintf("file:%s?%s", dbPath, connOpts)),
			gormCfg,
		)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
	}
	if cfg.Tracing {
		if err := gormDb.Use(
			tracing.NewPlugin(tracing.WithoutMetrics()),
		); err != nil {
			return nil, fmt.Errorf("enable tracing plugin: %w", err)
		}
	}
	d := &Database{
		logger: logger,
		db:     gormDb,
	}
	for _, model := range models.MigrateModels {
		d.logger.Debug(fmt.Sprintf("creating table: %#v", model))
		if err := d.db.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return d, nil
}

// DB returns the underlying database handle
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Transaction starts a new database transaction and returns a handle
// to it
func (d *Database) Transaction() *Txn {
	return NewTxn(d)
}

// Close cleans up the database connection
func (d *Database) Close() error {
	sqlDb, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}
