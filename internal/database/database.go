// Package database はデータベース接続とスキーマ作成を扱います。
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"go-todo-app/internal/config"
)

// Open は設定されたドライバーでデータベース接続を初期化します。
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("could not open database connection: %w", err)
	}

	if cfg.DBDriver == config.DriverSQLite {
		// SQLite は書き込みが単一なので接続を 1 本に絞る
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ping database: %w", err)
	}
	log.WithField("driver", cfg.DBDriver).Info("connected to database")
	return db, nil
}

var schemas = map[string][]string{
	config.DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS todos (
			id CHAR(36) NOT NULL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NULL,
			done BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_todos_created_at (created_at)
		)`,
	},
	config.DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS todos (
			id TEXT NOT NULL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			done BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos (created_at)`,
	},
}

// Migrate は todos テーブルを作成します。何度呼び出しても安全です。
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	stmts, ok := schemas[driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("could not apply schema: %w", err)
		}
	}
	return nil
}
