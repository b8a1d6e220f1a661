// Package mysql opens the shared SQL gateway on a MySQL server.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"timetracker/internal/storage"
)

const (
	errDuplicateEntry      = 1062
	errNoReferencedRow     = 1452
	activeIndexName        = "uq_time_entries_single_active"
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
)

type dialect struct{}

func (dialect) Name() string { return "mysql" }

func (dialect) TimeArg(t time.Time) any { return t.UTC() }

func (dialect) IsActiveConflict(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry && strings.Contains(me.Message, activeIndexName)
}

func (d dialect) IsDuplicateKey(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry && !d.IsActiveConflict(err)
}

func (dialect) IsMissingParent(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == errNoReferencedRow
}

// NormalizeDSN forces the options the gateway depends on: parseTime for
// DATETIME scanning, UTC, and multiStatements for migrations.
func NormalizeDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("mysql: DSN is required")
	}
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}

// Open connects, migrates and returns the gateway.
// Example DSN: user:pass@tcp(host:3306)/dbname
func Open(ctx context.Context, dsn string) (*storage.Repository, error) {
	dsn, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}
	return storage.NewRepository(db, dialect{}), nil
}
