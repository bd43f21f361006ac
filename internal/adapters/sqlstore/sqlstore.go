// Package sqlstore implements ports.Store over database/sql. MySQL/MariaDB
// is the production backend; sqlite3 serves lab hosts and tests.
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

// MySQL server error numbers reported as absence rather than failure. Until
// the schema loader has created the application account, logging in as it
// is refused, which means the database is not provisioned yet.
const (
	errDBAccessDenied  = 1044
	errAccessDenied    = 1045
	errUnknownDatabase = 1049
	errNoSuchTable     = 1146
)

// Store wraps a lazily opened *sql.DB.
type Store struct {
	driver    string
	dsn       string
	connector driver.Connector

	once sync.Once
	db   *sql.DB
	err  error
}

// Open returns a Store for driver and dsn. No connection is made until the
// first query, so probes against a host without a database server still
// construct cleanly.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "mysql", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return &Store{driver: driver, dsn: dsn}, nil
}

// OpenConnector returns a Store over a prepared connector, such as the one
// mysql.NewConnector builds from MySQLConfig.
func OpenConnector(c driver.Connector) *Store {
	return &Store{connector: c}
}

// MySQLConfig describes a local server connection. A socket wins over an
// address. An empty database name yields a server-level connection.
func MySQLConfig(user, password, socket, address, database string) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = database
	if socket != "" {
		cfg.Net = "unix"
		cfg.Addr = socket
	} else {
		cfg.Net = "tcp"
		cfg.Addr = address
	}
	cfg.Timeout = 5 * time.Second
	cfg.ReadTimeout = 30 * time.Second
	return cfg
}

func (s *Store) conn() (*sql.DB, error) {
	s.once.Do(func() {
		if s.connector != nil {
			s.db = sql.OpenDB(s.connector)
		} else {
			s.db, s.err = sql.Open(s.driver, s.dsn)
		}
		if s.err == nil {
			s.db.SetMaxOpenConns(1)
		}
	})
	return s.db, s.err
}

// Scalar implements ports.Store.
func (s *Store) Scalar(ctx context.Context, query string, args ...any) (string, bool, error) {
	db, err := s.conn()
	if err != nil {
		return "", false, err
	}

	var value sql.NullString
	err = db.QueryRowContext(ctx, query, args...).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows), isAbsent(err):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("query %q: %w", query, err)
	}
	return value.String, true, nil
}

// Exec implements ports.Store.
func (s *Store) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("exec %q: %w", stmt, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected by %q: %w", stmt, err)
	}
	return n, nil
}

// Close releases the connection pool if it was opened.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isAbsent(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDBAccessDenied, errAccessDenied, errUnknownDatabase, errNoSuchTable:
			return true
		}
		return false
	}
	return strings.Contains(err.Error(), "no such table")
}

var _ ports.Store = (*Store)(nil)
