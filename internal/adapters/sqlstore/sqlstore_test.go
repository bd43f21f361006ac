package sqlstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite3", filepath.Join(t.TempDir(), "asterisk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestScalarAndExec(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Exec(ctx, "CREATE TABLE servers (server_id TEXT, server_ip TEXT)")
	require.NoError(t, err)

	_, found, err := store.Scalar(ctx, "SELECT server_ip FROM servers LIMIT 1")
	require.NoError(t, err)
	require.False(t, found)

	n, err := store.Exec(ctx, "INSERT INTO servers VALUES (?, ?)", "dialer1", "10.0.0.5")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	value, found, err := store.Scalar(ctx, "SELECT server_ip FROM servers WHERE server_id = ?", "dialer1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "10.0.0.5", value)
}

func TestScalarMissingTableIsAbsent(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.Scalar(context.Background(), "SELECT server_ip FROM servers LIMIT 1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("postgres", "x")
	require.Error(t, err)
}

func TestMySQLConfig(t *testing.T) {
	dsn := MySQLConfig("cron", "1234", "/var/lib/mysql/mysql.sock", "", "asterisk").FormatDSN()
	require.True(t, strings.HasPrefix(dsn, "cron:1234@unix(/var/lib/mysql/mysql.sock)/asterisk"))

	dsn = MySQLConfig("root", "", "", "127.0.0.1:3306", "").FormatDSN()
	require.True(t, strings.HasPrefix(dsn, "root@tcp(127.0.0.1:3306)/"))

	_, err := mysql.NewConnector(MySQLConfig("cron", "1234", "/var/lib/mysql/mysql.sock", "", "asterisk"))
	require.NoError(t, err)
}

func TestIsAbsent(t *testing.T) {
	require.True(t, isAbsent(&mysql.MySQLError{Number: 1049, Message: "Unknown database 'asterisk'"}))
	require.True(t, isAbsent(&mysql.MySQLError{Number: 1146}))
	require.True(t, isAbsent(&mysql.MySQLError{Number: 1045, Message: "Access denied for user 'cron'@'localhost'"}))
	require.True(t, isAbsent(&mysql.MySQLError{Number: 1044}))
	require.False(t, isAbsent(&mysql.MySQLError{Number: 2002, Message: "Can't connect through socket"}))
	require.False(t, isAbsent(errors.New("connection refused")))
	require.False(t, isAbsent(nil))
}

type stubConnector struct {
	connect func() (driver.Conn, error)
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) { return c.connect() }
func (c stubConnector) Driver() driver.Driver                        { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return nil, errors.New("use the connector") }

// stubConn answers every Exec with a result that cannot count rows.
type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare unsupported") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("tx unsupported") }
func (stubConn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	return uncountedResult{}, nil
}

type uncountedResult struct{}

func (uncountedResult) LastInsertId() (int64, error) { return 0, nil }
func (uncountedResult) RowsAffected() (int64, error) {
	return 0, errors.New("rows affected unavailable")
}

func TestScalarBeforeAccountExistsIsAbsent(t *testing.T) {
	store := OpenConnector(stubConnector{connect: func() (driver.Conn, error) {
		return nil, &mysql.MySQLError{Number: 1045, Message: "Access denied for user 'cron'@'localhost' (using password: YES)"}
	}})
	t.Cleanup(func() { _ = store.Close() })

	_, found, err := store.Scalar(context.Background(), "SELECT COUNT(*) FROM servers")
	require.NoError(t, err)
	require.False(t, found)

	_, err = store.Exec(context.Background(), "UPDATE servers SET server_ip = ?", "10.0.0.9")
	require.Error(t, err, "writes still surface the refused login")
}

func TestExecReportsRowsAffectedFailure(t *testing.T) {
	store := OpenConnector(stubConnector{connect: func() (driver.Conn, error) { return stubConn{}, nil }})
	t.Cleanup(func() { _ = store.Close() })

	_, err := store.Exec(context.Background(), "UPDATE vicidial_users SET pass = ?", "x")
	require.ErrorContains(t, err, "rows affected unavailable")
}
