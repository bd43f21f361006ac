package ports

import "context"

// Store is the relational-store capability. Values are always passed as
// statement arguments, never concatenated into the query text.
type Store interface {
	// Scalar runs a query returning at most one column of one row. found is
	// false when no row matched or the database does not exist yet.
	Scalar(ctx context.Context, query string, args ...any) (value string, found bool, err error)
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, stmt string, args ...any) (int64, error)
	Close() error
}
