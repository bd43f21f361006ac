package ports

import "context"

// SchedulerTable reads and replaces the owning user's crontab.
type SchedulerTable interface {
	// Read returns the full table. A user without a crontab yields an empty
	// table, not an error.
	Read(ctx context.Context) ([]byte, error)
	// Replace installs content as the whole table in one step.
	Replace(ctx context.Context, content []byte) error
}
