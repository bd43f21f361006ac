package ports

import (
	"context"
	"net/netip"
	"time"
)

// HTTPProber fetches a URL with a bounded latency budget.
type HTTPProber interface {
	Get(ctx context.Context, url string, timeout time.Duration) (status int, body string, err error)
}

// Router resolves the local source address the kernel would use to reach
// destination. A host without a usable route returns an invalid Addr and a
// nil error.
type Router interface {
	SourceAddress(ctx context.Context, destination string) (netip.Addr, error)
}

// QueueProber inspects the ops stack's job queue.
type QueueProber interface {
	Ping(ctx context.Context) error
	QueueLength(ctx context.Context, key string) (int64, error)
}
