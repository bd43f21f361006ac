// Package httpcheck implements ports.HTTPProber with net/http.
package httpcheck

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

// DefaultTimeout is the reachability budget used when none is configured.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response is kept for substring matching.
const maxBody = 1 << 20

// Prober issues GET requests. Freshly provisioned hosts serve self-signed
// certificates, so TLS verification is skipped; the checks assert
// reachability, not identity.
type Prober struct {
	client *http.Client
}

// New creates a Prober.
func New() *Prober {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local reachability only
	return &Prober{client: &http.Client{Transport: transport}}
}

// Get fetches url within timeout and returns status and (truncated) body.
func (p *Prober) Get(ctx context.Context, url string, timeout time.Duration) (int, string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build request %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "dialprov")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read body %s: %w", url, err)
	}
	return resp.StatusCode, string(body), nil
}

var _ ports.HTTPProber = (*Prober)(nil)
