package redisq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewFromURL(t *testing.T) {
	p, err := NewFromURL("redis://:secret@127.0.0.1:6390/2")
	require.NoError(t, err)
	defer p.Close()

	opts := p.client.Options()
	require.Equal(t, "127.0.0.1:6390", opts.Addr)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, 2, opts.DB)

	_, err = NewFromURL("http://nope")
	require.Error(t, err)
}

func TestPingUnreachable(t *testing.T) {
	p := New("127.0.0.1:1", "", 0)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Error(t, p.Ping(ctx))
}
