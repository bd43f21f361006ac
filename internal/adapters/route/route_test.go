package route

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/ports"
	"github.com/alexisbeaulieu97/dialprov/internal/probes"
	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{name: "typical", output: "8.8.8.8 via 10.0.0.1 dev eth0 src 10.0.0.9 uid 0 \n    cache \n", want: "10.0.0.9"},
		{name: "direct", output: "10.0.0.20 dev ens3 src 10.0.0.5 uid 0\n", want: "10.0.0.5"},
		{name: "no src", output: "local 127.0.0.1 dev lo table local\n", want: ""},
		{name: "loopback", output: "127.0.0.1 dev lo src 127.0.0.1\n", want: ""},
		{name: "garbage", output: "src not-an-ip", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSource(tt.output)
			if tt.want == "" {
				require.False(t, got.IsValid())
				return
			}
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestSourceAddressUnreachable(t *testing.T) {
	runner := ports.NewMockCommandRunner()
	runner.AddResult("ip", []string{"-4", "route", "get", "8.8.8.8"}, ports.CommandResult{ExitCode: 2, Stderr: "RTNETLINK answers: Network is unreachable\n"})

	addr, err := New(runner).SourceAddress(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	require.False(t, addr.IsValid())
}

func TestSourceAddress(t *testing.T) {
	runner := ports.NewMockCommandRunner()
	runner.AddResult("ip", []string{"-4", "route", "get", "8.8.8.8"}, ports.CommandResult{Stdout: "8.8.8.8 via 10.0.0.1 dev eth0 src 10.0.0.9 uid 0\n"})

	addr, err := New(runner).SourceAddress(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.9", addr.String())
}

func TestSourceAddressFailureIsPrecondition(t *testing.T) {
	runner := ports.NewMockCommandRunner()
	runner.AddResult("ip", []string{"-4", "route", "get", "8.8.8.8"}, ports.CommandResult{ExitCode: 2, Stderr: "RTNETLINK answers: Operation not permitted\n"})
	router := New(runner)

	_, err := router.SourceAddress(context.Background(), "8.8.8.8")
	require.ErrorContains(t, err, "Operation not permitted")

	result := engine.NewExecutor(engine.Options{}).Run(context.Background(), engine.Pipeline{
		Name: "update-identity",
		Seed: []engine.Probe{probes.NetIdentity(router, "8.8.8.8")},
		Stages: []engine.Stage{{
			Name: "network-identity",
			Probes: []engine.Probe{engine.NewProbe("identity:detected", func(_ context.Context, env model.FactSet) (model.Fact, error) {
				f, _ := env.Get(probes.IdentityKey)
				return f, nil
			})},
			Guard: engine.RequirePresent("identity:detected"),
		}},
	})
	require.Empty(t, result.Stages)
	require.Equal(t, dperrors.ExitPrecondition, dperrors.ExitCode(result.Err))
}
