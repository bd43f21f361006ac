package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("profile.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "profile.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "profile.yaml:12")
}

func TestActionErrorIncludesStageAndOperation(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("exit status 100")
	err := NewActionError("base-packages", "apt-get install", underlying)

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	require.Equal(t, "base-packages", actionErr.Stage)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "apt-get install")
}

func TestConvergenceErrorListsFacts(t *testing.T) {
	t.Parallel()

	err := NewConvergenceError("telephony-service", "still drifting", []string{"service:asterisk:active=false"})
	require.Contains(t, err.Error(), "telephony-service")
	require.Contains(t, err.Error(), "service:asterisk:active=false")
}

func TestTimeoutErrorMatchesDeadlineExceeded(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("probe: %w", NewTimeoutError("GET http://127.0.0.1/", 10*time.Second))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "10s")
}

func TestExitCodeMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"privilege", NewPrivilegeError("install", 1000), ExitPrivilege},
		{"precondition", fmt.Errorf("wrapped: %w", NewPreconditionError("os", "os:id", "unsupported")), ExitPrecondition},
		{"parse", NewParseError("p.yaml", 1, stdErrors.New("bad")), ExitConfig},
		{"validation", NewValidationError("cron", "bad schedule", nil), ExitConfig},
		{"action", NewActionError("s", "op", stdErrors.New("x")), ExitFailure},
		{"check", NewCheckFailure("web", "404", nil), ExitFailure},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), ExitCancelled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}
