package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "dialprov: %v\n", err)
	}
	os.Exit(dperrors.ExitCode(err))
}
