package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/asynkron/goapply/internal/cli"
)

// main applies a unified diff to the working tree; see cli.Run for flags and
// exit codes.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
